package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Amen Brother", "Amen-Brother"},
		{"  Funky   Drummer ", "Funky-Drummer"},
		{"Rock/Roll", "Rock%2FRoll"},
		{"Café del Mar", "Caf%C3%A9-del-Mar"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slug(tt.title), "title %q", tt.title)
	}
}

func TestSourceURL(t *testing.T) {
	got, err := SourceURL(DefaultSourceTemplate, "Amen Brother")
	require.NoError(t, err)
	assert.Equal(t, "https://www.whosampled.com/Amen-Brother/", got)
}

func TestSourceURLRejectsBadInput(t *testing.T) {
	_, err := SourceURL("https://example.com/song/", "Amen Brother")
	assert.Error(t, err)

	_, err = SourceURL(DefaultSourceTemplate, "   ")
	assert.Error(t, err)

	_, err = SourceURL("file:///etc/{title}", "passwd")
	assert.Error(t, err)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/song/x", nil)
	r.RemoteAddr = "10.0.0.7:51234"
	assert.Equal(t, "10.0.0.7", ClientIP(r))

	r.Header.Set("X-Real-IP", "192.168.1.2")
	assert.Equal(t, "192.168.1.2", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(r))
}

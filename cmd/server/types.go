package main

import (
	"github.com/himanishpuri/SampleTree/pkg/models"
)

// History listing bounds for GET /api/history
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// ListSongsResponse is the response for GET /api/songs
type ListSongsResponse struct {
	Songs []models.LineageRecord `json:"songs"`
	Count int                    `json:"count"`
}

// HistoryResponse is the response for GET /api/history
type HistoryResponse struct {
	Entries []models.HistoryEntry `json:"entries"`
	Count   int                   `json:"count"`
}

// MetricsResponse provides server health and store counters
type MetricsResponse struct {
	Status      string `json:"status"`
	Store       string `json:"store"`
	MatchMode   string `json:"match_mode"`
	Strict      bool   `json:"strict"`
	SongCount   int64  `json:"song_count"`
	LookupCount int64  `json:"lookup_count"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
	Error  string `json:"error,omitempty"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error string `json:"error"`
}

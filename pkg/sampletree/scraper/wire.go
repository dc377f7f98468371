package scraper

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/himanishpuri/SampleTree/pkg/models"
)

// wireRecord is the scraper's stdout document. Field names vary between
// scraper versions, so both spellings are accepted and folded on ingestion.
type wireRecord struct {
	Title        string     `json:"title"`
	OriginalSong string     `json:"original_song"`
	Artist       string     `json:"artist"`
	Year         any        `json:"year"`
	Samples      *[]wireRef `json:"samples"`
	SampledBy    *[]wireRef `json:"sampled_by"`
	SampledByAlt *[]wireRef `json:"sampledBy"`
}

type wireRef struct {
	TrackName    string    `json:"track_name"`
	TrackNameAlt string    `json:"trackName"`
	Artists      *[]string `json:"artists"`
}

// decodeRecord parses the first JSON value in out. Anything after it is ignored.
func decodeRecord(out []byte) (*models.LineageRecord, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, errors.New("no output")
	}
	if trimmed[0] != '{' {
		return nil, errors.New("output is not a JSON object")
	}

	var w wireRecord
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	rec := &models.LineageRecord{
		Title:  strings.TrimSpace(w.Title),
		Artist: strings.TrimSpace(w.Artist),
		Year:   yearString(w.Year),
	}
	if rec.Title == "" {
		rec.Title = strings.TrimSpace(w.OriginalSong)
	}

	var err error
	if rec.Samples, err = convertRefs("samples", w.Samples); err != nil {
		return nil, err
	}
	sampledBy := w.SampledBy
	if sampledBy == nil {
		sampledBy = w.SampledByAlt
	}
	if rec.SampledBy, err = convertRefs("sampled_by", sampledBy); err != nil {
		return nil, err
	}
	return rec, nil
}

func convertRefs(field string, refs *[]wireRef) ([]models.SampleRef, error) {
	if refs == nil {
		return []models.SampleRef{}, nil
	}

	out := make([]models.SampleRef, 0, len(*refs))
	for i, ref := range *refs {
		name := strings.TrimSpace(ref.TrackName)
		if name == "" {
			name = strings.TrimSpace(ref.TrackNameAlt)
		}
		if name == "" {
			return nil, fmt.Errorf("%s[%d]: missing track_name", field, i)
		}
		if ref.Artists == nil || len(*ref.Artists) == 0 {
			return nil, fmt.Errorf("%s[%d]: missing artists", field, i)
		}

		artists := make([]string, 0, len(*ref.Artists))
		for j, a := range *ref.Artists {
			a = strings.TrimSpace(a)
			if a == "" {
				return nil, fmt.Errorf("%s[%d].artists[%d]: empty artist", field, i, j)
			}
			artists = append(artists, a)
		}
		out = append(out, models.SampleRef{TrackName: name, Artists: artists})
	}
	return out, nil
}

// yearString accepts the year as either a JSON string or number.
func yearString(v any) string {
	switch y := v.(type) {
	case string:
		return strings.TrimSpace(y)
	case float64:
		return fmt.Sprintf("%.0f", y)
	default:
		return ""
	}
}

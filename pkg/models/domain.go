package models

import "time"

// SampleRef points at a related song by track name and contributing artists.
type SampleRef struct {
	TrackName string   `json:"track_name"`
	Artists   []string `json:"artists"`
}

// LineageRecord is a song's known sampling relationships.
// Samples and SampledBy are never nil; an unknown direction is an empty slice.
type LineageRecord struct {
	Title     string      `json:"title"`
	Artist    string      `json:"artist,omitempty"`
	Year      string      `json:"year,omitempty"`
	Samples   []SampleRef `json:"samples"`
	SampledBy []SampleRef `json:"sampled_by"`
}

// Key returns the case-insensitive match key of the record's title.
func (r *LineageRecord) Key() string {
	return TitleKey(r.Title)
}

// Normalize replaces nil relation slices with empty ones.
func (r *LineageRecord) Normalize() {
	if r.Samples == nil {
		r.Samples = []SampleRef{}
	}
	if r.SampledBy == nil {
		r.SampledBy = []SampleRef{}
	}
	for i := range r.Samples {
		if r.Samples[i].Artists == nil {
			r.Samples[i].Artists = []string{}
		}
	}
	for i := range r.SampledBy {
		if r.SampledBy[i].Artists == nil {
			r.SampledBy[i].Artists = []string{}
		}
	}
}

// HistoryEntry records one successful lookup made through the API.
type HistoryEntry struct {
	ID           string    `json:"id"`
	IP           string    `json:"ip"`
	Timestamp    time.Time `json:"timestamp"`
	RootSong     string    `json:"root_song"`
	TreeSnapshot TreeNode  `json:"tree_snapshot"`
}

// Clone returns a deep copy of the record.
func (r *LineageRecord) Clone() *LineageRecord {
	out := *r
	out.Samples = cloneRefs(r.Samples)
	out.SampledBy = cloneRefs(r.SampledBy)
	return &out
}

func cloneRefs(refs []SampleRef) []SampleRef {
	if refs == nil {
		return nil
	}
	out := make([]SampleRef, len(refs))
	for i, ref := range refs {
		out[i] = SampleRef{TrackName: ref.TrackName, Artists: append([]string(nil), ref.Artists...)}
		if ref.Artists != nil && out[i].Artists == nil {
			out[i].Artists = []string{}
		}
	}
	return out
}

package models

import "time"

// AnalysisRecord is a persisted analysis: the scored result plus the POI
// snapshot it was computed from, kept so profile switches can rescore
// without refetching providers.
type AnalysisRecord struct {
	ID         int64     `json:"id"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	RadiusM    int       `json:"radius_m"`
	ProfileKey string    `json:"profile_key"`
	ResultJSON string    `json:"-"`
	POIsJSON   string    `json:"-"`
	QuietScore float64   `json:"quiet_score"`
	BaseScore  float64   `json:"base_score"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the record's snapshot TTL has passed.
func (r *AnalysisRecord) Expired() bool {
	return time.Now().After(r.ExpiresAt)
}

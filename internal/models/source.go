package models

import "time"

// Source is a configured listing page that the discovery scheduler checks
// periodically.
type Source struct {
	ID                   string     `db:"id"                     json:"id"`
	Name                 string     `db:"name"                   json:"name"`
	ListingURL           string     `db:"listing_url"            json:"listing_url"`
	URLPattern           string     `db:"url_pattern"            json:"url_pattern,omitempty"`
	FetchIntervalMinutes int        `db:"fetch_interval_minutes" json:"fetch_interval_minutes"`
	IsActive             bool       `db:"is_active"              json:"is_active"`
	DelaySeconds         int        `db:"delay_seconds"          json:"delay_seconds,omitempty"`
	LastRunAt            *time.Time `db:"last_run_at"            json:"last_run_at,omitempty"`
	CreatedAt            time.Time  `db:"created_at"             json:"created_at"`
}

// Due reports whether the source should be checked now given its interval.
func (s *Source) Due(now time.Time) bool {
	if s.LastRunAt == nil {
		return true
	}
	interval := time.Duration(s.FetchIntervalMinutes) * time.Minute
	return now.Sub(*s.LastRunAt) >= interval
}

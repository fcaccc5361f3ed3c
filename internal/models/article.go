package models

import (
	"encoding/json"
	"time"
)

// Article status values. queued -> processing -> processed is monotone;
// the editorial states (approved, rejected, duplicated) are set by humans.
const (
	ArticleStatusQueued           = "queued"
	ArticleStatusSubmissionFailed = "submission_failed"
	ArticleStatusProcessing       = "processing"
	ArticleStatusProcessed        = "processed"
	ArticleStatusApproved         = "approved"
	ArticleStatusRejected         = "rejected"
	ArticleStatusDuplicated       = "duplicated"
)

// EditorialStatuses are the values an operator may PATCH onto an article.
var EditorialStatuses = []string{
	ArticleStatusProcessed,
	ArticleStatusApproved,
	ArticleStatusRejected,
	ArticleStatusDuplicated,
}

// ValidEditorialStatus reports whether s is an operator-settable status.
func ValidEditorialStatus(s string) bool {
	for _, v := range EditorialStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Article is the persistent memory of every URL the system has ever seen.
// The url column carries a unique index; concurrent discovery of the same
// URL is absorbed there.
type Article struct {
	ID           string          `db:"id"            json:"id"`
	SourceID     string          `db:"source_id"     json:"source_id"`
	URL          string          `db:"url"           json:"url"`
	Status       string          `db:"status"        json:"status"`
	DiscoveredAt time.Time       `db:"discovered_at" json:"discovered_at"`
	ProcessedAt  *time.Time      `db:"processed_at"  json:"processed_at,omitempty"`
	FinalOutput  json.RawMessage `db:"final_output"  json:"final_output,omitempty"`
}

package models

import (
	"database/sql"
	"time"
)

// Report types. These are the only two feed topics.
const (
	TypeHero       = "hero"
	TypeCorruption = "corruption"
)

// Report statuses.
const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusRejected = "rejected"
)

// Report source types.
const (
	SourceUser       = "user"
	SourceAggregated = "aggregated"
)

// ValidType reports whether t is one of the two known report types.
func ValidType(t string) bool {
	return t == TypeHero || t == TypeCorruption
}

// Report represents a row in the reports table.
type Report struct {
	ID                int64     `json:"id" db:"id"`
	Type              string    `json:"type" db:"type"`
	Title             string    `json:"title" db:"title"`
	Description       string    `json:"description" db:"description"`
	Location          string    `json:"location" db:"location"`
	State             string    `json:"state,omitempty" db:"state"`
	Category          string    `json:"category,omitempty" db:"category"`
	Tags              string    `json:"tags,omitempty" db:"tags"`
	Status            string    `json:"status" db:"status"`
	SourceType        string    `json:"source_type" db:"source_type"`
	SourceURL         string    `json:"source_url,omitempty" db:"source_url"`
	ContentHash       string    `json:"-" db:"content_hash"`
	ViewCount         int       `json:"view_count" db:"view_count"`
	AppreciationCount int       `json:"appreciation_count" db:"appreciation_count"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Submission is the provenance record created alongside a user report.
// Email is NULL exactly when the submitter chose to stay anonymous.
type Submission struct {
	ID          int64          `json:"id" db:"id"`
	ReportID    int64          `json:"report_id" db:"report_id"`
	SubmittedBy string         `json:"submitted_by" db:"submitted_by"`
	Email       sql.NullString `json:"email,omitempty" db:"email"`
	IsAnonymous bool           `json:"is_anonymous" db:"is_anonymous"`
	IPAddress   string         `json:"-" db:"ip_address"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

// ListFilters bounds and narrows the generic report listing.
type ListFilters struct {
	Status   string
	State    string
	Category string
	Limit    int
	Offset   int
}

// RawContent is one externally sourced candidate item before it has been
// sanitized, deduplicated and classified.
type RawContent struct {
	Text            string    `json:"text"`
	Title           string    `json:"title"`
	SourceURL       string    `json:"source_url"`
	SourceTimestamp time.Time `json:"source_timestamp"`
}

// Classification is the result of running the keyword classifier over a
// piece of text.
type Classification struct {
	Type       string   `json:"type"`
	Confidence float64  `json:"confidence"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
}

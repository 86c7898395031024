package models

import (
	"strings"
	"time"
)

// Status is the derived per-household state after reconciliation.
type Status string

const (
	// StatusNoMaster flags a household implied only by revisit data.
	StatusNoMaster Status = "NO_MASTER"
	// StatusPendingFirstVisit means the first interview itself is incomplete.
	StatusPendingFirstVisit Status = "PENDING_FIRST_VISIT"
	// StatusPendingRevisit means the first interview is done but no completed
	// revisit exists.
	StatusPendingRevisit Status = "PENDING_REVISIT"
	// StatusComplete means both stages are done.
	StatusComplete Status = "COMPLETE"
)

// Priority returns the classification priority. Lower sorts first in exports.
func (s Status) Priority() int {
	switch s {
	case StatusNoMaster:
		return 0
	case StatusPendingFirstVisit:
		return 1
	case StatusPendingRevisit:
		return 2
	case StatusComplete:
		return 3
	default:
		return 4
	}
}

// Label returns the human label used in exported reports.
func (s Status) Label() string {
	switch s {
	case StatusNoMaster:
		return "No master record"
	case StatusPendingFirstVisit:
		return "Pending first visit"
	case StatusPendingRevisit:
		return "Pending revisit"
	case StatusComplete:
		return "Complete"
	default:
		return string(s)
	}
}

// Actionable reports whether the household still requires field action.
func (s Status) Actionable() bool {
	return s != StatusComplete
}

// VisitRecord is one submission from either form, reduced to the fields the
// engine joins on. Extra payload fields are preserved for display.
type VisitRecord struct {
	HouseholdID  string
	SubmissionID string
	RawStatus    string
	SubmittedAt  time.Time
	Address      string
	Extra        map[string]any
}

// NormalizeHouseholdID applies the household identity normalization used for
// joining: trimmed and case-folded. At most one logical household exists per
// distinct normalized value.
func NormalizeHouseholdID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func normalizeStatus(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// PendencyRecord is the engine-owned derived entity, one per household. It is
// recomputed in full on every run; it is a pure function of the current
// Master and Revisit data.
type PendencyRecord struct {
	HouseholdID       string     `json:"household_id"`
	Address           string     `json:"address,omitempty"`
	Status            Status     `json:"status"`
	LastMasterVisitAt *time.Time `json:"last_master_visit_at,omitempty"`
	LastRevisitAt     *time.Time `json:"last_revisit_at,omitempty"`
	Attempts          int        `json:"attempts"`
}

// Stats summarizes a reconciled household set.
type Stats struct {
	TotalHouseholds int            `json:"total_households"`
	ByStatus        map[Status]int `json:"by_status"`
	CompletionRate  float64        `json:"completion_rate"`
}

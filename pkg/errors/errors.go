// Package errors defines the error taxonomy for reconciliation runs.
//
// Fatal errors (ConfigError, FetchError, ReconciliationError) abort the
// current operation and carry enough context to show to the user. Per-record
// and per-household problems are never errors in the Go sense: they are
// accumulated as Warning values and returned alongside results.
package errors

import (
	"fmt"
)

// ConfigError indicates a missing or invalid project configuration field.
// The run aborts before any fetch happens.
type ConfigError struct {
	ProjectID string
	Field     string
	Message   string
}

func NewConfigError(projectID, field, message string) *ConfigError {
	return &ConfigError{ProjectID: projectID, Field: field, Message: message}
}

func NewConfigErrorf(projectID, field, format string, args ...any) *ConfigError {
	return &ConfigError{ProjectID: projectID, Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid project configuration: %s", e.Message)
	}
	return fmt.Sprintf("invalid project configuration field '%s': %s", e.Field, e.Message)
}

// FetchError indicates that retrieval of one form's submissions exhausted all
// retries. It is fatal for the run that needed the data.
type FetchError struct {
	FormID string
	Err    error
}

func NewFetchError(formID string, err error) *FetchError {
	return &FetchError{FormID: formID, Err: err}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch submissions for form %s: %v", e.FormID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ReconciliationError indicates a caller contract breach, such as handing the
// engine a nil input set. It never fires for malformed individual records.
type ReconciliationError struct {
	Message string
}

func NewReconciliationError(message string) *ReconciliationError {
	return &ReconciliationError{Message: message}
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation aborted: %s", e.Message)
}

// WarningKind classifies per-record data-quality anomalies.
type WarningKind string

const (
	WarningMissingHouseholdID WarningKind = "missing_household_id"
	WarningBadTimestamp       WarningKind = "unparseable_timestamp"
	WarningOrphanRevisit      WarningKind = "orphan_revisit"
)

// Warning is a non-fatal per-record anomaly discovered during a run.
type Warning struct {
	Kind         WarningKind `json:"kind"`
	Form         string      `json:"form"`
	SubmissionID string      `json:"submission_id,omitempty"`
	HouseholdID  string      `json:"household_id,omitempty"`
	Detail       string      `json:"detail,omitempty"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s (form=%s submission=%s household=%s) %s",
		w.Kind, w.Form, w.SubmissionID, w.HouseholdID, w.Detail)
}

// PublishItemFailure records a failed sync-back write for one household. It
// is aggregated into the publish report, never propagated as a run error.
type PublishItemFailure struct {
	HouseholdID string
	Err         error
}

func (e *PublishItemFailure) Error() string {
	return fmt.Sprintf("sync-back write failed for household %s: %v", e.HouseholdID, e.Err)
}

func (e *PublishItemFailure) Unwrap() error {
	return e.Err
}

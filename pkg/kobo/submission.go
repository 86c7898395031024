package kobo

import (
	"fmt"
	"strconv"
	"time"
)

// Metadata keys present on every survey submission.
const (
	KeyID             = "_id"
	KeyUUID           = "_uuid"
	KeySubmissionTime = "_submission_time"
)

// Submission is one raw submission payload as returned by the survey API.
type Submission map[string]any

// ID returns the submission's unique identifier within its form. The numeric
// _id is preferred; _uuid is the fallback.
func (s Submission) ID() string {
	if v, ok := s[KeyID]; ok {
		switch id := v.(type) {
		case float64:
			return strconv.FormatInt(int64(id), 10)
		case string:
			if id != "" {
				return id
			}
		}
	}
	if v, ok := s[KeyUUID].(string); ok {
		return v
	}
	return ""
}

// submissionTimeLayouts covers the timestamp shapes the survey service emits.
var submissionTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// SubmissionTime parses the _submission_time metadata field, normalized to
// UTC.
func (s Submission) SubmissionTime() (time.Time, error) {
	raw, ok := s[KeySubmissionTime].(string)
	if !ok || raw == "" {
		return time.Time{}, fmt.Errorf("missing %s", KeySubmissionTime)
	}
	return ParseTimestamp(raw)
}

// ParseTimestamp parses any of the survey service's timestamp layouts.
func ParseTimestamp(raw string) (time.Time, error) {
	for _, layout := range submissionTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}

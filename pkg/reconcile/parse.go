package reconcile

import (
	"strings"

	apperrors "github.com/gustavoairestiago/cadastro-retorno/pkg/errors"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/fields"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/kobo"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/models"
)

// parseRecord reduces a raw submission to the fields the engine joins on.
// A malformed submission produces a warning, never an error: one bad record
// must not abort a run.
func parseRecord(sub kobo.Submission, resolver *fields.Resolver, form string) (*models.VisitRecord, *apperrors.Warning) {
	submissionID := sub.ID()

	householdID, ok := resolver.ResolveString(models.FieldHouseholdID, sub)
	if !ok {
		return nil, &apperrors.Warning{
			Kind:         apperrors.WarningMissingHouseholdID,
			Form:         form,
			SubmissionID: submissionID,
			Detail:       "submission has no household id at the configured path",
		}
	}

	submittedAt, err := sub.SubmissionTime()
	if err != nil {
		return nil, &apperrors.Warning{
			Kind:         apperrors.WarningBadTimestamp,
			Form:         form,
			SubmissionID: submissionID,
			HouseholdID:  models.NormalizeHouseholdID(householdID),
			Detail:       err.Error(),
		}
	}

	record := &models.VisitRecord{
		HouseholdID:  householdID,
		SubmissionID: submissionID,
		SubmittedAt:  submittedAt,
		Address:      buildAddress(sub, resolver),
		Extra:        sub,
	}
	if raw, ok := resolver.ResolveString(models.FieldStatus, sub); ok {
		record.RawStatus = raw
	}
	return record, nil
}

// buildAddress joins the configured address-part fields into one display
// string.
func buildAddress(sub kobo.Submission, resolver *fields.Resolver) string {
	parts := make([]string, 0, len(models.AddressFields))
	for _, logical := range models.AddressFields {
		if v, ok := resolver.ResolveString(logical, sub); ok {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

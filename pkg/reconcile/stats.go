package reconcile

import (
	"github.com/gustavoairestiago/cadastro-retorno/pkg/models"
)

// Aggregate computes summary statistics over a reconciled household set. It
// is a pure function: no I/O, no side effects, and an empty input yields all
// zeroes with a completion rate of 0.
func Aggregate(records []models.PendencyRecord) models.Stats {
	stats := models.Stats{
		TotalHouseholds: len(records),
		ByStatus: map[models.Status]int{
			models.StatusNoMaster:          0,
			models.StatusPendingFirstVisit: 0,
			models.StatusPendingRevisit:    0,
			models.StatusComplete:          0,
		},
	}

	for _, r := range records {
		stats.ByStatus[r.Status]++
	}

	if stats.TotalHouseholds > 0 {
		stats.CompletionRate = float64(stats.ByStatus[models.StatusComplete]) / float64(stats.TotalHouseholds)
	}
	return stats
}

package intake

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/joseph-ayodele/referral-intake/internal/common"
)

var (
	scansEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_intake_scans_enqueued_total",
			Help: "Total number of uploads accepted for processing",
		},
		[]string{"outcome"}, // outcome: ok, duplicate, invalid_input, error
	)

	resolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_intake_resolutions_total",
			Help: "Resolution attempts by target status and outcome",
		},
		[]string{"status", "outcome"},
	)

	mappingTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_intake_mapping_transitions_total",
			Help: "Field mapping apply/reject attempts by outcome",
		},
		[]string{"status", "outcome"},
	)
)

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrAlreadyResolved):
		return "already_resolved"
	case errors.Is(err, common.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	case errors.Is(err, common.ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}

package interviews

import (
	"fmt"

	"github.com/prepview/backend/internal/models"
)

// transitions is the interview status graph. Any state may fail; terminal
// states have no outgoing edges.
var transitions = map[models.InterviewStatus][]models.InterviewStatus{
	models.InterviewStatusCreated:          {models.InterviewStatusGeneratingVideos, models.InterviewStatusFailed},
	models.InterviewStatusGeneratingVideos: {models.InterviewStatusInProgress, models.InterviewStatusFailed},
	models.InterviewStatusInProgress:       {models.InterviewStatusProcessing, models.InterviewStatusFailed},
	models.InterviewStatusProcessing:       {models.InterviewStatusCompleted, models.InterviewStatusFailed},
	models.InterviewStatusCompleted:        nil,
	models.InterviewStatusFailed:           nil,
}

// CanTransition reports whether moving from one interview status to another
// is allowed by the lifecycle graph.
func CanTransition(from, to models.InterviewStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known interview status.
func ValidStatus(s models.InterviewStatus) bool {
	_, ok := transitions[s]
	return ok
}

// InvalidTransitionError is returned when a guarded transition is rejected.
type InvalidTransitionError struct {
	From models.InterviewStatus
	To   models.InterviewStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid interview transition %s -> %s", e.From, e.To)
}

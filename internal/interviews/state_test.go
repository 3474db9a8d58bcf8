package interviews

import (
	"testing"

	"github.com/prepview/backend/internal/models"
)

func TestTransitionGraph(t *testing.T) {
	tests := []struct {
		from, to models.InterviewStatus
		want     bool
	}{
		{models.InterviewStatusCreated, models.InterviewStatusGeneratingVideos, true},
		{models.InterviewStatusCreated, models.InterviewStatusFailed, true},
		{models.InterviewStatusCreated, models.InterviewStatusInProgress, false},
		{models.InterviewStatusCreated, models.InterviewStatusCompleted, false},
		{models.InterviewStatusGeneratingVideos, models.InterviewStatusInProgress, true},
		{models.InterviewStatusGeneratingVideos, models.InterviewStatusProcessing, false},
		{models.InterviewStatusInProgress, models.InterviewStatusProcessing, true},
		{models.InterviewStatusInProgress, models.InterviewStatusCompleted, false},
		{models.InterviewStatusProcessing, models.InterviewStatusCompleted, true},
		{models.InterviewStatusProcessing, models.InterviewStatusFailed, true},
		{models.InterviewStatusCompleted, models.InterviewStatusFailed, false},
		{models.InterviewStatusFailed, models.InterviewStatusCreated, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, terminal := range []models.InterviewStatus{models.InterviewStatusCompleted, models.InterviewStatusFailed} {
		for target := range transitions {
			if CanTransition(terminal, target) {
				t.Errorf("terminal state %s allows transition to %s", terminal, target)
			}
		}
	}
}

func TestValidStatus(t *testing.T) {
	if !ValidStatus(models.InterviewStatusProcessing) {
		t.Error("PROCESSING should be a valid status")
	}
	if ValidStatus(models.InterviewStatus("ARCHIVED")) {
		t.Error("unknown status should be invalid")
	}
}

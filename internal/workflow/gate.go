package workflow

import "time"

// Outcome is a reviewer's verdict.
type Outcome string

const (
	OutcomeRecommend      Outcome = "RECOMMEND"
	OutcomeRequestUpdates Outcome = "REQUEST_UPDATES"
)

// IsValid reports whether o is a known outcome.
func (o Outcome) IsValid() bool {
	return o == OutcomeRecommend || o == OutcomeRequestUpdates
}

// Review is the engine's view of one review record.
type Review struct {
	Reviewer  string
	Outcome   Outcome
	Phase     Phase
	CreatedAt time.Time
}

// LatestOutcomes returns each reviewer's most recent outcome.
// Reviews are ordered oldest first; equal timestamps resolve by position.
func LatestOutcomes(reviews []Review) map[string]Outcome {
	latest := make(map[string]Review, len(reviews))
	for _, r := range reviews {
		prev, ok := latest[r.Reviewer]
		if ok && r.CreatedAt.Before(prev.CreatedAt) {
			continue
		}
		latest[r.Reviewer] = r
	}
	out := make(map[string]Outcome, len(latest))
	for reviewer, r := range latest {
		out[reviewer] = r.Outcome
	}
	return out
}

// CheckApprovalGate requires every assignee's latest review to recommend.
func (e *Engine) CheckApprovalGate(assignees []string, reviews []Review) error {
	latest := LatestOutcomes(reviews)

	var missing, updates []string
	for _, a := range assignees {
		outcome, ok := latest[a]
		switch {
		case !ok:
			missing = append(missing, a)
		case outcome != OutcomeRecommend:
			updates = append(updates, a)
		}
	}
	if len(missing) == 0 && len(updates) == 0 {
		return nil
	}
	return &GateError{Missing: sortedCopy(missing), RequestedUpdates: sortedCopy(updates)}
}

func reviewsInPhase(reviews []Review, phase Phase) []Review {
	out := make([]Review, 0, len(reviews))
	for _, r := range reviews {
		if r.Phase == phase {
			out = append(out, r)
		}
	}
	return out
}

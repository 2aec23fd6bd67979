package simplemedia

import "fmt"

// allowedTransitions is the complete status table. A transition missing
// from it is illegal.
var allowedTransitions = map[MediaStatus][]MediaStatus{
	StatusUploading:  {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusReady, StatusFailed},
	StatusReady:      {},
	StatusFailed:     {},
}

// CanTransitionTo reports whether the table permits s -> next.
func (s MediaStatus) CanTransitionTo(next MediaStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s MediaStatus) IsTerminal() bool {
	targets, ok := allowedTransitions[s]
	return ok && len(targets) == 0
}

// validateTransition returns an InvalidStatusTransition error when the
// table does not permit from -> to.
func validateTransition(from, to MediaStatus) error {
	if from.CanTransitionTo(to) {
		return nil
	}
	return newError(KindInvalidStatusTransition, "",
		fmt.Sprintf("cannot transition from %s to %s", from, to), nil)
}

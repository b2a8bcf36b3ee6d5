package driven

import "github.com/parlorchat/loginflow/internal/domain/model"

// DecisionListener receives certificate prompts from the trust decision gate.
// The UI layer implements it and must eventually resolve every prompt through
// the gate with accept or reject; an unresolved prompt is rejected implicitly
// when the owning session ends.
//
// DecisionRequested is called from the suspended load's goroutine and must
// not block.
type DecisionListener interface {
	DecisionRequested(pending model.PendingDecision)
}

// DecisionListenerFunc adapts a function to the DecisionListener interface.
type DecisionListenerFunc func(pending model.PendingDecision)

// DecisionRequested calls f(pending).
func (f DecisionListenerFunc) DecisionRequested(pending model.PendingDecision) {
	f(pending)
}

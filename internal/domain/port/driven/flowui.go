package driven

import "github.com/parlorchat/loginflow/internal/domain/model"

// FlowUI defines the driven port for the screen hosting the login flow.
// The Session Driver reports reconciliation results through it; every
// rejection and store failure returns the user to the flow's root screen
// with a categorized message, never a crash.
type FlowUI interface {
	// AccountCreated is called after a successful store write for a new
	// account. duplicateNoted is carried for follow-up messaging.
	AccountCreated(account model.Account, duplicateNoted bool)

	// PasswordUpdated is called after the current account's token was
	// replaced.
	PasswordUpdated(accountID int64)

	// FlowFailed returns the user to the root screen with a message keyed by
	// the outcome kind (duplicate, mismatch, scheduled deletion) or a store
	// error.
	FlowFailed(kind model.OutcomeKind, err error)
}

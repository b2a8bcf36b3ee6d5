package model

// OutcomeKind classifies the result of reconciling parsed login data against
// the account store.
type OutcomeKind string

const (
	// OutcomeCreateAccount means a new account should be created from the record.
	OutcomeCreateAccount OutcomeKind = "create_account"
	// OutcomeUpdatePassword means the current account's token should be replaced.
	OutcomeUpdatePassword OutcomeKind = "update_password"
	// OutcomeRejectDuplicate means an account with the same username and server
	// already exists; nothing is created.
	OutcomeRejectDuplicate OutcomeKind = "reject_duplicate"
	// OutcomeRejectMismatch means a password update was requested but the record
	// names a different user than the current account.
	OutcomeRejectMismatch OutcomeKind = "reject_mismatch"
	// OutcomeRejectScheduledDeletion means the matching account is queued for
	// removal and must not be recreated or updated.
	OutcomeRejectScheduledDeletion OutcomeKind = "reject_scheduled_deletion"
)

// Outcome is the fully computed reconciliation decision. No store mutation
// happens while the decision is still being made; the Session Driver applies
// the outcome afterwards.
type Outcome struct {
	Kind OutcomeKind

	// Record is set for OutcomeCreateAccount.
	Record *LoginData

	// AccountID and Token are set for OutcomeUpdatePassword.
	AccountID int64
	Token     string

	// DuplicateNoted is carried for user messaging when an existing account
	// was found while another rule decided the final kind.
	DuplicateNoted bool
}

// IsRejection reports whether the outcome ends the flow without a store write.
func (o Outcome) IsRejection() bool {
	switch o.Kind {
	case OutcomeRejectDuplicate, OutcomeRejectMismatch, OutcomeRejectScheduledDeletion:
		return true
	}
	return false
}

package application

import (
	"context"
	"fmt"

	"github.com/parlorchat/loginflow/internal/domain/model"
	"github.com/parlorchat/loginflow/internal/domain/port/driven"
)

// Reconciler turns parsed login data into an account outcome and applies it
// to the account store. Deciding and applying are separate steps: no store
// mutation happens while the decision is still being made.
type Reconciler struct {
	accounts driven.AccountStore
}

// NewReconciler creates a Reconciler backed by the given account store.
func NewReconciler(accounts driven.AccountStore) *Reconciler {
	return &Reconciler{accounts: accounts}
}

// Decide evaluates the reconciliation table. Rules are ordered; the first
// match wins:
//
//  1. password update for a different username than the current account
//     rejects with a mismatch;
//  2. an existing (username, server) account outside password-update mode is
//     a duplicate candidate, noted on the outcome either way;
//  3. an account scheduled for deletion rejects regardless of the duplicate
//     candidate;
//  4. password update with a current account replaces its token;
//  5. otherwise a new account is created.
func Decide(record model.LoginData, current *model.Account, isPasswordUpdate, exists, scheduledForDeletion bool) model.Outcome {
	if isPasswordUpdate && current != nil && current.Username != record.Username {
		return model.Outcome{Kind: model.OutcomeRejectMismatch}
	}

	duplicate := !isPasswordUpdate && exists

	if scheduledForDeletion {
		return model.Outcome{Kind: model.OutcomeRejectScheduledDeletion, DuplicateNoted: duplicate}
	}
	if duplicate {
		return model.Outcome{Kind: model.OutcomeRejectDuplicate, DuplicateNoted: true}
	}
	if isPasswordUpdate && current != nil {
		return model.Outcome{Kind: model.OutcomeUpdatePassword, AccountID: current.ID, Token: record.Token}
	}
	return model.Outcome{Kind: model.OutcomeCreateAccount, Record: &record}
}

// Resolve runs the store lookups for record and evaluates the decision table.
func (r *Reconciler) Resolve(ctx context.Context, record model.LoginData, isPasswordUpdate bool) (model.Outcome, error) {
	current, err := r.accounts.Current(ctx)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("load current account: %w", err)
	}

	exists, err := r.accounts.Exists(ctx, record.Username, record.ServerURL)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("check account exists: %w", err)
	}

	scheduled, err := r.accounts.IsScheduledForDeletion(ctx, record.Username, record.ServerURL)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("check scheduled deletion: %w", err)
	}

	return Decide(record, current, isPasswordUpdate, exists, scheduled), nil
}

// Apply performs the store mutation for a computed outcome. Rejections are
// no-ops. A created account becomes the current one. The returned account is
// non-nil only for OutcomeCreateAccount.
func (r *Reconciler) Apply(ctx context.Context, outcome model.Outcome) (*model.Account, error) {
	switch outcome.Kind {
	case model.OutcomeCreateAccount:
		account, err := r.accounts.Create(ctx, *outcome.Record)
		if err != nil {
			return nil, fmt.Errorf("create account: %w", err)
		}
		if err := r.accounts.SetCurrent(ctx, account.ID); err != nil {
			return nil, fmt.Errorf("set current account: %w", err)
		}
		account.Current = true
		return account, nil

	case model.OutcomeUpdatePassword:
		if err := r.accounts.UpdateToken(ctx, outcome.AccountID, outcome.Token); err != nil {
			return nil, fmt.Errorf("update token: %w", err)
		}
		return nil, nil

	default:
		return nil, nil
	}
}

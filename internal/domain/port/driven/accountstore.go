// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"

	"github.com/parlorchat/loginflow/internal/domain/model"
)

// Sentinel errors returned by AccountStore implementations.
var (
	// ErrAccountNotFound indicates the requested account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists indicates an account with the same username and server
	// URL already exists.
	ErrAccountExists = errors.New("account already exists")
)

// ErrEncryptionKeyNotSet is returned by AccountStore operations when
// LOGINFLOW_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set LOGINFLOW_SECRET_KEY")

// AccountStore defines the driven port for account persistence. The adapter
// layer is responsible for encrypting tokens at rest; this interface operates
// on plaintext tokens at the domain boundary.
//
// Create and UpdateToken are all-or-nothing: on error no partial account
// state is left behind.
type AccountStore interface {
	// Current returns the account marked current, or (nil, nil) when no
	// account is signed in.
	Current(ctx context.Context) (*model.Account, error)

	// Exists reports whether an account with the given username and server
	// URL is stored.
	Exists(ctx context.Context, username, serverURL string) (bool, error)

	// IsScheduledForDeletion reports whether the matching account is queued
	// for removal. Returns false when no such account exists.
	IsScheduledForDeletion(ctx context.Context, username, serverURL string) (bool, error)

	// Create stores a new account from parsed login data and returns it.
	// Returns ErrAccountExists when the (username, serverURL) pair is taken.
	Create(ctx context.Context, data model.LoginData) (*model.Account, error)

	// UpdateToken replaces the stored token for the given account.
	// Returns ErrAccountNotFound when the account does not exist.
	UpdateToken(ctx context.Context, accountID int64, token string) error

	// SetCurrent marks the given account current and clears the flag on all
	// others. Returns ErrAccountNotFound when the account does not exist.
	SetCurrent(ctx context.Context, accountID int64) error

	// ScheduleForDeletion flags the account for background removal.
	// Returns ErrAccountNotFound when the account does not exist.
	ScheduleForDeletion(ctx context.Context, accountID int64) error

	// List returns all stored accounts ordered by server URL then username.
	List(ctx context.Context) ([]model.Account, error)
}

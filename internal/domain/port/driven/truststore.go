package driven

import (
	"context"

	"github.com/parlorchat/loginflow/internal/domain/model"
)

// TrustedCertStore defines the driven port for persisting user-approved
// certificates. The in-memory overlay is hydrated from List at startup and
// appended through Add; there is no removal in the current scope.
type TrustedCertStore interface {
	// Add persists an approved certificate. Adding the same (host,
	// fingerprint) pair twice is a no-op.
	Add(ctx context.Context, cert model.TrustedCertificate) error

	// List returns all approved certificates ordered by approval time.
	List(ctx context.Context) ([]model.TrustedCertificate, error)
}

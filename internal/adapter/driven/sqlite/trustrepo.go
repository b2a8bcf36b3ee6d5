package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/parlorchat/loginflow/internal/domain/model"
	"github.com/parlorchat/loginflow/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TrustedCertStore = (*TrustRepo)(nil)

// TrustRepo is the SQLite implementation of the TrustedCertStore port. Rows
// are append-only: user-approved certificates are never evicted by this
// adapter.
type TrustRepo struct {
	db *DB
}

// NewTrustRepo creates a new TrustRepo.
func NewTrustRepo(db *DB) *TrustRepo {
	return &TrustRepo{db: db}
}

// Add persists an approved certificate. Re-adding the same (host,
// fingerprint) pair is a no-op.
func (r *TrustRepo) Add(ctx context.Context, cert model.TrustedCertificate) error {
	approvedAt := cert.ApprovedAt
	if approvedAt.IsZero() {
		approvedAt = time.Now().UTC()
	}

	const query = `INSERT OR IGNORE INTO trusted_certificates (host, fingerprint, certificate, approved_at)
		VALUES (?, ?, ?, ?)`
	_, err := r.db.Writer.ExecContext(ctx, query,
		cert.Host, cert.Fingerprint, cert.Raw, approvedAt.Format("2006-01-02T15:04:05Z"))
	if err != nil {
		return fmt.Errorf("add trusted certificate for %s: %w", cert.Host, err)
	}
	return nil
}

// List returns all approved certificates ordered by approval time.
func (r *TrustRepo) List(ctx context.Context) ([]model.TrustedCertificate, error) {
	const query = `SELECT id, host, fingerprint, certificate, approved_at
		FROM trusted_certificates ORDER BY approved_at, id`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list trusted certificates: %w", err)
	}
	defer rows.Close()

	var certs []model.TrustedCertificate
	for rows.Next() {
		var cert model.TrustedCertificate
		var approvedAt string
		if err := rows.Scan(&cert.ID, &cert.Host, &cert.Fingerprint, &cert.Raw, &approvedAt); err != nil {
			return nil, fmt.Errorf("scan trusted certificate: %w", err)
		}
		if cert.ApprovedAt, err = parseTime(approvedAt); err != nil {
			return nil, fmt.Errorf("parse approved_at: %w", err)
		}
		certs = append(certs, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trusted certificates: %w", err)
	}
	return certs, nil
}

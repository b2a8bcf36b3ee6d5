package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlorchat/loginflow/internal/domain/model"
)

func testTrustedCert(host, fingerprint string, approvedAt time.Time) model.TrustedCertificate {
	return model.TrustedCertificate{
		Host:        host,
		Fingerprint: fingerprint,
		Raw:         []byte("der-" + fingerprint),
		ApprovedAt:  approvedAt,
	}
}

func TestTrustRepo_AddAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrustRepo(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	cert := testTrustedCert("cloud.example", "aa11", now)
	require.NoError(t, repo.Add(ctx, cert))

	stored, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "cloud.example", stored[0].Host)
	assert.Equal(t, "aa11", stored[0].Fingerprint)
	assert.Equal(t, []byte("der-aa11"), stored[0].Raw)
	assert.NotZero(t, stored[0].ID)
}

func TestTrustRepo_AddIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrustRepo(db)
	ctx := context.Background()

	cert := testTrustedCert("cloud.example", "aa11", time.Now().UTC())
	require.NoError(t, repo.Add(ctx, cert))
	require.NoError(t, repo.Add(ctx, cert))

	stored, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestTrustRepo_SameFingerprintDifferentHosts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrustRepo(db)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.Add(ctx, testTrustedCert("a.example", "aa11", now)))
	require.NoError(t, repo.Add(ctx, testTrustedCert("b.example", "aa11", now)))

	stored, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestTrustRepo_ListOrderedByApproval(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrustRepo(db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.Add(ctx, testTrustedCert("late.example", "cc33", base.Add(time.Hour))))
	require.NoError(t, repo.Add(ctx, testTrustedCert("early.example", "bb22", base)))

	stored, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "early.example", stored[0].Host)
	assert.Equal(t, "late.example", stored[1].Host)
}

func TestTrustRepo_ListEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrustRepo(db)

	stored, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

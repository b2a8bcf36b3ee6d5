package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/parlorchat/loginflow/internal/domain/model"
	"github.com/parlorchat/loginflow/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AccountStore = (*AccountRepo)(nil)

// AccountRepo is the SQLite implementation of the AccountStore port.
// Account tokens are encrypted with AES-256-GCM before write and decrypted
// after read; the rest of the row is stored in the clear.
type AccountRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil disables token storage.
}

// NewAccountRepo creates a new AccountRepo. key must be 32 bytes for
// AES-256-GCM, or nil to disable account storage (token-bearing operations
// will return ErrEncryptionKeyNotSet).
func NewAccountRepo(db *DB, key []byte) *AccountRepo {
	return &AccountRepo{db: db, key: key}
}

// Current returns the account marked current, or (nil, nil) when none is.
func (r *AccountRepo) Current(ctx context.Context) (*model.Account, error) {
	const query = `SELECT id, username, server_url, token, is_current, scheduled_for_deletion, created_at, updated_at
		FROM accounts WHERE is_current = 1`

	account, err := r.scanAccount(r.db.Reader.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get current account: %w", err)
	}
	return account, nil
}

// Exists reports whether an account with the given username and server URL
// is stored.
func (r *AccountRepo) Exists(ctx context.Context, username, serverURL string) (bool, error) {
	const query = `SELECT COUNT(*) FROM accounts WHERE username = ? AND server_url = ?`

	var count int
	if err := r.db.Reader.QueryRowContext(ctx, query, username, serverURL).Scan(&count); err != nil {
		return false, fmt.Errorf("check account exists: %w", err)
	}
	return count > 0, nil
}

// IsScheduledForDeletion reports whether the matching account is queued for
// removal. A missing account is not scheduled.
func (r *AccountRepo) IsScheduledForDeletion(ctx context.Context, username, serverURL string) (bool, error) {
	const query = `SELECT scheduled_for_deletion FROM accounts WHERE username = ? AND server_url = ?`

	var scheduled bool
	err := r.db.Reader.QueryRowContext(ctx, query, username, serverURL).Scan(&scheduled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check scheduled deletion: %w", err)
	}
	return scheduled, nil
}

// Create stores a new account from parsed login data and returns it.
func (r *AccountRepo) Create(ctx context.Context, data model.LoginData) (*model.Account, error) {
	encrypted, err := r.encrypt(data.Token)
	if err != nil {
		return nil, err
	}

	const query = `INSERT INTO accounts (username, server_url, token) VALUES (?, ?, ?)`
	result, err := r.db.Writer.ExecContext(ctx, query, data.Username, data.ServerURL, encrypted)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, fmt.Errorf("insert account %q: %w", data.Username, driven.ErrAccountExists)
		}
		return nil, fmt.Errorf("insert account %q: %w", data.Username, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return r.getByID(ctx, id)
}

// UpdateToken replaces the stored token for the given account.
func (r *AccountRepo) UpdateToken(ctx context.Context, accountID int64, token string) error {
	encrypted, err := r.encrypt(token)
	if err != nil {
		return err
	}

	const query = `UPDATE accounts SET token = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	result, err := r.db.Writer.ExecContext(ctx, query, encrypted, accountID)
	if err != nil {
		return fmt.Errorf("update token for account %d: %w", accountID, err)
	}
	return requireRowAffected(result)
}

// SetCurrent marks the given account current and clears the flag on all
// others, in one transaction.
func (r *AccountRepo) SetCurrent(ctx context.Context, accountID int64) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set current: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET is_current = 0 WHERE is_current = 1`); err != nil {
		return fmt.Errorf("clear current flag: %w", err)
	}

	result, err := tx.ExecContext(ctx, `UPDATE accounts SET is_current = 1 WHERE id = ?`, accountID)
	if err != nil {
		return fmt.Errorf("set current flag for account %d: %w", accountID, err)
	}
	if err := requireRowAffected(result); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set current: %w", err)
	}
	return nil
}

// ScheduleForDeletion flags the account for background removal.
func (r *AccountRepo) ScheduleForDeletion(ctx context.Context, accountID int64) error {
	const query = `UPDATE accounts SET scheduled_for_deletion = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	result, err := r.db.Writer.ExecContext(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("schedule account %d for deletion: %w", accountID, err)
	}
	return requireRowAffected(result)
}

// List returns all stored accounts ordered by server URL then username.
func (r *AccountRepo) List(ctx context.Context) ([]model.Account, error) {
	const query = `SELECT id, username, server_url, token, is_current, scheduled_for_deletion, created_at, updated_at
		FROM accounts ORDER BY server_url, username`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		account, err := r.scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepo) getByID(ctx context.Context, id int64) (*model.Account, error) {
	const query = `SELECT id, username, server_url, token, is_current, scheduled_for_deletion, created_at, updated_at
		FROM accounts WHERE id = ?`

	account, err := r.scanAccount(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %d: %w", id, err)
	}
	return account, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *AccountRepo) scanAccount(row rowScanner) (*model.Account, error) {
	var account model.Account
	var encrypted, createdAt, updatedAt string

	if err := row.Scan(
		&account.ID,
		&account.Username,
		&account.ServerURL,
		&encrypted,
		&account.Current,
		&account.ScheduledForDeletion,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	token, err := r.decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt token for account %d: %w", account.ID, err)
	}
	account.Token = token

	if account.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if account.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &account, nil
}

// encrypt encrypts a token using AES-256-GCM and returns a base64-encoded
// string containing the nonce (12 bytes) prepended to the ciphertext.
func (r *AccountRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *AccountRepo) decrypt(encoded string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}
	return string(plaintext), nil
}

func requireRowAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return driven.ErrAccountNotFound
	}
	return nil
}

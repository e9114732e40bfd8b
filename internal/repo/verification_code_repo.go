package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/tooldir/internal/model"
	"github.com/xxxsen/tooldir/internal/pkg/dbutil"
	"github.com/xxxsen/tooldir/internal/pkg/timeutil"
	"github.com/xxxsen/tooldir/internal/verify"
)

const verificationTable = "verification_codes"

var verificationColumns = []string{"email", "purpose", "code_hash", "created_at", "expires_at", "consumed_at", "attempt_count"}

// VerificationCodeRepo keeps one row per (email, purpose) carrying both the
// active code and the throttle timestamp. It serves as verify.Store and
// verify.ThrottleGuard.
type VerificationCodeRepo struct {
	db *sql.DB
}

func NewVerificationCodeRepo(db *sql.DB) *VerificationCodeRepo {
	return &VerificationCodeRepo{db: db}
}

var (
	_ verify.Store         = (*VerificationCodeRepo)(nil)
	_ verify.ThrottleGuard = (*VerificationCodeRepo)(nil)
)

func (r *VerificationCodeRepo) Put(ctx context.Context, code *model.VerificationCode, _ time.Duration) error {
	sqlStr := dbutil.Rebind(`INSERT INTO verification_codes (email, purpose, code_hash, created_at, expires_at, consumed_at, attempt_count)
VALUES (?, ?, ?, ?, ?, 0, 0)
ON CONFLICT (email, purpose) DO UPDATE SET
    code_hash = EXCLUDED.code_hash,
    created_at = EXCLUDED.created_at,
    expires_at = EXCLUDED.expires_at,
    consumed_at = 0,
    attempt_count = 0`)
	_, err := r.db.ExecContext(ctx, sqlStr, code.Email, code.Purpose, code.CodeHash, code.CreatedAt, code.ExpiresAt)
	return err
}

func (r *VerificationCodeRepo) Get(ctx context.Context, key verify.Key) (*model.VerificationCode, error) {
	where := map[string]interface{}{
		"email":       key.Email,
		"purpose":     key.Purpose.String(),
		"consumed_at": 0,
		"code_hash !=": "",
	}
	sqlStr, args, err := builder.BuildSelect(verificationTable, where, verificationColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, verify.ErrNotFound
	}
	return scanVerificationCode(rows)
}

// Delete retires the code but keeps the row so the throttle timestamp
// survives.
func (r *VerificationCodeRepo) Delete(ctx context.Context, key verify.Key) error {
	where := map[string]interface{}{
		"email":       key.Email,
		"purpose":     key.Purpose.String(),
		"consumed_at": 0,
		"code_hash !=": "",
	}
	update := map[string]interface{}{"consumed_at": timeutil.NowUnix()}
	sqlStr, args, err := builder.BuildUpdate(verificationTable, where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return verify.ErrNotFound
	}
	return nil
}

// Mutate locks the row with SELECT ... FOR UPDATE for the length of one
// transaction, so concurrent verifiers of the same key run one after another.
func (r *VerificationCodeRepo) Mutate(ctx context.Context, key verify.Key, fn verify.MutateFunc) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	sqlStr := dbutil.Rebind(`SELECT email, purpose, code_hash, created_at, expires_at, consumed_at, attempt_count
FROM verification_codes WHERE email = ? AND purpose = ? FOR UPDATE`)
	rows, err := tx.QueryContext(ctx, sqlStr, key.Email, key.Purpose.String())
	if err != nil {
		return err
	}
	var current *model.VerificationCode
	if rows.Next() {
		current, err = scanVerificationCode(rows)
		if err != nil {
			_ = rows.Close()
			return err
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()
	if current != nil && (current.Consumed() || current.CodeHash == "") {
		current = nil
	}

	switch fn(current) {
	case verify.ActionSave:
		if current == nil {
			return nil
		}
		_, err = tx.ExecContext(ctx, dbutil.Rebind(`UPDATE verification_codes SET attempt_count = ? WHERE email = ? AND purpose = ?`),
			current.AttemptCount, key.Email, key.Purpose.String())
	case verify.ActionRetire:
		if current == nil {
			return nil
		}
		consumedAt := current.ConsumedAt
		if consumedAt == 0 {
			consumedAt = timeutil.NowUnix()
		}
		_, err = tx.ExecContext(ctx, dbutil.Rebind(`UPDATE verification_codes SET consumed_at = ?, attempt_count = ? WHERE email = ? AND purpose = ?`),
			consumedAt, current.AttemptCount, key.Email, key.Purpose.String())
	default:
		return nil
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

// CheckAndRecord moves last_issued_at forward only when the previous
// issuance is at least cooldown old; the conditional upsert is the atomic
// check.
func (r *VerificationCodeRepo) CheckAndRecord(ctx context.Context, key verify.Key, now time.Time, cooldown time.Duration) (time.Duration, error) {
	nowUnix := now.Unix()
	cooldownSecs := int64(cooldown / time.Second)
	sqlStr := dbutil.Rebind(`INSERT INTO verification_codes (email, purpose, last_issued_at) VALUES (?, ?, ?)
ON CONFLICT (email, purpose) DO UPDATE SET last_issued_at = EXCLUDED.last_issued_at
WHERE verification_codes.last_issued_at <= ?
RETURNING last_issued_at`)
	var recorded int64
	err := r.db.QueryRowContext(ctx, sqlStr, key.Email, key.Purpose.String(), nowUnix, nowUnix-cooldownSecs).Scan(&recorded)
	if err == nil {
		return 0, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	var last int64
	err = r.db.QueryRowContext(ctx, dbutil.Rebind(`SELECT last_issued_at FROM verification_codes WHERE email = ? AND purpose = ?`),
		key.Email, key.Purpose.String()).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("read last_issued_at: %w", err)
	}
	wait := time.Duration(last+cooldownSecs-nowUnix) * time.Second
	if wait <= 0 {
		wait = time.Second
	}
	return wait, nil
}

// DeleteInactive removes rows whose code is dead and whose throttle window
// has passed.
func (r *VerificationCodeRepo) DeleteInactive(ctx context.Context, now int64, cooldown time.Duration) (int64, error) {
	sqlStr := dbutil.Rebind(`DELETE FROM verification_codes
WHERE (consumed_at <> 0 OR code_hash = '' OR expires_at < ?) AND last_issued_at <= ?`)
	result, err := r.db.ExecContext(ctx, sqlStr, now, now-int64(cooldown/time.Second))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanVerificationCode(rows *sql.Rows) (*model.VerificationCode, error) {
	var code model.VerificationCode
	if err := rows.Scan(&code.Email, &code.Purpose, &code.CodeHash, &code.CreatedAt, &code.ExpiresAt, &code.ConsumedAt, &code.AttemptCount); err != nil {
		return nil, err
	}
	return &code, nil
}

/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/vault/internal/apierror"
)

// SetPinHash stores the first PIN of a user. An existing PIN is never replaced here.
func (d Datasource) SetPinHash(ctx context.Context, userID, hash string) error {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Saving pin hash")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE vault.users SET pin_hash = $2, pin_failed_attempts = 0, pin_locked_until = NULL, updated_at = NOW()
		WHERE user_id = $1 AND pin_hash IS NULL
	`, userID, hash)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to save PIN", errors.Wrap(err, "set pin hash"))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rows == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, "PIN already set. Use the reset flow to change it", nil)
	}
	return nil
}

// RecordPinFailure counts a failed attempt and locks the PIN once maxAttempts is reached.
func (d Datasource) RecordPinFailure(ctx context.Context, userID string, maxAttempts int, lockUntil time.Time) (int, *time.Time, error) {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Recording pin failure")
	defer span.End()

	var attempts int
	var locked sql.NullTime
	err := d.Conn.QueryRowContext(ctx, `
		UPDATE vault.users
		SET pin_failed_attempts = pin_failed_attempts + 1,
			pin_locked_until = CASE WHEN pin_failed_attempts + 1 >= $2 THEN $3 ELSE pin_locked_until END,
			updated_at = NOW()
		WHERE user_id = $1
		RETURNING pin_failed_attempts, pin_locked_until
	`, userID, maxAttempts, lockUntil).Scan(&attempts, &locked)
	if err != nil {
		return 0, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record PIN attempt", errors.Wrap(err, "record pin failure"))
	}
	if locked.Valid {
		t := locked.Time
		return attempts, &t, nil
	}
	return attempts, nil, nil
}

func (d Datasource) ClearPinFailures(ctx context.Context, userID string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE vault.users SET pin_failed_attempts = 0, pin_locked_until = NULL
		WHERE user_id = $1 AND (pin_failed_attempts > 0 OR pin_locked_until IS NOT NULL)
	`, userID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to clear PIN attempts", errors.Wrap(err, "clear pin failures"))
	}
	return nil
}

func (d Datasource) SetPinResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Saving pin reset token")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `
		UPDATE vault.users SET pin_reset_token_hash = $2, pin_reset_expires_at = $3, updated_at = NOW()
		WHERE user_id = $1
	`, userID, tokenHash, expiresAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to save reset token", errors.Wrap(err, "set pin reset token"))
	}
	return nil
}

// ResetPinWithToken swaps in a new PIN for the holder of an unexpired token and burns the token.
func (d Datasource) ResetPinWithToken(ctx context.Context, tokenHash, newPinHash string, now time.Time) (string, error) {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Resetting pin with token")
	defer span.End()

	var userID string
	err := d.Conn.QueryRowContext(ctx, `
		UPDATE vault.users
		SET pin_hash = $2, pin_reset_token_hash = NULL, pin_reset_expires_at = NULL,
			pin_failed_attempts = 0, pin_locked_until = NULL, updated_at = NOW()
		WHERE pin_reset_token_hash = $1 AND pin_reset_expires_at > $3
		RETURNING user_id
	`, tokenHash, newPinHash, now).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", apierror.NewAPIError(apierror.ErrUnauthorized, "Invalid or expired reset token", nil)
	}
	if err != nil {
		return "", apierror.NewAPIError(apierror.ErrInternalServer, "Failed to reset PIN", errors.Wrap(err, "reset pin"))
	}
	return userID, nil
}

func (d Datasource) PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE vault.users SET pin_reset_token_hash = NULL, pin_reset_expires_at = NULL
		WHERE pin_reset_expires_at IS NOT NULL AND pin_reset_expires_at <= $1
	`, now)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to purge reset tokens", errors.Wrap(err, "purge reset tokens"))
	}
	return result.RowsAffected()
}

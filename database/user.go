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
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/vault/internal/apierror"
	"github.com/blnkfinance/vault/model"
)

const userColumns = `user_id, fullname, email, password_hash, savings_account_number, current_account_number,
	savings, current, loan, inflow, outflow, pin_hash, pin_failed_attempts, pin_locked_until,
	is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	var pinHash sql.NullString
	var lockedUntil sql.NullTime
	err := row.Scan(
		&u.UserID, &u.Fullname, &u.Email, &u.PasswordHash, &u.SavingsAccountNumber, &u.CurrentAccountNumber,
		&u.Balances.Savings, &u.Balances.Current, &u.Balances.Loan, &u.Balances.Inflow, &u.Balances.Outflow,
		&pinHash, &u.PinFailedAttempts, &lockedUntil,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.PinHash = pinHash.String
	if lockedUntil.Valid {
		t := lockedUntil.Time
		u.PinLockedUntil = &t
	}
	return u, nil
}

// CreateUser inserts a user. Balances start at zero in the table defaults.
func (d Datasource) CreateUser(ctx context.Context, u *model.User) error {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Saving user to db")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO vault.users (user_id, fullname, email, password_hash, savings_account_number, current_account_number, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, u.UserID, u.Fullname, u.Email, u.PasswordHash, u.SavingsAccountNumber, u.CurrentAccountNumber, u.IsActive, u.CreatedAt)
	if err != nil {
		if name, _, ok := pqCode(err); ok && name == "unique_violation" {
			return apierror.NewAPIError(apierror.ErrConflict, "a user with this email or account number already exists", err)
		}
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create user", errors.Wrap(err, "insert user"))
	}
	return nil
}

func (d Datasource) getUser(ctx context.Context, where string, arg interface{}) (*model.User, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM vault.users WHERE %s", userColumns, where), arg)
	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "User not found", nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve user", errors.Wrap(err, "select user"))
	}
	return u, nil
}

func (d Datasource) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Fetching user by id")
	defer span.End()
	return d.getUser(ctx, "user_id = $1", id)
}

func (d Datasource) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Fetching user by email")
	defer span.End()
	return d.getUser(ctx, "LOWER(email) = LOWER($1)", email)
}

// GetUserByAccountNumber resolves either of a user's two account numbers.
func (d Datasource) GetUserByAccountNumber(ctx context.Context, number string) (*model.User, error) {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Fetching user by account number")
	defer span.End()
	u, err := d.getUser(ctx, "savings_account_number = $1 OR current_account_number = $1", number)
	if apierror.HasCode(err, apierror.ErrNotFound) {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Recipient account not found. Please verify the account number.", nil)
	}
	return u, err
}

func (d Datasource) AccountNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM vault.users WHERE savings_account_number = $1 OR current_account_number = $1)
	`, number).Scan(&exists)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check account number", errors.Wrap(err, "account number exists"))
	}
	return exists, nil
}

func (d Datasource) SetUserActive(ctx context.Context, id string, active bool) error {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Updating user active flag")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `UPDATE vault.users SET is_active = $2, updated_at = NOW() WHERE user_id = $1`, id, active)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update user", errors.Wrap(err, "set user active"))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rows == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("user with ID '%s' not found", id), nil)
	}
	return nil
}

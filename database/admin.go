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

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/vault/internal/apierror"
	"github.com/blnkfinance/vault/model"
)

const adminColumns = `admin_id, fullname, email, password_hash, role, wallet, inflow, outflow, created_at, updated_at`

func scanAdmin(row rowScanner) (*model.Admin, error) {
	a := &model.Admin{}
	err := row.Scan(&a.AdminID, &a.Fullname, &a.Email, &a.PasswordHash, &a.Role, &a.Wallet, &a.Inflow, &a.Outflow, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (d Datasource) CreateAdmin(ctx context.Context, a *model.Admin) error {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Saving admin to db")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO vault.admins (admin_id, fullname, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, a.AdminID, a.Fullname, a.Email, a.PasswordHash, a.Role, a.CreatedAt)
	if err != nil {
		if name, _, ok := pqCode(err); ok && name == "unique_violation" {
			return apierror.NewAPIError(apierror.ErrConflict, "an admin with this email already exists", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create admin", errors.Wrap(err, "insert admin"))
	}
	return nil
}

func (d Datasource) getAdmin(ctx context.Context, where string, arg interface{}) (*model.Admin, error) {
	a, err := scanAdmin(d.Conn.QueryRowContext(ctx, "SELECT "+adminColumns+" FROM vault.admins WHERE "+where, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Admin not found", nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve admin", errors.Wrap(err, "select admin"))
	}
	return a, nil
}

func (d Datasource) GetAdminByID(ctx context.Context, id string) (*model.Admin, error) {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Fetching admin by id")
	defer span.End()
	return d.getAdmin(ctx, "admin_id = $1", id)
}

func (d Datasource) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Fetching admin by email")
	defer span.End()
	return d.getAdmin(ctx, "LOWER(email) = LOWER($1)", email)
}

func (d Datasource) CountAdmins(ctx context.Context) (int, error) {
	var count int
	if err := d.Conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM vault.admins`).Scan(&count); err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to count admins", errors.Wrap(err, "count admins"))
	}
	return count, nil
}

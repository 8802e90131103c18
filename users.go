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

package vault

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/vault/internal/apierror"
	"github.com/blnkfinance/vault/internal/auth"
	"github.com/blnkfinance/vault/model"
)

const accountNumberAttempts = 10

// Registration is the sign-up form of a customer or an admin.
type Registration struct {
	Fullname string
	Email    string
	Password string
	Role     model.Role
}

// Session is the result of a successful login.
type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	OwnerID   string     `json:"owner_id"`
	Role      model.Role `json:"role"`
}

func (v *Vault) validateRegistration(r Registration) (Registration, error) {
	r.Fullname = strings.TrimSpace(r.Fullname)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Fullname == "" {
		return r, apierror.NewAPIError(apierror.ErrInvalidInput, "fullname is required", nil)
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return r, apierror.NewAPIError(apierror.ErrInvalidInput, "a valid email is required", nil)
	}
	if len(r.Password) < v.conf.Auth.MinPassword {
		return r, apierror.NewAPIError(apierror.ErrInvalidInput,
			fmt.Sprintf("password must be at least %d characters", v.conf.Auth.MinPassword), nil)
	}
	return r, nil
}

// generateAccountNumber draws a 10 digit number that does not start with 0.
func generateAccountNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9_000_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%010d", n.Int64()+1_000_000_000), nil
}

func (v *Vault) uniqueAccountNumber(ctx context.Context, taken string) (string, error) {
	for i := 0; i < accountNumberAttempts; i++ {
		number, err := generateAccountNumber()
		if err != nil {
			return "", apierror.NewAPIError(apierror.ErrInternalServer, "Failed to generate account number", err)
		}
		if number == taken {
			continue
		}
		exists, err := v.datasource.AccountNumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
	}
	return "", apierror.NewAPIError(apierror.ErrInternalServer, "Could not allocate a unique account number", nil)
}

// RegisterUser creates a customer with a savings and a current account number.
func (v *Vault) RegisterUser(ctx context.Context, r Registration) (*model.User, error) {
	ctx, span := tracer.Start(ctx, "RegisterUser")
	defer span.End()

	r, err := v.validateRegistration(r)
	if err != nil {
		return nil, err
	}
	if _, err := v.datasource.GetUserByEmail(ctx, r.Email); err == nil {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "Email already registered", nil)
	} else if !apierror.HasCode(err, apierror.ErrNotFound) {
		return nil, err
	}

	savings, err := v.uniqueAccountNumber(ctx, "")
	if err != nil {
		return nil, err
	}
	current, err := v.uniqueAccountNumber(ctx, savings)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashSecret(r.Password, v.conf.Auth.BcryptCost)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to hash password", err)
	}

	now := v.now().UTC()
	user := &model.User{
		UserID:               model.GenerateUUIDWithSuffix("usr"),
		Fullname:             r.Fullname,
		Email:                r.Email,
		PasswordHash:         hash,
		SavingsAccountNumber: savings,
		CurrentAccountNumber: current,
		IsActive:             true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := v.datasource.CreateUser(ctx, user); err != nil {
		return nil, logAndRecordError(span, "user registration failed", err)
	}

	v.notify(ctx, user.Email, "Welcome",
		fmt.Sprintf("Welcome to %s. Savings: %s, Current: %s", v.conf.Ledger.BankName, savings, current))
	return user, nil
}

func invalidCredentials() error {
	return apierror.NewAPIError(apierror.ErrUnauthorized, "Invalid email or password", nil)
}

func (v *Vault) issueSession(ownerID string, role model.Role) (*Session, error) {
	token, expires, err := v.tokens.Issue(ownerID, role, v.now())
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to issue token", err)
	}
	return &Session{Token: token, ExpiresAt: expires, OwnerID: ownerID, Role: role}, nil
}

func (v *Vault) LoginUser(ctx context.Context, email, password string) (*Session, error) {
	user, err := v.datasource.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if apierror.HasCode(err, apierror.ErrNotFound) {
			return nil, invalidCredentials()
		}
		return nil, err
	}
	if !auth.CheckSecret(user.PasswordHash, password) {
		return nil, invalidCredentials()
	}
	if !user.IsActive {
		return nil, apierror.NewAPIError(apierror.ErrUnauthorized, "Account is deactivated", nil)
	}
	return v.issueSession(user.UserID, model.RoleUser)
}

func (v *Vault) LoginAdmin(ctx context.Context, email, password string) (*Session, error) {
	admin, err := v.datasource.GetAdminByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if apierror.HasCode(err, apierror.ErrNotFound) {
			return nil, invalidCredentials()
		}
		return nil, err
	}
	if !auth.CheckSecret(admin.PasswordHash, password) {
		return nil, invalidCredentials()
	}
	return v.issueSession(admin.AdminID, admin.Role)
}

func (v *Vault) createAdmin(ctx context.Context, r Registration) (*model.Admin, error) {
	hash, err := auth.HashSecret(r.Password, v.conf.Auth.BcryptCost)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to hash password", err)
	}
	now := v.now().UTC()
	admin := &model.Admin{
		AdminID:      model.GenerateUUIDWithSuffix("adm"),
		Fullname:     r.Fullname,
		Email:        r.Email,
		PasswordHash: hash,
		Role:         r.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := v.datasource.CreateAdmin(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// RegisterAdmin lets a superadmin create another admin or superadmin.
func (v *Vault) RegisterAdmin(ctx context.Context, superadminID string, r Registration) (*model.Admin, error) {
	caller, err := v.datasource.GetAdminByID(ctx, superadminID)
	if err != nil {
		return nil, err
	}
	if caller.Role != model.RoleSuperadmin {
		return nil, apierror.NewAPIError(apierror.ErrForbidden, "Only a superadmin can register admins", nil)
	}
	r, err = v.validateRegistration(r)
	if err != nil {
		return nil, err
	}
	switch r.Role {
	case "":
		r.Role = model.RoleAdmin
	case model.RoleAdmin, model.RoleSuperadmin:
	default:
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "role must be admin or superadmin", nil)
	}
	return v.createAdmin(ctx, r)
}

// BootstrapSuperadmin creates the configured superadmin when no admin exists
// yet. It reports whether an admin was created.
func (v *Vault) BootstrapSuperadmin(ctx context.Context) (bool, error) {
	count, err := v.datasource.CountAdmins(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	boot := v.conf.Bootstrap
	if boot.SuperadminEmail == "" || boot.SuperadminPassword == "" {
		logrus.Warn("no admins exist and no bootstrap superadmin is configured")
		return false, nil
	}
	r, err := v.validateRegistration(Registration{
		Fullname: orDefault(boot.SuperadminName, "Superadmin"),
		Email:    boot.SuperadminEmail,
		Password: boot.SuperadminPassword,
		Role:     model.RoleSuperadmin,
	})
	if err != nil {
		return false, err
	}
	admin, err := v.createAdmin(ctx, r)
	if err != nil {
		return false, err
	}
	logrus.WithField("admin_id", admin.AdminID).Info("bootstrap superadmin created")
	return true, nil
}

func (v *Vault) DeactivateUser(ctx context.Context, userID string) error {
	return v.datasource.SetUserActive(ctx, userID, false)
}

func (v *Vault) ReactivateUser(ctx context.Context, userID string) error {
	return v.datasource.SetUserActive(ctx, userID, true)
}

// GetMe returns the caller's profile and balances.
func (v *Vault) GetMe(ctx context.Context, userID string) (*model.User, error) {
	return v.datasource.GetUserByID(ctx, userID)
}

// GetAdmin returns an admin record, including its wallet balance.
func (v *Vault) GetAdmin(ctx context.Context, adminID string) (*model.Admin, error) {
	return v.datasource.GetAdminByID(ctx, adminID)
}

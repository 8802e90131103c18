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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/vault/internal/apierror"
	"github.com/blnkfinance/vault/internal/auth"
	"github.com/blnkfinance/vault/model"
)

var pinPattern = regexp.MustCompile(`^\d{4}$`)

func validatePin(pin string) error {
	if !pinPattern.MatchString(pin) {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "PIN must be exactly 4 digits", nil)
	}
	return nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// verifyPin checks pin against the user's stored hash and maintains the
// failure counter. A lock that has run out is cleared before counting again.
func (v *Vault) verifyPin(ctx context.Context, user *model.User, pin string) error {
	if !user.HasPin() {
		return apierror.NewAPIError(apierror.ErrPinNotSet, "Please set up your transaction PIN first", nil)
	}
	now := v.now()
	if user.PinLocked(now) {
		return apierror.NewAPIError(apierror.ErrPinLocked,
			fmt.Sprintf("PIN locked until %s", user.PinLockedUntil.UTC().Format("15:04:05 MST")),
			map[string]interface{}{"locked_until": user.PinLockedUntil.UTC()})
	}
	if user.PinLockedUntil != nil {
		if err := v.datasource.ClearPinFailures(ctx, user.UserID); err != nil {
			return err
		}
	}

	if auth.CheckSecret(user.PinHash, pin) {
		if user.PinFailedAttempts > 0 && user.PinLockedUntil == nil {
			if err := v.datasource.ClearPinFailures(ctx, user.UserID); err != nil {
				logrus.WithError(err).Warn("failed to reset PIN attempts")
			}
		}
		return nil
	}

	attempts, lockedUntil, err := v.datasource.RecordPinFailure(ctx, user.UserID, v.conf.Pin.MaxAttempts, now.Add(v.conf.Pin.LockDuration))
	if err != nil {
		return err
	}
	if lockedUntil != nil && lockedUntil.After(now) {
		return apierror.NewAPIError(apierror.ErrPinLocked,
			fmt.Sprintf("Too many failed attempts. PIN locked for %s", v.conf.Pin.LockDuration),
			map[string]interface{}{"locked_until": lockedUntil.UTC()})
	}
	return apierror.NewAPIError(apierror.ErrUnauthorized,
		fmt.Sprintf("Incorrect PIN. %d attempts remaining", v.conf.Pin.MaxAttempts-attempts), nil)
}

// CreatePin sets the first transaction PIN of a user.
func (v *Vault) CreatePin(ctx context.Context, userID, pin string) error {
	if err := validatePin(pin); err != nil {
		return err
	}
	user, err := v.datasource.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.HasPin() {
		return apierror.NewAPIError(apierror.ErrConflict, "PIN already set. Use the reset flow to change it", nil)
	}
	hash, err := auth.HashSecret(pin, v.conf.Auth.BcryptCost)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to hash PIN", err)
	}
	return v.datasource.SetPinHash(ctx, userID, hash)
}

func (v *Vault) PinStatus(ctx context.Context, userID string) (model.PinStatus, error) {
	user, err := v.datasource.GetUserByID(ctx, userID)
	if err != nil {
		return model.PinStatus{}, err
	}
	status := model.PinStatus{HasPin: user.HasPin()}
	if user.PinLocked(v.now()) {
		status.LockedUntil = user.PinLockedUntil
	}
	return status, nil
}

// ForgotPin mails a one-time reset token. It reports success for unknown
// emails so the endpoint cannot be used to discover customers.
func (v *Vault) ForgotPin(ctx context.Context, email string) error {
	user, err := v.datasource.GetUserByEmail(ctx, email)
	if err != nil {
		if apierror.HasCode(err, apierror.ErrNotFound) {
			logrus.WithField("email", email).Info("pin reset requested for unknown email")
			return nil
		}
		return err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to generate reset token", err)
	}
	token := hex.EncodeToString(raw)

	expires := v.now().Add(v.conf.Pin.ResetTokenTTL)
	if err := v.datasource.SetPinResetToken(ctx, user.UserID, hashResetToken(token), expires); err != nil {
		return err
	}

	v.notify(ctx, user.Email, "PIN reset",
		fmt.Sprintf("Use this token to reset your transaction PIN: %s. It expires at %s.",
			token, expires.UTC().Format("2006-01-02 15:04 MST")))
	return nil
}

// ResetPin replaces the PIN of the holder of a valid reset token.
func (v *Vault) ResetPin(ctx context.Context, token, newPin string) error {
	if err := validatePin(newPin); err != nil {
		return err
	}
	if token == "" {
		return apierror.NewAPIError(apierror.ErrUnauthorized, "Invalid or expired reset token", nil)
	}
	hash, err := auth.HashSecret(newPin, v.conf.Auth.BcryptCost)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to hash PIN", err)
	}
	userID, err := v.datasource.ResetPinWithToken(ctx, hashResetToken(token), hash, v.now())
	if err != nil {
		return err
	}
	logrus.WithField("user_id", userID).Info("transaction pin reset")
	return nil
}

// PurgeExpiredResetTokens drops reset tokens that can no longer be redeemed.
func (v *Vault) PurgeExpiredResetTokens(ctx context.Context) (int64, error) {
	return v.datasource.PurgeExpiredResetTokens(ctx, v.now())
}

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

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balances are the buckets embedded in a user record.
type Balances struct {
	Savings decimal.Decimal `json:"savings"`
	Current decimal.Decimal `json:"current"`
	Loan    decimal.Decimal `json:"loan"`
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
}

// Get returns the value held in bucket, or zero for buckets a user does not carry.
func (b Balances) Get(bucket Bucket) decimal.Decimal {
	switch bucket {
	case BucketSavings:
		return b.Savings
	case BucketCurrent:
		return b.Current
	case BucketLoan:
		return b.Loan
	}
	return decimal.Zero
}

type User struct {
	UserID               string     `json:"user_id"`
	Fullname             string     `json:"fullname"`
	Email                string     `json:"email"`
	PasswordHash         string     `json:"-"`
	SavingsAccountNumber string     `json:"savings_account_number"`
	CurrentAccountNumber string     `json:"current_account_number"`
	Balances             Balances   `json:"balances"`
	PinHash              string     `json:"-"`
	PinFailedAttempts    int        `json:"-"`
	PinLockedUntil       *time.Time `json:"-"`
	IsActive             bool       `json:"is_active"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// AccountNumberFor returns the account number attached to bucket.
// Loan has no number of its own and falls back to the current account.
func (u *User) AccountNumberFor(bucket Bucket) string {
	if bucket == BucketSavings {
		return u.SavingsAccountNumber
	}
	return u.CurrentAccountNumber
}

func (u *User) HasPin() bool {
	return u.PinHash != ""
}

// PinLocked reports whether PIN checks are suspended at now.
func (u *User) PinLocked(now time.Time) bool {
	return u.PinLockedUntil != nil && now.Before(*u.PinLockedUntil)
}

type Admin struct {
	AdminID      string          `json:"admin_id"`
	Fullname     string          `json:"fullname"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Role         Role            `json:"role"`
	Wallet       decimal.Decimal `json:"wallet"`
	Inflow       decimal.Decimal `json:"inflow"`
	Outflow      decimal.Decimal `json:"outflow"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// PinStatus is what a user may learn about their own PIN.
type PinStatus struct {
	HasPin      bool       `json:"has_pin"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

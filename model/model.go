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
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/blnkfinance/vault/internal/apierror"
)

// Bucket names a balance subdivision a ledger operation can touch.
type Bucket string

const (
	BucketSavings Bucket = "savings"
	BucketCurrent Bucket = "current"
	BucketLoan    Bucket = "loan"
	BucketWallet  Bucket = "wallet"
	BucketCard    Bucket = "card"
)

var (
	// TransferBuckets are the buckets users may move money between.
	TransferBuckets = []Bucket{BucketSavings, BucketCurrent}
	// FundingBuckets are the buckets an admin may credit.
	FundingBuckets = []Bucket{BucketSavings, BucketCurrent, BucketLoan}
	// CardBuckets are the buckets a card can be funded from or paid back into.
	CardBuckets = []Bucket{BucketSavings, BucketCurrent}
)

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Satisfies reports whether r may act on routes that require role required.
func (r Role) Satisfies(required Role) bool {
	switch required {
	case RoleUser:
		return r == RoleUser
	case RoleAdmin:
		return r == RoleAdmin || r == RoleSuperadmin
	case RoleSuperadmin:
		return r == RoleSuperadmin
	}
	return false
}

type TransactionType string

const (
	TypeInflow  TransactionType = "inflow"
	TypeOutflow TransactionType = "outflow"
)

// GenerateUUIDWithSuffix returns "<module>_<uuid>".
func GenerateUUIDWithSuffix(module string) string {
	return fmt.Sprintf("%s_%s", module, uuid.New().String())
}

// ParseBucket normalises selector and checks it against allowed.
// An empty selector resolves to fallback.
func ParseBucket(selector string, fallback Bucket, allowed []Bucket) (Bucket, error) {
	selector = strings.ToLower(strings.TrimSpace(selector))
	if selector == "" {
		return fallback, nil
	}
	for _, b := range allowed {
		if Bucket(selector) == b {
			return b, nil
		}
	}
	names := make([]string, len(allowed))
	for i, b := range allowed {
		names[i] = string(b)
	}
	return "", apierror.NewAPIError(apierror.ErrInvalidBucket,
		fmt.Sprintf("invalid account type %q. allowed: %s", selector, strings.Join(names, ", ")), nil)
}

// ValidateAmount rejects non-positive amounts and amounts finer than a cent.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apierror.NewAPIError(apierror.ErrInvalidAmount, "amount must be greater than 0", nil)
	}
	if !amount.Equal(amount.Truncate(2)) {
		return apierror.NewAPIError(apierror.ErrInvalidAmount, "amount cannot have more than 2 decimal places", nil)
	}
	return nil
}

// MaskAccountNumber keeps the first four and last two digits.
func MaskAccountNumber(number string) string {
	if len(number) <= 6 {
		return number
	}
	return number[:4] + strings.Repeat("*", len(number)-6) + number[len(number)-2:]
}

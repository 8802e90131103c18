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
	"time"

	"github.com/blnkfinance/vault/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	user        // Interface for user records and their buckets
	admin       // Interface for admin records and wallets
	card        // Interface for card lifecycle
	pin         // Interface for PIN storage and lockout
	transaction // Interface for reading the transaction log
	posting     // Interface for atomic ledger postings
}

type user interface {
	CreateUser(ctx context.Context, u *model.User) error                                    // Inserts a user with zero balances
	GetUserByID(ctx context.Context, id string) (*model.User, error)                         // Retrieves a user by ID
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)                   // Retrieves a user by email, case insensitive
	GetUserByAccountNumber(ctx context.Context, number string) (*model.User, error)          // Matches savings or current account number
	AccountNumberExists(ctx context.Context, number string) (bool, error)                   // Checks both account number columns
	SetUserActive(ctx context.Context, id string, active bool) error                        // Soft deactivate or reactivate
}

type admin interface {
	CreateAdmin(ctx context.Context, a *model.Admin) error              // Inserts an admin with an empty wallet
	GetAdminByID(ctx context.Context, id string) (*model.Admin, error)  // Retrieves an admin by ID
	GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error)
	CountAdmins(ctx context.Context) (int, error)
}

type card interface {
	CreateCard(ctx context.Context, c *model.Card) error
	GetCardByID(ctx context.Context, id string) (*model.Card, error)
	GetCardsByUser(ctx context.Context, userID string) ([]model.Card, error)
	GetCardsByStatus(ctx context.Context, status model.CardStatus) ([]model.Card, error)
	GetAllCards(ctx context.Context, limit, offset int) ([]model.Card, error)
	HasOpenCard(ctx context.Context, userID string) (bool, error)
	TransitionCard(ctx context.Context, id string, from, to model.CardStatus, actorID, reason string) (*model.Card, error) // Conditional status change
	SetCardActive(ctx context.Context, id string, active bool) (*model.Card, error)                                     // Approved cards only
}

type pin interface {
	SetPinHash(ctx context.Context, userID, hash string) error                                                   // Only when no PIN is set yet
	RecordPinFailure(ctx context.Context, userID string, maxAttempts int, lockUntil time.Time) (int, *time.Time, error)
	ClearPinFailures(ctx context.Context, userID string) error
	SetPinResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	ResetPinWithToken(ctx context.Context, tokenHash, newPinHash string, now time.Time) (string, error) // Returns the user ID
	PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

type transaction interface {
	GetTransactionsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Transaction, error)       // Newest first
	GetTransactionsInRange(ctx context.Context, ownerID string, from, to time.Time) ([]model.Transaction, error)     // Inclusive range, newest first
}

type posting interface {
	ExecutePosting(ctx context.Context, p *model.Posting) error                  // Applies every leg and log entry in one transaction
	GetPostingReceipt(ctx context.Context, reference string) (*model.Receipt, error) // Loads the stored receipt of a posting
}

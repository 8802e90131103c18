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
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/blnkfinance/vault/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// User methods

func (m *MockDataSource) CreateUser(ctx context.Context, u *model.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockDataSource) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockDataSource) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockDataSource) GetUserByAccountNumber(ctx context.Context, number string) (*model.User, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockDataSource) AccountNumberExists(ctx context.Context, number string) (bool, error) {
	args := m.Called(ctx, number)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) SetUserActive(ctx context.Context, id string, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

// Admin methods

func (m *MockDataSource) CreateAdmin(ctx context.Context, a *model.Admin) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockDataSource) GetAdminByID(ctx context.Context, id string) (*model.Admin, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Admin), args.Error(1)
}

func (m *MockDataSource) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Admin), args.Error(1)
}

func (m *MockDataSource) CountAdmins(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// Card methods

func (m *MockDataSource) CreateCard(ctx context.Context, c *model.Card) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockDataSource) GetCardByID(ctx context.Context, id string) (*model.Card, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Card), args.Error(1)
}

func (m *MockDataSource) GetCardsByUser(ctx context.Context, userID string) ([]model.Card, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.Card), args.Error(1)
}

func (m *MockDataSource) GetCardsByStatus(ctx context.Context, status model.CardStatus) ([]model.Card, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]model.Card), args.Error(1)
}

func (m *MockDataSource) GetAllCards(ctx context.Context, limit, offset int) ([]model.Card, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]model.Card), args.Error(1)
}

func (m *MockDataSource) HasOpenCard(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) TransitionCard(ctx context.Context, id string, from, to model.CardStatus, actorID, reason string) (*model.Card, error) {
	args := m.Called(ctx, id, from, to, actorID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Card), args.Error(1)
}

func (m *MockDataSource) SetCardActive(ctx context.Context, id string, active bool) (*model.Card, error) {
	args := m.Called(ctx, id, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Card), args.Error(1)
}

// PIN methods

func (m *MockDataSource) SetPinHash(ctx context.Context, userID, hash string) error {
	args := m.Called(ctx, userID, hash)
	return args.Error(0)
}

func (m *MockDataSource) RecordPinFailure(ctx context.Context, userID string, maxAttempts int, lockUntil time.Time) (int, *time.Time, error) {
	args := m.Called(ctx, userID, maxAttempts, lockUntil)
	var locked *time.Time
	if args.Get(1) != nil {
		locked = args.Get(1).(*time.Time)
	}
	return args.Int(0), locked, args.Error(2)
}

func (m *MockDataSource) ClearPinFailures(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockDataSource) SetPinResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *MockDataSource) ResetPinWithToken(ctx context.Context, tokenHash, newPinHash string, now time.Time) (string, error) {
	args := m.Called(ctx, tokenHash, newPinHash, now)
	return args.String(0), args.Error(1)
}

func (m *MockDataSource) PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// Transaction methods

func (m *MockDataSource) GetTransactionsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Transaction, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	return args.Get(0).([]model.Transaction), args.Error(1)
}

func (m *MockDataSource) GetTransactionsInRange(ctx context.Context, ownerID string, from, to time.Time) ([]model.Transaction, error) {
	args := m.Called(ctx, ownerID, from, to)
	return args.Get(0).([]model.Transaction), args.Error(1)
}

// Posting methods

func (m *MockDataSource) ExecutePosting(ctx context.Context, p *model.Posting) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockDataSource) GetPostingReceipt(ctx context.Context, reference string) (*model.Receipt, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Receipt), args.Error(1)
}

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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/blnkfinance/vault/config"
	"github.com/blnkfinance/vault/database/mocks"
	"github.com/blnkfinance/vault/internal/apierror"
	"github.com/blnkfinance/vault/internal/auth"
	"github.com/blnkfinance/vault/internal/notification"
	"github.com/blnkfinance/vault/model"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (r *recordingSink) Notify(_ context.Context, msg notification.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingSink) recipients() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Recipient)
	}
	return out
}

func testConfig() *config.Configuration {
	return &config.Configuration{
		ProjectName: "Vault Test",
		Auth: config.AuthConfig{
			JWTSecret:   "test-secret",
			TokenTTL:    time.Hour,
			Issuer:      "vault",
			BcryptCost:  bcrypt.MinCost,
			MinPassword: 8,
		},
		Pin: config.PinConfig{
			MaxAttempts:   5,
			LockDuration:  15 * time.Minute,
			ResetTokenTTL: 15 * time.Minute,
		},
		Ledger: config.LedgerConfig{
			BankName:           "Vault Bank",
			PageSize:           50,
			MaxPageSize:        100,
			IdempotencyTTL:     time.Hour,
			IdempotencyLockTTL: 30 * time.Second,
			MaxRetryElapsed:    time.Second,
		},
	}
}

type testHarness struct {
	vault  *Vault
	ds     *mocks.MockDataSource
	sink   *recordingSink
	redis  *miniredis.Miniredis
	ledger *memLedger
}

func newTestVault(t *testing.T) *testHarness {
	t.Helper()
	config.MockConfig(testConfig())

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ds := &mocks.MockDataSource{}
	sink := &recordingSink{}
	v, err := NewVault(ds, client, WithNotifier(sink), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)

	return &testHarness{vault: v, ds: ds, sink: sink, redis: mr, ledger: newMemLedger()}
}

// expectPostings routes ExecutePosting through the in-memory ledger.
func (h *testHarness) expectPostings(t *testing.T) *mock.Call {
	return h.ds.On("ExecutePosting", mock.Anything, mock.AnythingOfType("*model.Posting")).
		Run(func(args mock.Arguments) {
			require.NoError(t, h.ledger.apply(args.Get(1).(*model.Posting)))
		}).
		Return(nil)
}

func hashPin(t *testing.T, pin string) string {
	t.Helper()
	hash, err := auth.HashSecret(pin, bcrypt.MinCost)
	require.NoError(t, err)
	return hash
}

func requireCode(t *testing.T, err error, code apierror.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, apierror.HasCode(err, code), "expected %s, got %v", code, err)
}

func notFound(msg string) error {
	return apierror.NewAPIError(apierror.ErrNotFound, msg, nil)
}

// memLedger applies postings the way the database does: every debit must be
// covered or nothing changes.
type memLedger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	entries  []*model.Transaction
	postings int
}

func newMemLedger() *memLedger {
	return &memLedger{balances: map[string]decimal.Decimal{}}
}

func legKey(holder model.Holder, owner string, bucket model.Bucket) string {
	return fmt.Sprintf("%s/%s/%s", holder, owner, bucket)
}

func (m *memLedger) set(holder model.Holder, owner string, bucket model.Bucket, amount string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[legKey(holder, owner, bucket)] = decimal.RequireFromString(amount)
}

func (m *memLedger) get(holder model.Holder, owner string, bucket model.Bucket) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[legKey(holder, owner, bucket)]
}

func (m *memLedger) total() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := decimal.Zero
	for _, b := range m.balances {
		sum = sum.Add(b)
	}
	return sum
}

func (m *memLedger) apply(p *model.Posting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range p.Debits {
		available := m.balances[legKey(l.Holder, l.OwnerID, l.Bucket)]
		if available.LessThan(l.Amount) {
			return apierror.NewInsufficientBalance(string(l.Bucket), available, l.Amount)
		}
	}
	for _, l := range p.Debits {
		k := legKey(l.Holder, l.OwnerID, l.Bucket)
		m.balances[k] = m.balances[k].Sub(l.Amount)
		l.BalanceAfter = m.balances[k]
	}
	for _, l := range p.Credits {
		k := legKey(l.Holder, l.OwnerID, l.Bucket)
		m.balances[k] = m.balances[k].Add(l.Amount)
		l.BalanceAfter = m.balances[k]
	}
	m.entries = append(m.entries, p.Entries()...)
	m.postings++
	return nil
}

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
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/vault/database"
	"github.com/blnkfinance/vault/internal/apierror"
	"github.com/blnkfinance/vault/model"
)

func transferParties(t *testing.T, h *testHarness) (*model.User, *model.User) {
	sender := &model.User{
		UserID:               "usr_a",
		Fullname:             "Ada Obi",
		Email:                "ada@example.com",
		SavingsAccountNumber: "1000000001",
		CurrentAccountNumber: "1000000002",
		Balances:             model.Balances{Current: decimal.NewFromInt(100)},
		PinHash:              hashPin(t, "1234"),
		IsActive:             true,
	}
	receiver := &model.User{
		UserID:               "usr_b",
		Fullname:             "Bola Ade",
		Email:                "bola@example.com",
		SavingsAccountNumber: "2000000001",
		CurrentAccountNumber: "2000000002",
		IsActive:             true,
	}
	h.ledger.set(model.HolderUser, "usr_a", model.BucketCurrent, "100")
	h.ds.On("GetUserByID", mock.Anything, "usr_a").Return(sender, nil)
	h.ds.On("GetUserByID", mock.Anything, "usr_b").Return(receiver, nil)
	h.ds.On("GetUserByAccountNumber", mock.Anything, "2000000001").Return(receiver, nil)
	return sender, receiver
}

func peerTransfer(amount string) TransferRequest {
	return TransferRequest{
		AccountNumber:   "2000000001",
		Amount:          decimal.RequireFromString(amount),
		FromAccountType: "current",
		ToAccountType:   "savings",
		Pin:             "1234",
	}
}

func TestTransfer_MovesFundsBetweenCustomers(t *testing.T) {
	h := newTestVault(t)
	transferParties(t, h)
	h.expectPostings(t)
	before := h.ledger.total()

	receipt, err := h.vault.Transfer(context.Background(), "usr_a", peerTransfer("30"))
	require.NoError(t, err)

	assert.Equal(t, model.OpPeerTransfer, receipt.Operation)
	assert.Len(t, receipt.TransactionIDs, 2)
	assert.True(t, receipt.Source.BalanceAfter.Equal(decimal.NewFromInt(70)))
	assert.True(t, receipt.Destination.BalanceAfter.Equal(decimal.NewFromInt(30)))
	assert.True(t, h.ledger.get(model.HolderUser, "usr_b", model.BucketSavings).Equal(decimal.NewFromInt(30)))
	assert.True(t, before.Equal(h.ledger.total()), "transfers must conserve money")

	require.Len(t, h.ledger.entries, 2)
	out, in := h.ledger.entries[0], h.ledger.entries[1]
	assert.Equal(t, model.TypeOutflow, out.Type)
	assert.Equal(t, "Transfer to 2000000001 (Unknown Bank, Unknown Country)", out.Description)
	assert.Equal(t, model.TypeInflow, in.Type)
	assert.Equal(t, "Transfer from Ada Obi (1000000002)", in.Description)
	assert.Equal(t, out.PostingReference, in.PostingReference)

	assert.ElementsMatch(t, []string{"ada@example.com", "bola@example.com"}, h.sink.recipients())
}

func TestTransfer_BankAndCountryInDescription(t *testing.T) {
	h := newTestVault(t)
	transferParties(t, h)
	h.expectPostings(t)

	req := peerTransfer("10")
	req.BankName = "First Bank"
	req.Country = "Nigeria"
	_, err := h.vault.Transfer(context.Background(), "usr_a", req)
	require.NoError(t, err)
	assert.Equal(t, "Transfer to 2000000001 (First Bank, Nigeria)", h.ledger.entries[0].Description)
}

func TestTransfer_SelfTransferDeniedBeforePin(t *testing.T) {
	h := newTestVault(t)
	sender, _ := transferParties(t, h)
	h.ds.On("GetUserByAccountNumber", mock.Anything, "1000000001").Return(sender, nil)

	req := peerTransfer("10")
	req.AccountNumber = "1000000001"
	req.Pin = "0000"
	_, err := h.vault.Transfer(context.Background(), "usr_a", req)

	requireCode(t, err, apierror.ErrSelfTransferDenied)
	h.ds.AssertNotCalled(t, "RecordPinFailure", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	h.ds.AssertNotCalled(t, "ExecutePosting", mock.Anything, mock.Anything)
}

func TestTransfer_InsufficientBalanceWritesNothing(t *testing.T) {
	h := newTestVault(t)
	transferParties(t, h)

	_, err := h.vault.Transfer(context.Background(), "usr_a", peerTransfer("150"))
	requireCode(t, err, apierror.ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "Available: 100.00")
	h.ds.AssertNotCalled(t, "ExecutePosting", mock.Anything, mock.Anything)
	assert.Empty(t, h.sink.recipients())
}

func TestTransfer_InputValidation(t *testing.T) {
	h := newTestVault(t)

	tests := []struct {
		name string
		mod  func(*TransferRequest)
		code apierror.ErrorCode
	}{
		{"zero amount", func(r *TransferRequest) { r.Amount = decimal.Zero }, apierror.ErrInvalidAmount},
		{"negative amount", func(r *TransferRequest) { r.Amount = decimal.NewFromInt(-5) }, apierror.ErrInvalidAmount},
		{"three decimals", func(r *TransferRequest) { r.Amount = decimal.RequireFromString("1.005") }, apierror.ErrInvalidAmount},
		{"loan bucket", func(r *TransferRequest) { r.FromAccountType = "loan" }, apierror.ErrInvalidBucket},
		{"unknown bucket", func(r *TransferRequest) { r.ToAccountType = "checking" }, apierror.ErrInvalidBucket},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := peerTransfer("10")
			tt.mod(&req)
			_, err := h.vault.Transfer(context.Background(), "usr_a", req)
			requireCode(t, err, tt.code)
		})
	}
	h.ds.AssertNotCalled(t, "GetUserByID", mock.Anything, mock.Anything)
}

func TestTransfer_PinRules(t *testing.T) {
	t.Run("no pin set", func(t *testing.T) {
		h := newTestVault(t)
		sender, _ := transferParties(t, h)
		sender.PinHash = ""

		_, err := h.vault.Transfer(context.Background(), "usr_a", peerTransfer("10"))
		requireCode(t, err, apierror.ErrPinNotSet)
	})

	t.Run("wrong pin counts the failure", func(t *testing.T) {
		h := newTestVault(t)
		transferParties(t, h)
		h.ds.On("RecordPinFailure", mock.Anything, "usr_a", 5, testNow.Add(15*time.Minute)).Return(1, nil, nil)

		req := peerTransfer("10")
		req.Pin = "9999"
		_, err := h.vault.Transfer(context.Background(), "usr_a", req)
		requireCode(t, err, apierror.ErrUnauthorized)
		assert.Contains(t, err.Error(), "4 attempts remaining")
		h.ds.AssertNotCalled(t, "ExecutePosting", mock.Anything, mock.Anything)
	})

	t.Run("fifth failure locks", func(t *testing.T) {
		h := newTestVault(t)
		sender, _ := transferParties(t, h)
		sender.PinFailedAttempts = 4
		lock := testNow.Add(15 * time.Minute)
		h.ds.On("RecordPinFailure", mock.Anything, "usr_a", 5, lock).Return(5, &lock, nil)

		req := peerTransfer("10")
		req.Pin = "9999"
		_, err := h.vault.Transfer(context.Background(), "usr_a", req)
		requireCode(t, err, apierror.ErrPinLocked)
	})

	t.Run("locked pin refuses even the right pin", func(t *testing.T) {
		h := newTestVault(t)
		sender, _ := transferParties(t, h)
		lock := testNow.Add(10 * time.Minute)
		sender.PinLockedUntil = &lock

		_, err := h.vault.Transfer(context.Background(), "usr_a", peerTransfer("10"))
		requireCode(t, err, apierror.ErrPinLocked)
		h.ds.AssertNotCalled(t, "RecordPinFailure", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("expired lock is cleared", func(t *testing.T) {
		h := newTestVault(t)
		sender, _ := transferParties(t, h)
		expired := testNow.Add(-time.Minute)
		sender.PinLockedUntil = &expired
		sender.PinFailedAttempts = 5
		h.ds.On("ClearPinFailures", mock.Anything, "usr_a").Return(nil).Once()
		h.expectPostings(t)

		_, err := h.vault.Transfer(context.Background(), "usr_a", peerTransfer("10"))
		require.NoError(t, err)
		h.ds.AssertNumberOfCalls(t, "ClearPinFailures", 1)
	})
}

func TestTransfer_DeactivatedSender(t *testing.T) {
	h := newTestVault(t)
	sender, _ := transferParties(t, h)
	sender.IsActive = false

	_, err := h.vault.Transfer(context.Background(), "usr_a", peerTransfer("10"))
	requireCode(t, err, apierror.ErrForbidden)
}

func TestTransfer_UnknownRecipient(t *testing.T) {
	h := newTestVault(t)
	transferParties(t, h)
	h.ds.On("GetUserByAccountNumber", mock.Anything, "9999999999").Return(nil, notFound("Recipient account not found. Please verify the account number."))

	req := peerTransfer("10")
	req.AccountNumber = "9999999999"
	_, err := h.vault.Transfer(context.Background(), "usr_a", req)
	requireCode(t, err, apierror.ErrNotFound)
}

func TestTransfer_RetriesDeadlock(t *testing.T) {
	h := newTestVault(t)
	transferParties(t, h)
	deadlock := apierror.NewAPIError(apierror.ErrInternalServer, "Failed to debit balance", &pq.Error{Code: "40P01"})
	h.ds.On("ExecutePosting", mock.Anything, mock.Anything).Return(deadlock).Once()
	h.expectPostings(t)

	receipt, err := h.vault.Transfer(context.Background(), "usr_a", peerTransfer("30"))
	require.NoError(t, err)
	assert.True(t, receipt.Source.BalanceAfter.Equal(decimal.NewFromInt(70)))
	h.ds.AssertNumberOfCalls(t, "ExecutePosting", 2)
}

func TestTransfer_Idempotency(t *testing.T) {
	t.Run("replay returns the first receipt", func(t *testing.T) {
		h := newTestVault(t)
		transferParties(t, h)
		h.ds.On("GetPostingReceipt", mock.Anything, "usr_a:key-1").Return(nil, notFound("Posting not found")).Once()
		h.expectPostings(t)

		req := peerTransfer("30")
		req.IdempotencyKey = "key-1"
		first, err := h.vault.Transfer(context.Background(), "usr_a", req)
		require.NoError(t, err)
		second, err := h.vault.Transfer(context.Background(), "usr_a", req)
		require.NoError(t, err)

		assert.Equal(t, "usr_a:key-1", first.Reference)
		assert.Equal(t, first.Reference, second.Reference)
		assert.Equal(t, first.TransactionIDs, second.TransactionIDs)
		assert.Equal(t, 1, h.ledger.postings)
		assert.True(t, h.ledger.get(model.HolderUser, "usr_a", model.BucketCurrent).Equal(decimal.NewFromInt(70)))
		assert.Len(t, h.sink.recipients(), 2, "a replay must not notify again")
	})

	t.Run("stored receipt is used when the cache is cold", func(t *testing.T) {
		h := newTestVault(t)
		req := peerTransfer("30")
		req.IdempotencyKey = "key-2"
		stored := &model.Receipt{Reference: "usr_a:key-2", Operation: model.OpPeerTransfer, TransactionIDs: []string{"txn_1", "txn_2"},
			RequestHash: req.postingRequest("usr_a", model.BucketCurrent, model.BucketSavings).hash}
		h.ds.On("GetPostingReceipt", mock.Anything, "usr_a:key-2").Return(stored, nil)

		receipt, err := h.vault.Transfer(context.Background(), "usr_a", req)
		require.NoError(t, err)
		assert.Equal(t, stored, receipt)
		h.ds.AssertNotCalled(t, "ExecutePosting", mock.Anything, mock.Anything)
	})

	t.Run("duplicate reference loads the stored receipt", func(t *testing.T) {
		h := newTestVault(t)
		transferParties(t, h)
		req := peerTransfer("30")
		req.IdempotencyKey = "key-3"
		stored := &model.Receipt{Reference: "usr_a:key-3", Operation: model.OpPeerTransfer,
			RequestHash: req.postingRequest("usr_a", model.BucketCurrent, model.BucketSavings).hash}
		h.ds.On("GetPostingReceipt", mock.Anything, "usr_a:key-3").Return(nil, notFound("Posting not found")).Once()
		h.ds.On("GetPostingReceipt", mock.Anything, "usr_a:key-3").Return(stored, nil).Once()
		h.ds.On("ExecutePosting", mock.Anything, mock.Anything).
			Return(apierror.NewAPIError(apierror.ErrConflict, "posting already recorded", database.ErrDuplicatePosting))

		receipt, err := h.vault.Transfer(context.Background(), "usr_a", req)
		require.NoError(t, err)
		assert.Equal(t, "usr_a:key-3", receipt.Reference)
	})

	t.Run("in-flight duplicate is refused", func(t *testing.T) {
		h := newTestVault(t)
		require.NoError(t, h.redis.Set("lock:usr_a:key-4", "other-request"))

		req := peerTransfer("30")
		req.IdempotencyKey = "key-4"
		_, err := h.vault.Transfer(context.Background(), "usr_a", req)
		requireCode(t, err, apierror.ErrConflict)
		assert.Contains(t, err.Error(), "already being processed")
	})

	t.Run("keys are scoped per caller", func(t *testing.T) {
		assert.NotEqual(t, idempotencyReference("usr_a", "k"), idempotencyReference("usr_b", "k"))
	})

	t.Run("same parameters hash the same", func(t *testing.T) {
		a := peerTransfer("30")
		b := peerTransfer("30.00")
		b.FromAccountType = "Current"
		assert.Equal(t, a.postingRequest("usr_a", model.BucketCurrent, model.BucketSavings).hash,
			b.postingRequest("usr_a", model.BucketCurrent, model.BucketSavings).hash)
		assert.NotEqual(t, a.postingRequest("usr_a", model.BucketCurrent, model.BucketSavings).hash,
			peerTransfer("31").postingRequest("usr_a", model.BucketCurrent, model.BucketSavings).hash)
	})
}

func TestTransfer_IdempotencyKeyReuse(t *testing.T) {
	t.Run("different amount", func(t *testing.T) {
		h := newTestVault(t)
		transferParties(t, h)
		h.ds.On("GetPostingReceipt", mock.Anything, "usr_a:k").Return(nil, notFound("Posting not found")).Once()
		h.expectPostings(t)

		req := peerTransfer("30")
		req.IdempotencyKey = "k"
		_, err := h.vault.Transfer(context.Background(), "usr_a", req)
		require.NoError(t, err)

		req.Amount = decimal.NewFromInt(40)
		_, err = h.vault.Transfer(context.Background(), "usr_a", req)
		requireCode(t, err, apierror.ErrConflict)
		assert.Contains(t, err.Error(), "idempotency key reused with different parameters")
		assert.Equal(t, 1, h.ledger.postings)
		assert.True(t, h.ledger.get(model.HolderUser, "usr_a", model.BucketCurrent).Equal(decimal.NewFromInt(70)))
	})

	t.Run("different recipient", func(t *testing.T) {
		h := newTestVault(t)
		transferParties(t, h)
		h.ds.On("GetPostingReceipt", mock.Anything, "usr_a:k").Return(nil, notFound("Posting not found")).Once()
		h.expectPostings(t)

		req := peerTransfer("30")
		req.IdempotencyKey = "k"
		_, err := h.vault.Transfer(context.Background(), "usr_a", req)
		require.NoError(t, err)

		req.AccountNumber = "2000000002"
		_, err = h.vault.Transfer(context.Background(), "usr_a", req)
		requireCode(t, err, apierror.ErrConflict)
		assert.Equal(t, 1, h.ledger.postings)
	})

	t.Run("different operation", func(t *testing.T) {
		h := newTestVault(t)
		transferParties(t, h)
		h.ds.On("GetPostingReceipt", mock.Anything, "usr_a:k").Return(nil, notFound("Posting not found")).Once()
		h.expectPostings(t)

		req := peerTransfer("30")
		req.IdempotencyKey = "k"
		first, err := h.vault.Transfer(context.Background(), "usr_a", req)
		require.NoError(t, err)
		assert.Equal(t, model.OpPeerTransfer, first.Operation)

		_, err = h.vault.FundCard(context.Background(), "usr_a", FundCardRequest{CardID: "card_1", Amount: decimal.NewFromInt(30), IdempotencyKey: "k"})
		requireCode(t, err, apierror.ErrConflict)
		assert.Equal(t, 1, h.ledger.postings)
		h.ds.AssertNotCalled(t, "GetCardByID", mock.Anything, mock.Anything)
	})

	t.Run("stored receipt from another request", func(t *testing.T) {
		h := newTestVault(t)
		stored := &model.Receipt{Reference: "usr_a:k", Operation: model.OpPeerTransfer,
			RequestHash: peerTransfer("99").postingRequest("usr_a", model.BucketCurrent, model.BucketSavings).hash}
		h.ds.On("GetPostingReceipt", mock.Anything, "usr_a:k").Return(stored, nil)

		req := peerTransfer("30")
		req.IdempotencyKey = "k"
		_, err := h.vault.Transfer(context.Background(), "usr_a", req)
		requireCode(t, err, apierror.ErrConflict)
		h.ds.AssertNotCalled(t, "ExecutePosting", mock.Anything, mock.Anything)
	})
}

func adminTransferParties(h *testHarness) {
	sender := &model.User{UserID: "usr_a", Fullname: "Ada Obi", Email: "ada@example.com",
		SavingsAccountNumber: "1000000001", CurrentAccountNumber: "1000000002",
		Balances: model.Balances{Savings: decimal.NewFromInt(50)}, IsActive: true}
	receiver := &model.User{UserID: "usr_b", Fullname: "Bola Ade", Email: "bola@example.com",
		SavingsAccountNumber: "2000000001", CurrentAccountNumber: "2000000002", IsActive: true}
	h.ledger.set(model.HolderUser, "usr_a", model.BucketSavings, "50")
	h.ds.On("GetAdminByID", mock.Anything, "adm_1").Return(&model.Admin{AdminID: "adm_1", Role: model.RoleAdmin}, nil)
	h.ds.On("GetUserByEmail", mock.Anything, "ada@example.com").Return(sender, nil)
	h.ds.On("GetUserByEmail", mock.Anything, "bola@example.com").Return(receiver, nil)
	h.ds.On("GetUserByID", mock.Anything, "usr_a").Return(sender, nil)
	h.ds.On("GetUserByID", mock.Anything, "usr_b").Return(receiver, nil)
}

func TestAdminTransfer(t *testing.T) {
	h := newTestVault(t)
	adminTransferParties(h)
	h.expectPostings(t)
	date := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	receipt, err := h.vault.AdminTransfer(context.Background(), "adm_1", AdminTransferRequest{
		SenderEmail:   "ada@example.com",
		ReceiverEmail: "bola@example.com",
		Amount:        decimal.RequireFromString("20.50"),
		Date:          &date,
	})
	require.NoError(t, err)
	assert.Equal(t, model.OpAdminTransfer, receipt.Operation)
	assert.True(t, receipt.CreatedAt.Equal(date))
	require.Len(t, h.ledger.entries, 2)
	assert.Equal(t, "Transfer to Bola Ade", h.ledger.entries[0].Description)
	assert.Equal(t, "Transfer from Ada Obi", h.ledger.entries[1].Description)
	assert.True(t, h.ledger.get(model.HolderUser, "usr_a", model.BucketSavings).Equal(decimal.RequireFromString("29.50")))
}

func TestAdminTransfer_SameUserDenied(t *testing.T) {
	h := newTestVault(t)
	adminTransferParties(h)

	_, err := h.vault.AdminTransfer(context.Background(), "adm_1", AdminTransferRequest{
		SenderEmail:   "ada@example.com",
		ReceiverEmail: "ada@example.com",
		Amount:        decimal.NewFromInt(5),
	})
	requireCode(t, err, apierror.ErrSelfTransferDenied)
}

func TestAdminTransfer_DeactivatedSender(t *testing.T) {
	h := newTestVault(t)
	inactive := &model.User{UserID: "usr_c", Email: "cleo@example.com",
		Balances: model.Balances{Savings: decimal.NewFromInt(50)}, IsActive: false}
	adminTransferParties(h)
	h.ds.On("GetUserByEmail", mock.Anything, "cleo@example.com").Return(inactive, nil)

	_, err := h.vault.AdminTransfer(context.Background(), "adm_1", AdminTransferRequest{
		SenderEmail:   "cleo@example.com",
		ReceiverEmail: "bola@example.com",
		Amount:        decimal.NewFromInt(5),
	})
	requireCode(t, err, apierror.ErrForbidden)
	assert.Contains(t, err.Error(), "Account is deactivated")
	h.ds.AssertNotCalled(t, "ExecutePosting", mock.Anything, mock.Anything)
}

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
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/vault/internal/apierror"
	"github.com/blnkfinance/vault/model"
)

func peerTransfer(amount decimal.Decimal) *model.Posting {
	now := time.Now()
	return &model.Posting{
		Reference:   "ref_1",
		Operation:   model.OpPeerTransfer,
		InitiatorID: "usr_a",
		CreatedAt:   now,
		Debits: []*model.Leg{{
			Holder: model.HolderUser, OwnerID: "usr_a", Bucket: model.BucketCurrent, Amount: amount,
			Entry: &model.Transaction{TransactionID: "txn_out", PostingReference: "ref_1", OwnerID: "usr_a", OwnerKind: model.HolderUser,
				Type: model.TypeOutflow, Amount: amount, AccountType: model.BucketCurrent, Description: "rent", CreatedAt: now},
		}},
		Credits: []*model.Leg{{
			Holder: model.HolderUser, OwnerID: "usr_b", Bucket: model.BucketSavings, Amount: amount,
			Entry: &model.Transaction{TransactionID: "txn_in", PostingReference: "ref_1", OwnerID: "usr_b", OwnerKind: model.HolderUser,
				Type: model.TypeInflow, Amount: amount, AccountType: model.BucketSavings, Description: "rent", CreatedAt: now},
		}},
	}
}

func TestExecutePosting_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	amount := decimal.NewFromInt(30)
	p := peerTransfer(amount)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO vault.postings").
		WithArgs("ref_1", model.OpPeerTransfer, "usr_a", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`UPDATE vault.users SET current = current - \$1, outflow = outflow \+ \$1`).
		WithArgs(amount, "usr_a").
		WillReturnRows(sqlmock.NewRows([]string{"current"}).AddRow("70.00"))
	mock.ExpectQuery(`UPDATE vault.users SET savings = savings \+ \$1, inflow = inflow \+ \$1`).
		WithArgs(amount, "usr_b").
		WillReturnRows(sqlmock.NewRows([]string{"savings"}).AddRow("30.00"))
	mock.ExpectExec("INSERT INTO vault.transactions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO vault.transactions").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("UPDATE vault.postings SET receipt").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = ds.ExecutePosting(context.Background(), p)
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(70).Equal(p.Debits[0].BalanceAfter))
	assert.True(t, decimal.NewFromInt(30).Equal(p.Credits[0].BalanceAfter))
	assert.True(t, decimal.NewFromInt(70).Equal(p.Debits[0].Entry.BalanceAfter))
	assert.NotEmpty(t, p.Credits[0].Entry.Hash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutePosting_InsufficientBalanceRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	amount := decimal.NewFromInt(60)
	now := time.Now()
	p := &model.Posting{
		Reference: "ref_w", Operation: model.OpAdminFundUser, InitiatorID: "adm_1", CreatedAt: now,
		Debits:  []*model.Leg{{Holder: model.HolderAdmin, OwnerID: "adm_1", Bucket: model.BucketWallet, Amount: amount}},
		Credits: []*model.Leg{{Holder: model.HolderUser, OwnerID: "usr_b", Bucket: model.BucketSavings, Amount: amount}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO vault.postings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`UPDATE vault.admins SET wallet = wallet - \$1`).
		WithArgs(amount, "adm_1").
		WillReturnRows(sqlmock.NewRows([]string{"wallet"}))
	mock.ExpectQuery(`SELECT wallet FROM vault.admins WHERE admin_id = \$1`).
		WithArgs("adm_1").
		WillReturnRows(sqlmock.NewRows([]string{"wallet"}).AddRow("50.00"))
	mock.ExpectRollback()

	err = ds.ExecutePosting(context.Background(), p)
	require.Error(t, err)

	var apiErr apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, apierror.ErrInsufficientBalance, apiErr.Code)
	assert.Equal(t, "Insufficient balance in wallet. Available: 50.00", apiErr.Message)
	details, ok := apiErr.Details.(apierror.InsufficientBalanceDetails)
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(10).Equal(details.Shortfall))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutePosting_CheckViolationIsInsufficientBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	p := peerTransfer(decimal.NewFromInt(30))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO vault.postings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("UPDATE vault.users SET current").
		WillReturnError(&pq.Error{Code: "23514", Constraint: "users_current_check"})
	mock.ExpectRollback()

	err = ds.ExecutePosting(context.Background(), p)
	assert.True(t, apierror.HasCode(err, apierror.ErrInsufficientBalance))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutePosting_CardDebitHasNoFlowColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	amount := decimal.NewFromInt(10)
	p := &model.Posting{
		Reference: "ref_c", Operation: model.OpCardToAccount, InitiatorID: "usr_a", CreatedAt: time.Now(),
		Debits:  []*model.Leg{{Holder: model.HolderCard, OwnerID: "crd_1", Bucket: model.BucketCard, Amount: amount}},
		Credits: []*model.Leg{{Holder: model.HolderUser, OwnerID: "usr_a", Bucket: model.BucketCurrent, Amount: amount}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO vault.postings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`UPDATE vault.cards SET card_balance = card_balance - \$1, updated_at = NOW\(\) WHERE card_id = \$2`).
		WithArgs(amount, "crd_1").
		WillReturnRows(sqlmock.NewRows([]string{"card_balance"}))
	mock.ExpectQuery(`SELECT card_balance FROM vault.cards`).
		WithArgs("crd_1").
		WillReturnRows(sqlmock.NewRows([]string{"card_balance"}).AddRow("0.00"))
	mock.ExpectRollback()

	err = ds.ExecutePosting(context.Background(), p)
	assert.True(t, apierror.HasCode(err, apierror.ErrInsufficientBalance))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutePosting_MissingCreditTarget(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	amount := decimal.NewFromInt(5)
	p := peerTransfer(amount)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO vault.postings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("UPDATE vault.users SET current").
		WillReturnRows(sqlmock.NewRows([]string{"current"}).AddRow("95.00"))
	mock.ExpectQuery("UPDATE vault.users SET savings").
		WillReturnRows(sqlmock.NewRows([]string{"savings"}))
	mock.ExpectRollback()

	err = ds.ExecutePosting(context.Background(), p)
	assert.True(t, apierror.HasCode(err, apierror.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutePosting_DuplicateReference(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO vault.postings").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "postings_reference_key"})
	mock.ExpectRollback()

	err = ds.ExecutePosting(context.Background(), peerTransfer(decimal.NewFromInt(1)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicatePosting))
	assert.True(t, apierror.HasCode(err, apierror.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutePosting_InvalidBucket(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	p := &model.Posting{
		Reference: "ref_x", Operation: model.OpPeerTransfer, InitiatorID: "usr_a", CreatedAt: time.Now(),
		Debits: []*model.Leg{{Holder: model.HolderUser, OwnerID: "usr_a", Bucket: model.BucketWallet, Amount: decimal.NewFromInt(1)}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO vault.postings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	err = ds.ExecutePosting(context.Background(), p)
	assert.True(t, apierror.HasCode(err, apierror.ErrInvalidBucket))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPostingReceipt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	p := peerTransfer(decimal.NewFromInt(30))
	p.Debits[0].BalanceAfter = decimal.NewFromInt(70)
	raw, err := json.Marshal(p.Receipt())
	require.NoError(t, err)

	mock.ExpectQuery("SELECT receipt FROM vault.postings").
		WithArgs("ref_1").
		WillReturnRows(sqlmock.NewRows([]string{"receipt"}).AddRow(raw))

	receipt, err := ds.GetPostingReceipt(context.Background(), "ref_1")
	require.NoError(t, err)
	assert.Equal(t, "ref_1", receipt.Reference)
	assert.Equal(t, []string{"txn_out", "txn_in"}, receipt.TransactionIDs)
	assert.True(t, decimal.NewFromInt(70).Equal(receipt.Source.BalanceAfter))

	mock.ExpectQuery("SELECT receipt FROM vault.postings").
		WithArgs("ref_missing").
		WillReturnRows(sqlmock.NewRows([]string{"receipt"}))
	_, err = ds.GetPostingReceipt(context.Background(), "ref_missing")
	assert.True(t, apierror.HasCode(err, apierror.ErrNotFound))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&pq.Error{Code: "40P01"}))
	assert.True(t, IsRetryable(&pq.Error{Code: "40001"}))
	assert.False(t, IsRetryable(&pq.Error{Code: "23505"}))
	assert.False(t, IsRetryable(errors.New("boom")))
}

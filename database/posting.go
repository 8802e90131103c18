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
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/blnkfinance/vault/internal/apierror"
	"github.com/blnkfinance/vault/model"
)

// ErrDuplicatePosting is wrapped into the error returned when a posting
// reference has already been committed.
var ErrDuplicatePosting = errors.New("duplicate posting reference")

const constraintPostingReference = "postings_reference_key"

type bucketTarget struct {
	table    string
	idColumn string
	column   string
	flows    bool
}

// bucketTargets whitelists every column a posting may touch, so no caller
// input is ever interpolated into SQL.
var bucketTargets = map[model.Holder]map[model.Bucket]bucketTarget{
	model.HolderUser: {
		model.BucketSavings: {table: "vault.users", idColumn: "user_id", column: "savings", flows: true},
		model.BucketCurrent: {table: "vault.users", idColumn: "user_id", column: "current", flows: true},
		model.BucketLoan:    {table: "vault.users", idColumn: "user_id", column: "loan", flows: true},
	},
	model.HolderAdmin: {
		model.BucketWallet: {table: "vault.admins", idColumn: "admin_id", column: "wallet", flows: true},
	},
	model.HolderCard: {
		model.BucketCard: {table: "vault.cards", idColumn: "card_id", column: "card_balance"},
	},
}

func targetFor(l *model.Leg) (bucketTarget, error) {
	target, ok := bucketTargets[l.Holder][l.Bucket]
	if !ok {
		return bucketTarget{}, apierror.NewAPIError(apierror.ErrInvalidBucket, fmt.Sprintf("bucket %s is not valid for %s", l.Bucket, l.Holder), nil)
	}
	return target, nil
}

func notFoundMessage(h model.Holder) string {
	switch h {
	case model.HolderAdmin:
		return "Admin not found"
	case model.HolderCard:
		return "Card not found"
	}
	return "User not found"
}

// ExecutePosting applies a posting as one database transaction: the posting
// row, every conditional debit, every credit, the log entries and the stored
// receipt. Any failure rolls back all of it.
func (d Datasource) ExecutePosting(ctx context.Context, p *model.Posting) error {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Executing posting")
	defer span.End()
	span.SetAttributes(attribute.String("posting.reference", p.Reference), attribute.String("posting.operation", string(p.Operation)))

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", errors.Wrap(err, "begin posting"))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO vault.postings (reference, operation, initiator_id, created_at) VALUES ($1, $2, $3, $4)
	`, p.Reference, p.Operation, p.InitiatorID, p.CreatedAt)
	if err != nil {
		if name, constraint, ok := pqCode(err); ok && name == "unique_violation" && constraint == constraintPostingReference {
			return apierror.NewAPIError(apierror.ErrConflict, "posting already recorded", ErrDuplicatePosting)
		}
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record posting", errors.Wrap(err, "insert posting"))
	}

	for _, leg := range p.Debits {
		if err := debitLeg(ctx, tx, leg); err != nil {
			span.RecordError(err)
			return err
		}
	}
	for _, leg := range p.Credits {
		if err := creditLeg(ctx, tx, leg); err != nil {
			span.RecordError(err)
			return err
		}
	}

	for _, legs := range [][]*model.Leg{p.Debits, p.Credits} {
		for _, leg := range legs {
			if leg.Entry == nil {
				continue
			}
			if err := insertEntry(ctx, tx, leg); err != nil {
				span.RecordError(err)
				return err
			}
		}
	}

	receipt, err := json.Marshal(p.Receipt())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to encode receipt", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE vault.postings SET receipt = $2 WHERE reference = $1`, p.Reference, receipt); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to store receipt", errors.Wrap(err, "update receipt"))
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit posting", errors.Wrap(err, "commit posting"))
	}
	return nil
}

// debitLeg subtracts only when the bucket still covers the amount. A miss is
// then resolved inside the same transaction into not-found or insufficient.
func debitLeg(ctx context.Context, tx *sql.Tx, leg *model.Leg) error {
	target, err := targetFor(leg)
	if err != nil {
		return err
	}

	set := fmt.Sprintf("%[1]s = %[1]s - $1", target.column)
	if target.flows {
		set += ", outflow = outflow + $1"
	}
	query := fmt.Sprintf(`UPDATE %s SET %s, updated_at = NOW() WHERE %s = $2 AND %s >= $1 RETURNING %s`,
		target.table, set, target.idColumn, target.column, target.column)

	var after decimal.Decimal
	err = tx.QueryRowContext(ctx, query, leg.Amount, leg.OwnerID).Scan(&after)
	if err == sql.ErrNoRows {
		var available decimal.Decimal
		lookup := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, target.column, target.table, target.idColumn)
		if err := tx.QueryRowContext(ctx, lookup, leg.OwnerID).Scan(&available); err != nil {
			if err == sql.ErrNoRows {
				return apierror.NewAPIError(apierror.ErrNotFound, notFoundMessage(leg.Holder), nil)
			}
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read balance", errors.Wrap(err, "lookup balance"))
		}
		return apierror.NewInsufficientBalance(string(leg.Bucket), available, leg.Amount)
	}
	if name, _, ok := pqCode(err); ok && name == "check_violation" {
		return apierror.NewAPIError(apierror.ErrInsufficientBalance, fmt.Sprintf("Insufficient balance in %s", leg.Bucket), err)
	}
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to debit balance", errors.Wrap(err, "debit"))
	}
	leg.BalanceAfter = after
	return nil
}

func creditLeg(ctx context.Context, tx *sql.Tx, leg *model.Leg) error {
	target, err := targetFor(leg)
	if err != nil {
		return err
	}

	set := fmt.Sprintf("%[1]s = %[1]s + $1", target.column)
	if target.flows {
		set += ", inflow = inflow + $1"
	}
	query := fmt.Sprintf(`UPDATE %s SET %s, updated_at = NOW() WHERE %s = $2 RETURNING %s`,
		target.table, set, target.idColumn, target.column)

	var after decimal.Decimal
	err = tx.QueryRowContext(ctx, query, leg.Amount, leg.OwnerID).Scan(&after)
	if err == sql.ErrNoRows {
		return apierror.NewAPIError(apierror.ErrNotFound, notFoundMessage(leg.Holder), nil)
	}
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to credit balance", errors.Wrap(err, "credit"))
	}
	leg.BalanceAfter = after
	return nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, leg *model.Leg) error {
	e := leg.Entry
	e.BalanceAfter = leg.BalanceAfter
	e.Hash = e.HashTxn()

	_, err := tx.ExecContext(ctx, `
		INSERT INTO vault.transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)
	`, e.TransactionID, e.PostingReference, e.OwnerID, e.OwnerKind, e.Type, e.Amount, e.AccountType,
		e.Description, e.Counterparty, e.BalanceAfter, e.Hash, e.CreatedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record transaction", errors.Wrap(err, "insert transaction"))
	}
	return nil
}

// GetPostingReceipt loads the receipt stored with a committed posting.
func (d Datasource) GetPostingReceipt(ctx context.Context, reference string) (*model.Receipt, error) {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Fetching posting receipt")
	defer span.End()

	var raw []byte
	err := d.Conn.QueryRowContext(ctx, `SELECT receipt FROM vault.postings WHERE reference = $1 AND receipt IS NOT NULL`, reference).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Posting not found", nil)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve posting", errors.Wrap(err, "select receipt"))
	}

	receipt := &model.Receipt{}
	if err := json.Unmarshal(raw, receipt); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to decode receipt", err)
	}
	return receipt, nil
}

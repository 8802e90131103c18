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
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/vault/internal/apierror"
	"github.com/blnkfinance/vault/model"
)

const transactionColumns = `transaction_id, posting_reference, owner_id, owner_kind, type, amount, account_type,
	description, counterparty, balance_after, hash, created_at`

func scanTransaction(row rowScanner) (model.Transaction, error) {
	var txn model.Transaction
	var counterparty sql.NullString
	err := row.Scan(&txn.TransactionID, &txn.PostingReference, &txn.OwnerID, &txn.OwnerKind, &txn.Type, &txn.Amount,
		&txn.AccountType, &txn.Description, &counterparty, &txn.BalanceAfter, &txn.Hash, &txn.CreatedAt)
	txn.Counterparty = counterparty.String
	return txn, err
}

func (d Datasource) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]model.Transaction, error) {
	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to load transaction history", errors.Wrap(err, "query transactions"))
	}
	defer rows.Close()

	transactions := []model.Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan transaction", err)
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over transactions", err)
	}
	return transactions, nil
}

// GetTransactionsByOwner pages through an owner's log newest first. The id
// tiebreaker keeps the order stable for entries sharing a timestamp.
func (d Datasource) GetTransactionsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Transaction, error) {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Fetching transaction history")
	defer span.End()

	return d.queryTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM vault.transactions
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
}

func (d Datasource) GetTransactionsInRange(ctx context.Context, ownerID string, from, to time.Time) ([]model.Transaction, error) {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Fetching transactions for statement")
	defer span.End()

	return d.queryTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM vault.transactions
		WHERE owner_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at DESC, id DESC
	`, ownerID, from, to)
}

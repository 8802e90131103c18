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
	"bytes"
	"context"
	"encoding/csv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/vault/internal/apierror"
	"github.com/blnkfinance/vault/internal/archive"
	"github.com/blnkfinance/vault/model"
)

const statementDateLayout = "2006-01-02"

func (v *Vault) page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = v.conf.Ledger.PageSize
	}
	if limit > v.conf.Ledger.MaxPageSize {
		limit = v.conf.Ledger.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// TransactionHistory returns one page of an owner's log, newest first.
func (v *Vault) TransactionHistory(ctx context.Context, ownerID string, limit, offset int) ([]model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "TransactionHistory")
	defer span.End()

	limit, offset = v.page(limit, offset)
	return v.datasource.GetTransactionsByOwner(ctx, ownerID, limit, offset)
}

// ExportStatement renders the owner's entries between the start of start's
// day and the end of end's day as CSV.
func (v *Vault) ExportStatement(ctx context.Context, ownerID string, start, end time.Time) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "ExportStatement")
	defer span.End()

	from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	to := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), end.Location())
	if to.Before(from) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "end date must not be before start date", nil)
	}

	txns, err := v.datasource.GetTransactionsInRange(ctx, ownerID, from, to)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "No transactions found", nil)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(model.StatementHeader); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to write statement", err)
	}
	for i := range txns {
		if err := w.Write(txns[i].StatementRow()); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to write statement", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to write statement", err)
	}

	body := buf.Bytes()
	if v.archive != nil {
		key := archive.StatementKey(ownerID, from.Format(statementDateLayout), to.Format(statementDateLayout))
		go v.archiveStatement(key, body)
	}
	return body, nil
}

func (v *Vault) archiveStatement(key string, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	location, err := v.archive.Put(ctx, key, body)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Error("failed to archive statement")
		return
	}
	logrus.WithField("location", location).Info("statement archived")
}

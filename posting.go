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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/blnkfinance/vault/database"
	"github.com/blnkfinance/vault/internal/apierror"
	redlock "github.com/blnkfinance/vault/internal/lock"
	"github.com/blnkfinance/vault/model"
)

var tracer = otel.Tracer("vault.ledger")

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.WithError(err).Error(msg)
	return err
}

// entry builds the log entry for one side of a posting.
func entry(p *model.Posting, holder model.Holder, ownerID string, kind model.TransactionType, amount decimal.Decimal,
	bucket model.Bucket, description, counterparty string) *model.Transaction {
	return &model.Transaction{
		TransactionID:    model.GenerateUUIDWithSuffix("txn"),
		PostingReference: p.Reference,
		OwnerID:          ownerID,
		OwnerKind:        holder,
		Type:             kind,
		Amount:           amount,
		AccountType:      bucket,
		Description:      description,
		Counterparty:     counterparty,
		CreatedAt:        p.CreatedAt,
	}
}

// debit and credit append a leg to the posting. Card legs carry no log entry.
func (p *postingBuilder) debit(holder model.Holder, ownerID string, bucket model.Bucket, description, counterparty string) *postingBuilder {
	leg := &model.Leg{Holder: holder, OwnerID: ownerID, Bucket: bucket, Amount: p.amount}
	if holder != model.HolderCard {
		leg.Entry = entry(p.posting, holder, ownerID, model.TypeOutflow, p.amount, bucket, description, counterparty)
	}
	p.posting.Debits = append(p.posting.Debits, leg)
	return p
}

func (p *postingBuilder) credit(holder model.Holder, ownerID string, bucket model.Bucket, description, counterparty string) *postingBuilder {
	leg := &model.Leg{Holder: holder, OwnerID: ownerID, Bucket: bucket, Amount: p.amount}
	if holder != model.HolderCard {
		leg.Entry = entry(p.posting, holder, ownerID, model.TypeInflow, p.amount, bucket, description, counterparty)
	}
	p.posting.Credits = append(p.posting.Credits, leg)
	return p
}

type postingBuilder struct {
	posting *model.Posting
	amount  decimal.Decimal
}

func newPosting(reference string, op model.Operation, initiatorID string, amount decimal.Decimal, at time.Time) *postingBuilder {
	return &postingBuilder{
		posting: &model.Posting{
			Reference:   reference,
			Operation:   op,
			InitiatorID: initiatorID,
			CreatedAt:   at.UTC(),
		},
		amount: amount,
	}
}

// post executes p, replaying it while the database reports a deadlock or a
// serialization failure.
func (v *Vault) post(ctx context.Context, p *model.Posting) (*model.Receipt, error) {
	ctx, span := tracer.Start(ctx, "ExecutePosting")
	defer span.End()
	span.SetAttributes(attribute.String("posting.reference", p.Reference), attribute.String("posting.operation", string(p.Operation)))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxElapsedTime = v.conf.Ledger.MaxRetryElapsed

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := v.datasource.ExecutePosting(ctx, p)
		if err == nil {
			return nil
		}
		if database.IsRetryable(err) {
			logrus.WithFields(logrus.Fields{"reference": p.Reference, "attempt": attempt}).Warn("retrying posting after transient conflict")
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	receipt := p.Receipt()
	logrus.WithFields(logrus.Fields{
		"reference": p.Reference,
		"operation": p.Operation,
		"entries":   len(receipt.TransactionIDs),
	}).Info("posting applied")
	return &receipt, nil
}

func idempotencyReference(caller, key string) string {
	return caller + ":" + key
}

// postingRequest identifies one call to a money-moving operation. The hash
// covers every parameter that shapes the posting so a reused key can be told
// apart from a retry.
type postingRequest struct {
	caller string
	key    string
	op     model.Operation
	hash   string
}

func newPostingRequest(caller, key string, op model.Operation, fields ...string) postingRequest {
	return postingRequest{caller: caller, key: key, op: op, hash: requestHash(op, fields...)}
}

func requestHash(op model.Operation, fields ...string) string {
	sum := sha256.Sum256([]byte(string(op) + "\x1f" + strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// replay returns receipt when it answers the same request, and a conflict
// when the key was first used for something else.
func (r postingRequest) replay(receipt *model.Receipt) (*model.Receipt, bool, error) {
	if receipt.Operation != r.op || receipt.RequestHash != r.hash {
		logrus.WithFields(logrus.Fields{"reference": receipt.Reference, "operation": r.op}).Warn("idempotency key reused with different parameters")
		return nil, false, apierror.NewAPIError(apierror.ErrConflict, "idempotency key reused with different parameters", nil)
	}
	return receipt, false, nil
}

func receiptCacheKey(reference string) string {
	return "receipt:" + reference
}

func (v *Vault) cachedReceipt(ctx context.Context, reference string) (*model.Receipt, bool) {
	var raw []byte
	found, err := v.cache.Get(ctx, receiptCacheKey(reference), &raw)
	if err != nil {
		logrus.WithError(err).Warn("receipt cache lookup failed")
		return nil, false
	}
	if !found {
		return nil, false
	}
	receipt := &model.Receipt{}
	if err := json.Unmarshal(raw, receipt); err != nil {
		return nil, false
	}
	return receipt, true
}

func (v *Vault) cacheReceipt(ctx context.Context, reference string, receipt *model.Receipt) {
	raw, err := json.Marshal(receipt)
	if err != nil {
		return
	}
	if err := v.cache.Set(ctx, receiptCacheKey(reference), raw, v.conf.Ledger.IdempotencyTTL); err != nil {
		logrus.WithError(err).Warn("failed to cache receipt")
	}
}

// runPosting builds and executes a posting and reports whether it was applied
// by this call. With an idempotency key, a request already applied returns its
// original receipt and a concurrent duplicate is refused while the first one runs.
func (v *Vault) runPosting(ctx context.Context, req postingRequest, build func(reference string) (*model.Posting, error)) (*model.Receipt, bool, error) {
	if req.key == "" {
		p, err := build(model.GenerateUUIDWithSuffix("pst"))
		if err != nil {
			return nil, false, err
		}
		receipt, err := v.post(ctx, p)
		return receipt, err == nil, err
	}

	reference := idempotencyReference(req.caller, req.key)
	if receipt, ok := v.cachedReceipt(ctx, reference); ok {
		return req.replay(receipt)
	}

	locker := redlock.NewLocker(v.redis, reference, uuid.NewString())
	if err := locker.Lock(ctx, v.conf.Ledger.IdempotencyLockTTL); err != nil {
		if errors.Is(err, redlock.ErrLockHeld) {
			return nil, false, apierror.NewAPIError(apierror.ErrConflict, "request with this idempotency key is already being processed", nil)
		}
		return nil, false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to acquire idempotency lock", err)
	}
	defer func() {
		if err := locker.Unlock(context.WithoutCancel(ctx)); err != nil {
			logrus.WithError(err).Debug("idempotency lock release")
		}
	}()

	stored, err := v.datasource.GetPostingReceipt(ctx, reference)
	if err == nil {
		v.cacheReceipt(ctx, reference, stored)
		return req.replay(stored)
	}
	if !apierror.HasCode(err, apierror.ErrNotFound) {
		return nil, false, err
	}

	p, err := build(reference)
	if err != nil {
		return nil, false, err
	}
	p.RequestHash = req.hash
	receipt, err := v.post(ctx, p)
	if errors.Is(err, database.ErrDuplicatePosting) {
		stored, err := v.datasource.GetPostingReceipt(ctx, reference)
		if err != nil {
			return nil, false, err
		}
		v.cacheReceipt(ctx, reference, stored)
		return req.replay(stored)
	}
	if err != nil {
		return nil, false, err
	}
	v.cacheReceipt(ctx, reference, receipt)
	return receipt, true, nil
}

// effectiveTime is the entry timestamp: the admin-supplied date or now.
func (v *Vault) effectiveTime(date *time.Time) time.Time {
	if date != nil && !date.IsZero() {
		return *date
	}
	return v.now()
}

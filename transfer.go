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
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/blnkfinance/vault/internal/apierror"
	"github.com/blnkfinance/vault/model"
)

// TransferRequest moves money from the caller to another customer's account number.
type TransferRequest struct {
	AccountNumber   string
	Amount          decimal.Decimal
	FromAccountType string
	ToAccountType   string
	BankName        string
	Country         string
	Pin             string
	IdempotencyKey  string
}

// AdminTransferRequest moves money between two customers on an admin's behalf.
type AdminTransferRequest struct {
	SenderEmail         string
	ReceiverEmail       string
	Amount              decimal.Decimal
	FromAccountType     string
	ToAccountType       string
	SenderDescription   string
	ReceiverDescription string
	Date                *time.Time
	IdempotencyKey      string
}

func (r TransferRequest) postingRequest(senderID string, from, to model.Bucket) postingRequest {
	return newPostingRequest(senderID, r.IdempotencyKey, model.OpPeerTransfer,
		r.AccountNumber, r.Amount.StringFixed(2), string(from), string(to), r.BankName, r.Country)
}

func (r AdminTransferRequest) postingRequest(adminID string, from, to model.Bucket) postingRequest {
	return newPostingRequest(adminID, r.IdempotencyKey, model.OpAdminTransfer,
		strings.ToLower(r.SenderEmail), strings.ToLower(r.ReceiverEmail), r.Amount.StringFixed(2),
		string(from), string(to), r.SenderDescription, r.ReceiverDescription, formatDate(r.Date))
}

func formatDate(date *time.Time) string {
	if date == nil || date.IsZero() {
		return ""
	}
	return date.UTC().Format(time.RFC3339Nano)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// ensureActive refuses to move money out of a deactivated customer's accounts.
func ensureActive(user *model.User) error {
	if !user.IsActive {
		return apierror.NewAPIError(apierror.ErrForbidden, "Account is deactivated", nil)
	}
	return nil
}

func ensureCovers(bucket model.Bucket, available, amount decimal.Decimal) error {
	if available.LessThan(amount) {
		return apierror.NewInsufficientBalance(string(bucket), available, amount)
	}
	return nil
}

// Transfer debits the sender's bucket and credits the recipient found by
// account number. The sender's PIN is checked before any balance is read.
func (v *Vault) Transfer(ctx context.Context, senderID string, req TransferRequest) (*model.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Transfer")
	defer span.End()

	if err := model.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	from, err := model.ParseBucket(req.FromAccountType, model.BucketSavings, model.TransferBuckets)
	if err != nil {
		return nil, err
	}
	to, err := model.ParseBucket(req.ToAccountType, model.BucketCurrent, model.TransferBuckets)
	if err != nil {
		return nil, err
	}

	receipt, applied, err := v.runPosting(ctx, req.postingRequest(senderID, from, to), func(reference string) (*model.Posting, error) {
		sender, err := v.datasource.GetUserByID(ctx, senderID)
		if err != nil {
			return nil, err
		}
		if err := ensureActive(sender); err != nil {
			return nil, err
		}
		receiver, err := v.datasource.GetUserByAccountNumber(ctx, req.AccountNumber)
		if err != nil {
			return nil, err
		}
		if receiver.UserID == sender.UserID {
			return nil, apierror.NewAPIError(apierror.ErrSelfTransferDenied, "You cannot transfer money to yourself", nil)
		}
		if err := v.verifyPin(ctx, sender, req.Pin); err != nil {
			return nil, err
		}
		if err := ensureCovers(from, sender.Balances.Get(from), req.Amount); err != nil {
			return nil, err
		}

		senderAccount := sender.AccountNumberFor(from)
		b := newPosting(reference, model.OpPeerTransfer, sender.UserID, req.Amount, v.now())
		b.debit(model.HolderUser, sender.UserID, from,
			fmt.Sprintf("Transfer to %s (%s, %s)", req.AccountNumber,
				orDefault(req.BankName, "Unknown Bank"), orDefault(req.Country, "Unknown Country")),
			req.AccountNumber)
		b.credit(model.HolderUser, receiver.UserID, to,
			fmt.Sprintf("Transfer from %s (%s)", sender.Fullname, senderAccount),
			senderAccount)

		span.SetAttributes(attribute.String("transfer.receiver", receiver.UserID))
		return b.posting, nil
	})
	if err != nil {
		return nil, logAndRecordError(span, "transfer failed", err)
	}

	if applied {
		v.notifyTransfer(ctx, receipt, req.Amount)
	}
	return receipt, nil
}

// AdminTransfer moves money between two customers identified by email.
func (v *Vault) AdminTransfer(ctx context.Context, adminID string, req AdminTransferRequest) (*model.Receipt, error) {
	ctx, span := tracer.Start(ctx, "AdminTransfer")
	defer span.End()

	if err := model.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	from, err := model.ParseBucket(req.FromAccountType, model.BucketSavings, model.TransferBuckets)
	if err != nil {
		return nil, err
	}
	to, err := model.ParseBucket(req.ToAccountType, model.BucketSavings, model.TransferBuckets)
	if err != nil {
		return nil, err
	}

	receipt, applied, err := v.runPosting(ctx, req.postingRequest(adminID, from, to), func(reference string) (*model.Posting, error) {
		if _, err := v.datasource.GetAdminByID(ctx, adminID); err != nil {
			return nil, err
		}
		sender, err := v.datasource.GetUserByEmail(ctx, req.SenderEmail)
		if err != nil {
			return nil, err
		}
		if err := ensureActive(sender); err != nil {
			return nil, err
		}
		receiver, err := v.datasource.GetUserByEmail(ctx, req.ReceiverEmail)
		if err != nil {
			return nil, err
		}
		if sender.UserID == receiver.UserID {
			return nil, apierror.NewAPIError(apierror.ErrSelfTransferDenied, "Sender and receiver must be different users", nil)
		}
		if err := ensureCovers(from, sender.Balances.Get(from), req.Amount); err != nil {
			return nil, err
		}

		b := newPosting(reference, model.OpAdminTransfer, adminID, req.Amount, v.effectiveTime(req.Date))
		b.debit(model.HolderUser, sender.UserID, from,
			orDefault(req.SenderDescription, fmt.Sprintf("Transfer to %s", receiver.Fullname)),
			receiver.AccountNumberFor(to))
		b.credit(model.HolderUser, receiver.UserID, to,
			orDefault(req.ReceiverDescription, fmt.Sprintf("Transfer from %s", sender.Fullname)),
			sender.AccountNumberFor(from))
		return b.posting, nil
	})
	if err != nil {
		return nil, logAndRecordError(span, "admin transfer failed", err)
	}

	if applied {
		v.notifyTransfer(ctx, receipt, req.Amount)
	}
	return receipt, nil
}

// notifyTransfer tells both customers about a completed transfer. Lookups
// that fail only skip the message.
func (v *Vault) notifyTransfer(ctx context.Context, receipt *model.Receipt, amount decimal.Decimal) {
	if receipt.Source == nil || receipt.Destination == nil {
		return
	}
	if sender, err := v.datasource.GetUserByID(ctx, receipt.Source.OwnerID); err == nil {
		v.notify(ctx, sender.Email, "Debit alert",
			fmt.Sprintf("%s was debited from your %s account. Balance: %s",
				amount.StringFixed(2), receipt.Source.Bucket, receipt.Source.BalanceAfter.StringFixed(2)))
	}
	if receiver, err := v.datasource.GetUserByID(ctx, receipt.Destination.OwnerID); err == nil {
		v.notify(ctx, receiver.Email, "Credit alert",
			fmt.Sprintf("%s was credited to your %s account. Balance: %s",
				amount.StringFixed(2), receipt.Destination.Bucket, receipt.Destination.BalanceAfter.StringFixed(2)))
	}
}

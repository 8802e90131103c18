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

	"github.com/blnkfinance/vault/internal/apierror"
	"github.com/blnkfinance/vault/model"
)

type FundUserRequest struct {
	Email          string
	Amount         decimal.Decimal
	AccountType    string
	Description    string
	Date           *time.Time
	IdempotencyKey string
}

type FundCardRequest struct {
	CardID         string
	Amount         decimal.Decimal
	AccountType    string
	IdempotencyKey string
}

// CardToAccountRequest moves money from a card back into a bank bucket.
type CardToAccountRequest = FundCardRequest

func (r FundUserRequest) postingRequest(adminID string, bucket model.Bucket) postingRequest {
	return newPostingRequest(adminID, r.IdempotencyKey, model.OpAdminFundUser,
		strings.ToLower(r.Email), r.Amount.StringFixed(2), string(bucket), r.Description, formatDate(r.Date))
}

func cardPostingRequest(userID string, op model.Operation, r FundCardRequest, bucket model.Bucket) postingRequest {
	return newPostingRequest(userID, r.IdempotencyKey, op, r.CardID, r.Amount.StringFixed(2), string(bucket))
}

// FundUser moves money from the admin's wallet into a customer bucket.
func (v *Vault) FundUser(ctx context.Context, adminID string, req FundUserRequest) (*model.Receipt, error) {
	ctx, span := tracer.Start(ctx, "FundUser")
	defer span.End()

	if err := model.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.AccountType) == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidBucket, "account type is required", nil)
	}
	bucket, err := model.ParseBucket(req.AccountType, "", model.FundingBuckets)
	if err != nil {
		return nil, err
	}

	var recipient *model.User
	receipt, applied, err := v.runPosting(ctx, req.postingRequest(adminID, bucket), func(reference string) (*model.Posting, error) {
		admin, err := v.datasource.GetAdminByID(ctx, adminID)
		if err != nil {
			return nil, err
		}
		user, err := v.datasource.GetUserByEmail(ctx, req.Email)
		if err != nil {
			return nil, err
		}
		if err := ensureCovers(model.BucketWallet, admin.Wallet, req.Amount); err != nil {
			return nil, err
		}
		recipient = user

		b := newPosting(reference, model.OpAdminFundUser, adminID, req.Amount, v.effectiveTime(req.Date))
		b.debit(model.HolderAdmin, admin.AdminID, model.BucketWallet,
			fmt.Sprintf("Funded %s (%s)", user.Fullname, user.Email), user.AccountNumberFor(bucket))
		b.credit(model.HolderUser, user.UserID, bucket,
			orDefault(req.Description, "Account funded by "+v.conf.Ledger.BankName), "")
		return b.posting, nil
	})
	if err != nil {
		return nil, logAndRecordError(span, "fund user failed", err)
	}

	if applied && recipient != nil && receipt.Destination != nil {
		v.notify(ctx, recipient.Email, "Account funded",
			fmt.Sprintf("Your %s account was credited with %s. Balance: %s",
				bucket, req.Amount.StringFixed(2), receipt.Destination.BalanceAfter.StringFixed(2)))
	}
	return receipt, nil
}

// FundAdminWallet credits an admin wallet. It is the only operation that
// creates money, so it has no debit side.
func (v *Vault) FundAdminWallet(ctx context.Context, superadminID, adminID string, amount decimal.Decimal, key string) (*model.Receipt, error) {
	ctx, span := tracer.Start(ctx, "FundAdminWallet")
	defer span.End()

	if err := model.ValidateAmount(amount); err != nil {
		return nil, err
	}

	var target *model.Admin
	req := newPostingRequest(superadminID, key, model.OpAdminWalletFunding, adminID, amount.StringFixed(2))
	receipt, applied, err := v.runPosting(ctx, req, func(reference string) (*model.Posting, error) {
		super, err := v.datasource.GetAdminByID(ctx, superadminID)
		if err != nil {
			return nil, err
		}
		if super.Role != model.RoleSuperadmin {
			return nil, apierror.NewAPIError(apierror.ErrForbidden, "Only a superadmin can fund admin wallets", nil)
		}
		admin, err := v.datasource.GetAdminByID(ctx, adminID)
		if err != nil {
			return nil, err
		}
		target = admin

		b := newPosting(reference, model.OpAdminWalletFunding, superadminID, amount, v.now())
		b.credit(model.HolderAdmin, admin.AdminID, model.BucketWallet,
			fmt.Sprintf("Wallet funded by superadmin %s", super.Fullname), "")
		return b.posting, nil
	})
	if err != nil {
		return nil, logAndRecordError(span, "fund admin wallet failed", err)
	}

	if applied && target != nil {
		v.notify(ctx, target.Email, "Wallet funded",
			fmt.Sprintf("Your wallet was credited with %s", amount.StringFixed(2)))
	}
	return receipt, nil
}

func (v *Vault) ownedCard(ctx context.Context, userID, cardID string) (*model.Card, error) {
	card, err := v.datasource.GetCardByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.UserID != userID {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Card not found", nil)
	}
	if card.Status != model.CardApproved {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Card is not approved", nil)
	}
	return card, nil
}

// FundCard moves money from a bank bucket onto one of the caller's cards.
func (v *Vault) FundCard(ctx context.Context, userID string, req FundCardRequest) (*model.Receipt, error) {
	ctx, span := tracer.Start(ctx, "FundCard")
	defer span.End()

	if err := model.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	bucket, err := model.ParseBucket(req.AccountType, model.BucketCurrent, model.CardBuckets)
	if err != nil {
		return nil, err
	}

	var owner *model.User
	receipt, applied, err := v.runPosting(ctx, cardPostingRequest(userID, model.OpCardFunding, req, bucket), func(reference string) (*model.Posting, error) {
		user, err := v.datasource.GetUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := ensureActive(user); err != nil {
			return nil, err
		}
		card, err := v.ownedCard(ctx, userID, req.CardID)
		if err != nil {
			return nil, err
		}
		if !card.IsActive {
			return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Card is inactive", nil)
		}
		if err := ensureCovers(bucket, user.Balances.Get(bucket), req.Amount); err != nil {
			return nil, err
		}
		owner = user

		b := newPosting(reference, model.OpCardFunding, userID, req.Amount, v.now())
		b.debit(model.HolderUser, userID, bucket, "Card funding "+card.MaskedNumber(), card.MaskedNumber())
		b.credit(model.HolderCard, card.CardID, model.BucketCard, "", "")
		return b.posting, nil
	})
	if err != nil {
		return nil, logAndRecordError(span, "card funding failed", err)
	}

	if applied && owner != nil && receipt.Destination != nil {
		v.notify(ctx, owner.Email, "Card funded",
			fmt.Sprintf("%s moved to your card. Card balance: %s",
				req.Amount.StringFixed(2), receipt.Destination.BalanceAfter.StringFixed(2)))
	}
	return receipt, nil
}

// CardToAccount moves money from a card back into a bank bucket. Inactive
// cards are allowed so their balance can always be withdrawn.
func (v *Vault) CardToAccount(ctx context.Context, userID string, req CardToAccountRequest) (*model.Receipt, error) {
	ctx, span := tracer.Start(ctx, "CardToAccount")
	defer span.End()

	if err := model.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	bucket, err := model.ParseBucket(req.AccountType, model.BucketCurrent, model.CardBuckets)
	if err != nil {
		return nil, err
	}

	var owner *model.User
	receipt, applied, err := v.runPosting(ctx, cardPostingRequest(userID, model.OpCardToAccount, req, bucket), func(reference string) (*model.Posting, error) {
		user, err := v.datasource.GetUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := ensureActive(user); err != nil {
			return nil, err
		}
		card, err := v.ownedCard(ctx, userID, req.CardID)
		if err != nil {
			return nil, err
		}
		if err := ensureCovers(model.BucketCard, card.CardBalance, req.Amount); err != nil {
			return nil, err
		}
		owner = user

		b := newPosting(reference, model.OpCardToAccount, userID, req.Amount, v.now())
		b.debit(model.HolderCard, card.CardID, model.BucketCard, "", "")
		b.credit(model.HolderUser, userID, bucket, "Transfer from card "+card.MaskedNumber(), card.MaskedNumber())
		return b.posting, nil
	})
	if err != nil {
		return nil, logAndRecordError(span, "card to account failed", err)
	}

	if applied && owner != nil && receipt.Destination != nil {
		v.notify(ctx, owner.Email, "Card withdrawal",
			fmt.Sprintf("%s moved from your card to your %s account. Balance: %s",
				req.Amount.StringFixed(2), bucket, receipt.Destination.BalanceAfter.StringFixed(2)))
	}
	return receipt, nil
}

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
	"regexp"
	"strings"

	"github.com/blnkfinance/vault/internal/apierror"
	"github.com/blnkfinance/vault/model"
)

var (
	cardNumberPattern = regexp.MustCompile(`^\d{13,19}$`)
	expiryPattern     = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvvPattern        = regexp.MustCompile(`^\d{3,4}$`)
)

// CardApplication carries the details of a new card. CVV and CardPin are
// validated and then discarded.
type CardApplication struct {
	CardHolderName string
	CardType       string
	CardNumber     string
	ExpiryDate     string
	CVV            string
	CardPin        string
}

func (a CardApplication) normalize() (CardApplication, error) {
	a.CardHolderName = strings.TrimSpace(a.CardHolderName)
	a.CardType = strings.ToLower(strings.TrimSpace(a.CardType))
	a.CardNumber = strings.NewReplacer(" ", "", "-", "").Replace(a.CardNumber)

	switch {
	case a.CardHolderName == "":
		return a, apierror.NewAPIError(apierror.ErrInvalidInput, "card holder name is required", nil)
	case a.CardType == "":
		return a, apierror.NewAPIError(apierror.ErrInvalidInput, "card type is required", nil)
	case !cardNumberPattern.MatchString(a.CardNumber):
		return a, apierror.NewAPIError(apierror.ErrInvalidInput, "card number must be 13 to 19 digits", nil)
	case !expiryPattern.MatchString(a.ExpiryDate):
		return a, apierror.NewAPIError(apierror.ErrInvalidInput, "expiry date must be in MM/YY format", nil)
	case !cvvPattern.MatchString(a.CVV):
		return a, apierror.NewAPIError(apierror.ErrInvalidInput, "cvv must be 3 or 4 digits", nil)
	case !pinPattern.MatchString(a.CardPin):
		return a, apierror.NewAPIError(apierror.ErrInvalidInput, "card pin must be exactly 4 digits", nil)
	}
	return a, nil
}

func (v *Vault) newCard(userID string, app CardApplication, createdBy model.Role) (*model.Card, error) {
	token, err := v.tokenizer.Seal(app.CardNumber)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to secure card number", err)
	}
	now := v.now().UTC()
	return &model.Card{
		CardID:          model.GenerateUUIDWithSuffix("card"),
		UserID:          userID,
		CardHolderName:  app.CardHolderName,
		CardType:        app.CardType,
		CardFingerprint: v.tokenizer.Fingerprint(app.CardNumber),
		CardNumberToken: token,
		Last4:           app.CardNumber[len(app.CardNumber)-4:],
		ExpiryDate:      app.ExpiryDate,
		Status:          model.CardPending,
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (v *Vault) ensureNoOpenCard(ctx context.Context, userID string) error {
	open, err := v.datasource.HasOpenCard(ctx, userID)
	if err != nil {
		return err
	}
	if open {
		return apierror.NewAPIError(apierror.ErrDuplicateActiveCard, "You already have an active or pending card", nil)
	}
	return nil
}

// ApplyForCard records a pending card application for the caller.
func (v *Vault) ApplyForCard(ctx context.Context, userID string, app CardApplication) (*model.Card, error) {
	ctx, span := tracer.Start(ctx, "ApplyForCard")
	defer span.End()

	app, err := app.normalize()
	if err != nil {
		return nil, err
	}
	if _, err := v.datasource.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	if err := v.ensureNoOpenCard(ctx, userID); err != nil {
		return nil, err
	}

	card, err := v.newCard(userID, app, model.RoleUser)
	if err != nil {
		return nil, err
	}
	if err := v.datasource.CreateCard(ctx, card); err != nil {
		return nil, logAndRecordError(span, "card application failed", err)
	}
	return card, nil
}

// AdminCreateCard issues an already approved card to the customer with email.
func (v *Vault) AdminCreateCard(ctx context.Context, adminID, email string, app CardApplication) (*model.Card, error) {
	ctx, span := tracer.Start(ctx, "AdminCreateCard")
	defer span.End()

	app, err := app.normalize()
	if err != nil {
		return nil, err
	}
	user, err := v.datasource.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := v.ensureNoOpenCard(ctx, user.UserID); err != nil {
		return nil, err
	}

	card, err := v.newCard(user.UserID, app, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	approvedAt := card.CreatedAt
	card.Status = model.CardApproved
	card.IsActive = true
	card.ApprovedBy = adminID
	card.ApprovedAt = &approvedAt
	if err := v.datasource.CreateCard(ctx, card); err != nil {
		return nil, logAndRecordError(span, "admin card creation failed", err)
	}

	v.notify(ctx, user.Email, "Card issued", fmt.Sprintf("Your card %s is ready to use", card.MaskedNumber()))
	return card, nil
}

func (v *Vault) ApproveCard(ctx context.Context, adminID, cardID string) (*model.Card, error) {
	card, err := v.datasource.TransitionCard(ctx, cardID, model.CardPending, model.CardApproved, adminID, "")
	if err != nil {
		return nil, err
	}
	v.notifyCardOwner(ctx, card, "Card approved", fmt.Sprintf("Your card %s has been approved", card.MaskedNumber()))
	return card, nil
}

func (v *Vault) RejectCard(ctx context.Context, adminID, cardID, reason string) (*model.Card, error) {
	card, err := v.datasource.TransitionCard(ctx, cardID, model.CardPending, model.CardRejected, adminID, reason)
	if err != nil {
		return nil, err
	}
	v.notifyCardOwner(ctx, card, "Card rejected",
		fmt.Sprintf("Your card application was rejected: %s", orDefault(reason, "no reason given")))
	return card, nil
}

func (v *Vault) DeactivateCard(ctx context.Context, cardID string) (*model.Card, error) {
	return v.datasource.SetCardActive(ctx, cardID, false)
}

func (v *Vault) ReactivateCard(ctx context.Context, cardID string) (*model.Card, error) {
	return v.datasource.SetCardActive(ctx, cardID, true)
}

func (v *Vault) GetMyCards(ctx context.Context, userID string) ([]model.Card, error) {
	return v.datasource.GetCardsByUser(ctx, userID)
}

func (v *Vault) GetPendingCards(ctx context.Context) ([]model.Card, error) {
	return v.datasource.GetCardsByStatus(ctx, model.CardPending)
}

func (v *Vault) GetAllCards(ctx context.Context, limit, offset int) ([]model.Card, error) {
	limit, offset = v.page(limit, offset)
	return v.datasource.GetAllCards(ctx, limit, offset)
}

func (v *Vault) notifyCardOwner(ctx context.Context, card *model.Card, subject, body string) {
	user, err := v.datasource.GetUserByID(ctx, card.UserID)
	if err != nil {
		return
	}
	v.notify(ctx, user.Email, subject, body)
}

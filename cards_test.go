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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/vault/internal/apierror"
	"github.com/blnkfinance/vault/model"
)

func validApplication() CardApplication {
	return CardApplication{
		CardHolderName: "Ada Obi",
		CardType:       "Visa",
		CardNumber:     "4242 4242 4242 4242",
		ExpiryDate:     "09/27",
		CVV:            "123",
		CardPin:        "5678",
	}
}

func TestApplyForCard(t *testing.T) {
	h := newTestVault(t)
	h.ds.On("GetUserByID", mock.Anything, "usr_a").Return(&model.User{UserID: "usr_a"}, nil)
	h.ds.On("HasOpenCard", mock.Anything, "usr_a").Return(false, nil)

	var created *model.Card
	h.ds.On("CreateCard", mock.Anything, mock.AnythingOfType("*model.Card")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*model.Card) }).
		Return(nil)

	card, err := h.vault.ApplyForCard(context.Background(), "usr_a", validApplication())
	require.NoError(t, err)
	assert.Same(t, created, card)
	assert.Equal(t, model.CardPending, card.Status)
	assert.False(t, card.IsActive)
	assert.Equal(t, model.RoleUser, card.CreatedBy)
	assert.Len(t, card.CardFingerprint, 64)
	assert.NotContains(t, card.CardNumberToken, "4242424242424242")
	number, err := h.vault.tokenizer.Open(card.CardNumberToken)
	require.NoError(t, err)
	assert.Equal(t, "4242424242424242", number)
	assert.Equal(t, "4242", card.Last4)
	assert.Equal(t, "visa", card.CardType)
}

func TestApplyForCard_Validation(t *testing.T) {
	h := newTestVault(t)

	mods := map[string]func(*CardApplication){
		"short number": func(a *CardApplication) { a.CardNumber = "4242" },
		"bad expiry":   func(a *CardApplication) { a.ExpiryDate = "13/27" },
		"bad cvv":      func(a *CardApplication) { a.CVV = "12" },
		"bad pin":      func(a *CardApplication) { a.CardPin = "12345" },
		"no holder":    func(a *CardApplication) { a.CardHolderName = " " },
	}
	for name, mod := range mods {
		t.Run(name, func(t *testing.T) {
			app := validApplication()
			mod(&app)
			_, err := h.vault.ApplyForCard(context.Background(), "usr_a", app)
			requireCode(t, err, apierror.ErrInvalidInput)
		})
	}
}

func TestApplyForCard_OpenCardExists(t *testing.T) {
	h := newTestVault(t)
	h.ds.On("GetUserByID", mock.Anything, "usr_a").Return(&model.User{UserID: "usr_a"}, nil)
	h.ds.On("HasOpenCard", mock.Anything, "usr_a").Return(true, nil)

	_, err := h.vault.ApplyForCard(context.Background(), "usr_a", validApplication())
	requireCode(t, err, apierror.ErrDuplicateActiveCard)
	h.ds.AssertNotCalled(t, "CreateCard", mock.Anything, mock.Anything)
}

func TestAdminCreateCard(t *testing.T) {
	h := newTestVault(t)
	h.ds.On("GetUserByEmail", mock.Anything, "ada@example.com").Return(&model.User{UserID: "usr_a", Email: "ada@example.com"}, nil)
	h.ds.On("HasOpenCard", mock.Anything, "usr_a").Return(false, nil)
	h.ds.On("CreateCard", mock.Anything, mock.AnythingOfType("*model.Card")).Return(nil)

	card, err := h.vault.AdminCreateCard(context.Background(), "adm_1", "ada@example.com", validApplication())
	require.NoError(t, err)
	assert.Equal(t, model.CardApproved, card.Status)
	assert.True(t, card.IsActive)
	assert.Equal(t, "adm_1", card.ApprovedBy)
	require.NotNil(t, card.ApprovedAt)
	assert.Equal(t, model.RoleAdmin, card.CreatedBy)
	assert.Equal(t, []string{"ada@example.com"}, h.sink.recipients())
}

func TestAdminCreateCard_RefusedWithPendingCard(t *testing.T) {
	h := newTestVault(t)
	h.ds.On("GetUserByEmail", mock.Anything, "ada@example.com").Return(&model.User{UserID: "usr_a"}, nil)
	h.ds.On("HasOpenCard", mock.Anything, "usr_a").Return(true, nil)

	_, err := h.vault.AdminCreateCard(context.Background(), "adm_1", "ada@example.com", validApplication())
	requireCode(t, err, apierror.ErrDuplicateActiveCard)
}

func TestApproveAndRejectCard(t *testing.T) {
	h := newTestVault(t)
	h.ds.On("GetUserByID", mock.Anything, "usr_a").Return(&model.User{UserID: "usr_a", Email: "ada@example.com"}, nil)
	approved := &model.Card{CardID: "card_1", UserID: "usr_a", Last4: "4242", Status: model.CardApproved, IsActive: true}
	rejected := &model.Card{CardID: "card_2", UserID: "usr_a", Last4: "1111", Status: model.CardRejected, RejectedReason: "blurry id"}
	h.ds.On("TransitionCard", mock.Anything, "card_1", model.CardPending, model.CardApproved, "adm_1", "").Return(approved, nil)
	h.ds.On("TransitionCard", mock.Anything, "card_2", model.CardPending, model.CardRejected, "adm_1", "blurry id").Return(rejected, nil)

	card, err := h.vault.ApproveCard(context.Background(), "adm_1", "card_1")
	require.NoError(t, err)
	assert.Equal(t, model.CardApproved, card.Status)

	card, err = h.vault.RejectCard(context.Background(), "adm_1", "card_2", "blurry id")
	require.NoError(t, err)
	assert.Equal(t, "blurry id", card.RejectedReason)
	assert.Len(t, h.sink.recipients(), 2)
}

func TestApproveCard_IllegalTransition(t *testing.T) {
	h := newTestVault(t)
	h.ds.On("TransitionCard", mock.Anything, "card_1", model.CardPending, model.CardApproved, "adm_1", "").
		Return(nil, apierror.NewAPIError(apierror.ErrConflict, "card is not pending", nil))

	_, err := h.vault.ApproveCard(context.Background(), "adm_1", "card_1")
	requireCode(t, err, apierror.ErrConflict)
	assert.Empty(t, h.sink.recipients())
}

func TestCardListings(t *testing.T) {
	h := newTestVault(t)
	h.ds.On("GetCardsByUser", mock.Anything, "usr_a").Return([]model.Card{{CardID: "card_1"}}, nil)
	h.ds.On("GetCardsByStatus", mock.Anything, model.CardPending).Return([]model.Card{{CardID: "card_2"}}, nil)
	h.ds.On("GetAllCards", mock.Anything, 100, 0).Return([]model.Card{}, nil)
	h.ds.On("SetCardActive", mock.Anything, "card_1", false).Return(&model.Card{CardID: "card_1"}, nil)

	mine, err := h.vault.GetMyCards(context.Background(), "usr_a")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	pending, err := h.vault.GetPendingCards(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "card_2", pending[0].CardID)

	_, err = h.vault.GetAllCards(context.Background(), 500, -1)
	require.NoError(t, err)

	_, err = h.vault.DeactivateCard(context.Background(), "card_1")
	require.NoError(t, err)
}

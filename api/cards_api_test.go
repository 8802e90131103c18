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

package api

import (
	"net/http"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	model2 "github.com/blnkfinance/vault/api/model"
	"github.com/blnkfinance/vault/internal/apierror"
	"github.com/blnkfinance/vault/model"
)

func cardApplication() model2.CardApplication {
	return model2.CardApplication{
		CardHolderName: gofakeit.Name(),
		CardType:       "visa",
		CardNumber:     "4242-4242-4242-4242",
		ExpiryDate:     "09/29",
		CVV:            "123",
		CardPin:        "5678",
	}
}

func TestApplyForCard(t *testing.T) {
	h := setupRouter(t)
	h.ds.On("GetUserByID", mock.Anything, "usr_a").Return(&model.User{UserID: "usr_a"}, nil)
	h.ds.On("HasOpenCard", mock.Anything, "usr_a").Return(false, nil)
	h.ds.On("CreateCard", mock.Anything, mock.AnythingOfType("*model.Card")).Return(nil)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  jsonPayload(t, cardApplication()),
		Router:   h.router,
		Response: &response,
		Method:   http.MethodPost,
		Route:    "/cards",
		Auth:     h.token(t, "usr_a", model.RoleUser),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "pending", response["status"])
	assert.Equal(t, "4242", response["last4"])
	assert.NotContains(t, resp.Body.String(), "4242424242424242")
	assert.NotContains(t, resp.Body.String(), "cvv")
}

func TestApplyForCard_Duplicate(t *testing.T) {
	h := setupRouter(t)
	h.ds.On("GetUserByID", mock.Anything, "usr_a").Return(&model.User{UserID: "usr_a"}, nil)
	h.ds.On("HasOpenCard", mock.Anything, "usr_a").Return(true, nil)

	var response errorBody
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  jsonPayload(t, cardApplication()),
		Router:   h.router,
		Response: &response,
		Method:   http.MethodPost,
		Route:    "/cards",
		Auth:     h.token(t, "usr_a", model.RoleUser),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, string(apierror.ErrDuplicateActiveCard), response.Code)
}

func TestApplyForCard_MissingCVV(t *testing.T) {
	h := setupRouter(t)
	application := cardApplication()
	application.CVV = ""

	resp, err := SetUpTestRequest(TestRequest{
		Payload: jsonPayload(t, application),
		Router:  h.router,
		Method:  http.MethodPost,
		Route:   "/cards",
		Auth:    h.token(t, "usr_a", model.RoleUser),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAdminCreateCard(t *testing.T) {
	h := setupRouter(t)
	h.ds.On("GetUserByEmail", mock.Anything, "ada@example.com").Return(&model.User{UserID: "usr_a", Email: "ada@example.com"}, nil)
	h.ds.On("HasOpenCard", mock.Anything, "usr_a").Return(false, nil)
	h.ds.On("CreateCard", mock.Anything, mock.AnythingOfType("*model.Card")).Return(nil)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  jsonPayload(t, model2.AdminCreateCard{Email: "ada@example.com", CardApplication: cardApplication()}),
		Router:   h.router,
		Response: &response,
		Method:   http.MethodPost,
		Route:    "/admin/cards",
		Auth:     h.token(t, "adm_1", model.RoleAdmin),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "approved", response["status"])
	assert.Equal(t, true, response["is_active"])
	assert.Equal(t, "adm_1", response["approved_by"])
}

func TestCardReview(t *testing.T) {
	h := setupRouter(t)
	h.ds.On("GetUserByID", mock.Anything, "usr_a").Return(&model.User{UserID: "usr_a", Email: "ada@example.com"}, nil)
	h.ds.On("TransitionCard", mock.Anything, "card_1", model.CardPending, model.CardApproved, "adm_1", "").
		Return(&model.Card{CardID: "card_1", UserID: "usr_a", Status: model.CardApproved, IsActive: true}, nil)
	h.ds.On("TransitionCard", mock.Anything, "card_2", model.CardPending, model.CardRejected, "adm_1", "id mismatch").
		Return(&model.Card{CardID: "card_2", UserID: "usr_a", Status: model.CardRejected, RejectedReason: "id mismatch"}, nil)
	h.ds.On("TransitionCard", mock.Anything, "card_3", model.CardPending, model.CardApproved, "adm_1", "").
		Return(nil, apierror.NewAPIError(apierror.ErrConflict, "card is not pending", nil))
	token := h.token(t, "adm_1", model.RoleAdmin)

	resp, err := SetUpTestRequest(TestRequest{Router: h.router, Method: http.MethodPut, Route: "/admin/cards/card_1/approve", Auth: token})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp, err = SetUpTestRequest(TestRequest{
		Payload: jsonPayload(t, model2.RejectCard{Reason: "id mismatch"}),
		Router:  h.router, Method: http.MethodPut, Route: "/admin/cards/card_2/reject", Auth: token,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp, err = SetUpTestRequest(TestRequest{
		Payload: jsonPayload(t, model2.RejectCard{}),
		Router:  h.router, Method: http.MethodPut, Route: "/admin/cards/card_2/reject", Auth: token,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp, err = SetUpTestRequest(TestRequest{Router: h.router, Method: http.MethodPut, Route: "/admin/cards/card_3/approve", Auth: token})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestCardListingsAndToggle(t *testing.T) {
	h := setupRouter(t)
	h.ds.On("GetCardsByUser", mock.Anything, "usr_a").Return([]model.Card{{CardID: "card_1"}}, nil)
	h.ds.On("GetCardsByStatus", mock.Anything, model.CardPending).Return([]model.Card{{CardID: "card_2"}, {CardID: "card_3"}}, nil)
	h.ds.On("GetAllCards", mock.Anything, 10, 20).Return([]model.Card{}, nil)
	h.ds.On("SetCardActive", mock.Anything, "card_1", true).Return(&model.Card{CardID: "card_1", IsActive: true}, nil)
	adminToken := h.token(t, "adm_1", model.RoleAdmin)

	var mine []model.Card
	resp, err := SetUpTestRequest(TestRequest{Router: h.router, Response: &mine, Method: http.MethodGet, Route: "/cards", Auth: h.token(t, "usr_a", model.RoleUser)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, mine, 1)

	var pending []model.Card
	resp, err = SetUpTestRequest(TestRequest{Router: h.router, Response: &pending, Method: http.MethodGet, Route: "/admin/cards/pending", Auth: adminToken})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, pending, 2)

	resp, err = SetUpTestRequest(TestRequest{Router: h.router, Method: http.MethodGet, Route: "/admin/cards?limit=10&offset=20", Auth: adminToken})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp, err = SetUpTestRequest(TestRequest{Router: h.router, Method: http.MethodGet, Route: "/admin/cards?limit=ten", Auth: adminToken})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp, err = SetUpTestRequest(TestRequest{Router: h.router, Method: http.MethodPut, Route: "/admin/cards/card_1/reactivate", Auth: adminToken})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	h.ds.AssertExpectations(t)
}

func TestCardFundAndWithdraw(t *testing.T) {
	h := setupRouter(t)
	card := &model.Card{CardID: "card_1", UserID: "usr_a", Last4: "4242", Status: model.CardApproved, IsActive: true}
	h.ds.On("GetUserByID", mock.Anything, "usr_a").Return(&model.User{UserID: "usr_a", IsActive: true,
		Balances: model.Balances{Current: decimal.NewFromInt(100)}}, nil)
	h.ds.On("GetCardByID", mock.Anything, "card_1").Return(card, nil)
	h.ds.On("ExecutePosting", mock.Anything, mock.AnythingOfType("*model.Posting")).Return(nil).Once()
	token := h.token(t, "usr_a", model.RoleUser)

	var receipt model.Receipt
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  jsonPayload(t, model2.CardFunding{CardID: "card_1", Amount: "40"}),
		Router:   h.router,
		Response: &receipt,
		Method:   http.MethodPost,
		Route:    "/cards/fund",
		Auth:     token,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, model.OpCardFunding, receipt.Operation)

	var response errorBody
	resp, err = SetUpTestRequest(TestRequest{
		Payload:  jsonPayload(t, model2.CardFunding{CardID: "card_1", Amount: "10"}),
		Router:   h.router,
		Response: &response,
		Method:   http.MethodPost,
		Route:    "/cards/withdraw",
		Auth:     token,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, string(apierror.ErrInsufficientBalance), response.Code)
	assert.Equal(t, "0", response.Details["available"])
	h.ds.AssertNumberOfCalls(t, "ExecutePosting", 1)
}

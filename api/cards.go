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
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/blnkfinance/vault/api/model"
	"github.com/blnkfinance/vault/model"
)

func (a Api) ApplyForCard(c *gin.Context) {
	var application model2.CardApplication
	if !bind(c, &application, application.ValidateCardApplication) {
		return
	}

	card, err := a.vault.ApplyForCard(c.Request.Context(), principal(c).OwnerID, application.ToCardApplication())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, card)
}

func (a Api) GetMyCards(c *gin.Context) {
	cards, err := a.vault.GetMyCards(c.Request.Context(), principal(c).OwnerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cards)
}

func (a Api) FundCard(c *gin.Context) {
	var funding model2.CardFunding
	if !bind(c, &funding, funding.ValidateCardFunding) {
		return
	}

	req, err := funding.ToFundCardRequest()
	if err != nil {
		rejectRequest(c, err)
		return
	}
	req.IdempotencyKey = idempotencyKey(c, req.IdempotencyKey)
	receipt, err := a.vault.FundCard(c.Request.Context(), principal(c).OwnerID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, receipt)
}

func (a Api) CardToAccount(c *gin.Context) {
	var funding model2.CardFunding
	if !bind(c, &funding, funding.ValidateCardFunding) {
		return
	}

	req, err := funding.ToFundCardRequest()
	if err != nil {
		rejectRequest(c, err)
		return
	}
	req.IdempotencyKey = idempotencyKey(c, req.IdempotencyKey)
	receipt, err := a.vault.CardToAccount(c.Request.Context(), principal(c).OwnerID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, receipt)
}

func (a Api) AdminCreateCard(c *gin.Context) {
	var newCard model2.AdminCreateCard
	if !bind(c, &newCard, newCard.ValidateAdminCreateCard) {
		return
	}

	card, err := a.vault.AdminCreateCard(c.Request.Context(), principal(c).OwnerID, newCard.Email, newCard.ToCardApplication())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, card)
}

func (a Api) GetAllCards(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}

	cards, err := a.vault.GetAllCards(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cards)
}

func (a Api) GetPendingCards(c *gin.Context) {
	cards, err := a.vault.GetPendingCards(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cards)
}

func (a Api) ApproveCard(c *gin.Context) {
	card, err := a.vault.ApproveCard(c.Request.Context(), principal(c).OwnerID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, card)
}

func (a Api) RejectCard(c *gin.Context) {
	var rejection model2.RejectCard
	if !bind(c, &rejection, rejection.ValidateRejectCard) {
		return
	}

	card, err := a.vault.RejectCard(c.Request.Context(), principal(c).OwnerID, c.Param("id"), rejection.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, card)
}

func (a Api) DeactivateCard(c *gin.Context) {
	a.toggleCard(c, a.vault.DeactivateCard)
}

func (a Api) ReactivateCard(c *gin.Context) {
	a.toggleCard(c, a.vault.ReactivateCard)
}

func (a Api) toggleCard(c *gin.Context, toggle func(context.Context, string) (*model.Card, error)) {
	card, err := toggle(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, card)
}

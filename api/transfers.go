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

	"github.com/gin-gonic/gin"

	model2 "github.com/blnkfinance/vault/api/model"
)

func (a Api) Transfer(c *gin.Context) {
	var newTransfer model2.Transfer
	if !bind(c, &newTransfer, newTransfer.ValidateTransfer) {
		return
	}

	req, err := newTransfer.ToTransferRequest()
	if err != nil {
		rejectRequest(c, err)
		return
	}
	req.IdempotencyKey = idempotencyKey(c, req.IdempotencyKey)
	receipt, err := a.vault.Transfer(c.Request.Context(), principal(c).OwnerID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, receipt)
}

func (a Api) AdminTransfer(c *gin.Context) {
	var newTransfer model2.AdminTransfer
	if !bind(c, &newTransfer, newTransfer.ValidateAdminTransfer) {
		return
	}

	req, err := newTransfer.ToAdminTransferRequest()
	if err != nil {
		rejectRequest(c, err)
		return
	}
	req.IdempotencyKey = idempotencyKey(c, req.IdempotencyKey)
	receipt, err := a.vault.AdminTransfer(c.Request.Context(), principal(c).OwnerID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, receipt)
}

func (a Api) FundUser(c *gin.Context) {
	var funding model2.FundUser
	if !bind(c, &funding, funding.ValidateFundUser) {
		return
	}

	req, err := funding.ToFundUserRequest()
	if err != nil {
		rejectRequest(c, err)
		return
	}
	req.IdempotencyKey = idempotencyKey(c, req.IdempotencyKey)
	receipt, err := a.vault.FundUser(c.Request.Context(), principal(c).OwnerID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, receipt)
}

func (a Api) FundAdminWallet(c *gin.Context) {
	var funding model2.FundWallet
	if !bind(c, &funding, nil) {
		return
	}

	amount, err := funding.Amount.Decimal()
	if err != nil {
		rejectRequest(c, err)
		return
	}
	key := idempotencyKey(c, funding.IdempotencyKey)
	receipt, err := a.vault.FundAdminWallet(c.Request.Context(), principal(c).OwnerID, c.Param("id"), amount, key)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, receipt)
}

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

func (a Api) CreatePin(c *gin.Context) {
	var req model2.CreatePin
	if !bind(c, &req, req.ValidateCreatePin) {
		return
	}

	if err := a.vault.CreatePin(c.Request.Context(), principal(c).OwnerID, req.Pin); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Transaction PIN created"})
}

func (a Api) GetPinStatus(c *gin.Context) {
	status, err := a.vault.PinStatus(c.Request.Context(), principal(c).OwnerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// ForgotPin answers the same way whether or not the email is registered.
func (a Api) ForgotPin(c *gin.Context) {
	var req model2.ForgotPin
	if !bind(c, &req, req.ValidateForgotPin) {
		return
	}

	if err := a.vault.ForgotPin(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "If the email is registered, a reset token has been sent"})
}

func (a Api) ResetPin(c *gin.Context) {
	var req model2.ResetPin
	if !bind(c, &req, req.ValidateResetPin) {
		return
	}

	if err := a.vault.ResetPin(c.Request.Context(), req.Token, req.NewPin); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Transaction PIN reset"})
}

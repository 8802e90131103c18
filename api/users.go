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

func (a Api) RegisterUser(c *gin.Context) {
	var newUser model2.RegisterUser
	if !bind(c, &newUser, newUser.ValidateRegisterUser) {
		return
	}

	user, err := a.vault.RegisterUser(c.Request.Context(), newUser.ToRegistration())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (a Api) LoginUser(c *gin.Context) {
	var login model2.Login
	if !bind(c, &login, login.ValidateLogin) {
		return
	}

	session, err := a.vault.LoginUser(c.Request.Context(), login.Email, login.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (a Api) LoginAdmin(c *gin.Context) {
	var login model2.Login
	if !bind(c, &login, login.ValidateLogin) {
		return
	}

	session, err := a.vault.LoginAdmin(c.Request.Context(), login.Email, login.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (a Api) RegisterAdmin(c *gin.Context) {
	var newAdmin model2.RegisterAdmin
	if !bind(c, &newAdmin, newAdmin.ValidateRegisterAdmin) {
		return
	}

	admin, err := a.vault.RegisterAdmin(c.Request.Context(), principal(c).OwnerID, newAdmin.ToRegistration())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, admin)
}

func (a Api) GetMe(c *gin.Context) {
	user, err := a.vault.GetMe(c.Request.Context(), principal(c).OwnerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetAdminWallet returns the calling admin with its wallet balance and totals.
func (a Api) GetAdminWallet(c *gin.Context) {
	admin, err := a.vault.GetAdmin(c.Request.Context(), principal(c).OwnerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, admin)
}

func (a Api) DeactivateUser(c *gin.Context) {
	id := c.Param("id")
	if err := a.vault.DeactivateUser(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deactivated", "user_id": id})
}

func (a Api) ReactivateUser(c *gin.Context) {
	id := c.Param("id")
	if err := a.vault.ReactivateUser(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User reactivated", "user_id": id})
}

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
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/blnkfinance/vault/api/model"
	"github.com/blnkfinance/vault/internal/apierror"
	"github.com/blnkfinance/vault/internal/presence"
	"github.com/blnkfinance/vault/model"
)

func (a Api) ConnectChat(c *gin.Context) {
	var req model2.ConnectChat
	if !bind(c, &req, req.ValidateConnectChat) {
		return
	}

	id := req.ConnectionID
	if id == "" {
		id = model.GenerateUUIDWithSuffix("chat")
	}
	session, err := a.vault.Presence().Connect(c.Request.Context(), id, req.VisitorID, req.DisplayName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

func (a Api) ChatHeartbeat(c *gin.Context) {
	session, err := a.vault.Presence().Heartbeat(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, chatError(err))
		return
	}

	c.JSON(http.StatusOK, session)
}

func (a Api) DisconnectChat(c *gin.Context) {
	if err := a.vault.Presence().Disconnect(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a Api) ListChatSessions(c *gin.Context) {
	sessions, err := a.vault.Presence().List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(sessions), "sessions": sessions})
}

func chatError(err error) error {
	if errors.Is(err, presence.ErrSessionNotFound) {
		return apierror.NewAPIError(apierror.ErrNotFound, "Chat session not found", nil)
	}
	return err
}

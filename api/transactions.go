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
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	model2 "github.com/blnkfinance/vault/api/model"
)

// GetTransactions lists the caller's own entries. For admins these are the
// wallet movements.
func (a Api) GetTransactions(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}

	txns, err := a.vault.TransactionHistory(c.Request.Context(), principal(c).OwnerID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, txns)
}

func (a Api) ExportStatement(c *gin.Context) {
	startRaw, endRaw := c.Query("start"), c.Query("end")
	if startRaw == "" || endRaw == "" {
		invalidInput(c, errors.New("start and end are required. use YYYY-MM-DD"))
		return
	}
	start, err := time.Parse(model2.DateLayout, startRaw)
	if err != nil {
		invalidInput(c, errors.New("start must be formatted as YYYY-MM-DD"))
		return
	}
	end, err := time.Parse(model2.DateLayout, endRaw)
	if err != nil {
		invalidInput(c, errors.New("end must be formatted as YYYY-MM-DD"))
		return
	}

	csv, err := a.vault.ExportStatement(c.Request.Context(), principal(c).OwnerID, start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=statement_%s_%s.csv", startRaw, endRaw))
	c.Data(http.StatusOK, "text/csv", csv)
}

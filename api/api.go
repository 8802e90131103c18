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
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/blnkfinance/vault"
	"github.com/blnkfinance/vault/api/middleware"
	"github.com/blnkfinance/vault/config"
	"github.com/blnkfinance/vault/internal/apierror"
	"github.com/blnkfinance/vault/internal/auth"
	"github.com/blnkfinance/vault/model"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type Api struct {
	vault  *vault.Vault
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	gate := middleware.NewAuthMiddleware(a.vault)

	router.POST("/users/register", a.RegisterUser)
	router.POST("/users/login", a.LoginUser)
	router.POST("/admins/login", a.LoginAdmin)
	router.POST("/pin/forgot", a.ForgotPin)
	router.POST("/pin/reset", a.ResetPin)

	router.POST("/chat/sessions", a.ConnectChat)
	router.PUT("/chat/sessions/:id/heartbeat", a.ChatHeartbeat)
	router.DELETE("/chat/sessions/:id", a.DisconnectChat)

	user := router.Group("", gate.Authenticate(), middleware.RequireRole(model.RoleUser))
	user.GET("/me", a.GetMe)
	user.POST("/pin", a.CreatePin)
	user.GET("/pin/status", a.GetPinStatus)
	user.POST("/transfers", a.Transfer)
	user.GET("/transactions", a.GetTransactions)
	user.GET("/transactions/statement", a.ExportStatement)
	user.POST("/cards", a.ApplyForCard)
	user.GET("/cards", a.GetMyCards)
	user.POST("/cards/fund", a.FundCard)
	user.POST("/cards/withdraw", a.CardToAccount)

	admin := router.Group("/admin", gate.Authenticate(), middleware.RequireRole(model.RoleAdmin))
	admin.POST("/fund-user", a.FundUser)
	admin.POST("/transfer", a.AdminTransfer)
	admin.GET("/transactions", a.GetTransactions)
	admin.GET("/wallet", a.GetAdminWallet)
	admin.POST("/cards", a.AdminCreateCard)
	admin.GET("/cards", a.GetAllCards)
	admin.GET("/cards/pending", a.GetPendingCards)
	admin.PUT("/cards/:id/approve", a.ApproveCard)
	admin.PUT("/cards/:id/reject", a.RejectCard)
	admin.PUT("/cards/:id/deactivate", a.DeactivateCard)
	admin.PUT("/cards/:id/reactivate", a.ReactivateCard)
	admin.PUT("/users/:id/deactivate", a.DeactivateUser)
	admin.PUT("/users/:id/reactivate", a.ReactivateUser)
	admin.GET("/chat/sessions", a.ListChatSessions)

	superadmin := router.Group("/admin", gate.Authenticate(), middleware.RequireRole(model.RoleSuperadmin))
	superadmin.POST("/register", a.RegisterAdmin)
	superadmin.POST("/wallets/:id/fund", a.FundAdminWallet)

	return a.router
}

func NewAPI(v *vault.Vault) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimitMiddleware(conf))

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{vault: v, router: r}
}

// respondError writes the JSON error body. Unexpected errors are logged and
// reported with a generic message so internals never reach the client.
func respondError(c *gin.Context, err error) {
	status := apierror.MapErrorToHTTPStatus(err)
	var apiErr apierror.APIError
	if !errors.As(err, &apiErr) || status == http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An unexpected error occurred", "code": apierror.ErrInternalServer})
		return
	}

	body := gin.H{"error": apiErr.Message, "code": apiErr.Code}
	if apiErr.Details != nil {
		if _, wrapped := apiErr.Details.(error); !wrapped {
			body["details"] = apiErr.Details
		}
	}
	c.JSON(status, body)
}

func invalidInput(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": apierror.ErrInvalidInput})
}

// rejectRequest reports a failed DTO conversion. Ledger errors such as
// INVALID_AMOUNT keep their code; anything else is bad input.
func rejectRequest(c *gin.Context, err error) {
	var apiErr apierror.APIError
	if errors.As(err, &apiErr) {
		respondError(c, err)
		return
	}
	invalidInput(c, err)
}

// bind decodes the JSON body into dst and runs validate on it.
func bind(c *gin.Context, dst interface{}, validate func() error) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		invalidInput(c, err)
		return false
	}
	if validate != nil {
		if err := validate(); err != nil {
			invalidInput(c, err)
			return false
		}
	}
	return true
}

func principal(c *gin.Context) auth.Principal {
	p, _ := middleware.PrincipalFrom(c)
	return p
}

// idempotencyKey prefers the Idempotency-Key header over the body field.
func idempotencyKey(c *gin.Context, fromBody string) string {
	if key := c.GetHeader(IdempotencyKeyHeader); key != "" {
		return key
	}
	return fromBody
}

// pagination reads limit and offset; the ledger applies the defaults and caps.
func pagination(c *gin.Context) (int, int, bool) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		invalidInput(c, errors.New("limit must be a number"))
		return 0, 0, false
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		invalidInput(c, errors.New("offset must be a number"))
		return 0, 0, false
	}
	return limit, offset, true
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

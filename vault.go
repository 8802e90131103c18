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
	"embed"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blnkfinance/vault/config"
	"github.com/blnkfinance/vault/database"
	"github.com/blnkfinance/vault/internal/auth"
	"github.com/blnkfinance/vault/internal/cache"
	"github.com/blnkfinance/vault/internal/notification"
	"github.com/blnkfinance/vault/internal/presence"
	"github.com/blnkfinance/vault/internal/tokenization"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

// StatementArchiver keeps a copy of exported statements.
type StatementArchiver interface {
	Put(ctx context.Context, key string, body []byte) (string, error)
}

// Vault is the ledger core. Every funds movement, card and PIN operation
// goes through it.
type Vault struct {
	datasource database.IDataSource
	redis      redis.UniversalClient
	cache      cache.Cache
	notifier   notification.Sink
	archive    StatementArchiver
	presence   *presence.Registry
	tokens     *auth.TokenIssuer
	tokenizer  *tokenization.Tokenizer
	conf       *config.Configuration
	now        func() time.Time
}

type Option func(*Vault)

// WithNotifier replaces the default log-only notification sink.
func WithNotifier(sink notification.Sink) Option {
	return func(v *Vault) { v.notifier = sink }
}

func WithArchive(a StatementArchiver) Option {
	return func(v *Vault) { v.archive = a }
}

func WithClock(now func() time.Time) Option {
	return func(v *Vault) { v.now = now }
}

// NewVault builds the core from the loaded configuration. The redis client
// backs idempotency, the receipt cache and chat presence.
func NewVault(db database.IDataSource, redisClient redis.UniversalClient, opts ...Option) (*Vault, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	tokenizer, err := tokenization.NewTokenizer(tokenization.DeriveKey(conf.Auth.CardKey))
	if err != nil {
		return nil, err
	}

	v := &Vault{
		datasource: db,
		redis:      redisClient,
		cache:      cache.NewCache(redisClient),
		notifier:   notification.LogSink{},
		presence:   presence.NewRegistry(redisClient, presence.DefaultSessionTTL),
		tokens:     auth.NewTokenIssuer(conf.Auth.JWTSecret, conf.Auth.TokenTTL, conf.Auth.Issuer),
		tokenizer:  tokenizer,
		conf:       conf,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Presence exposes the chat session registry.
func (v *Vault) Presence() *presence.Registry {
	return v.presence
}

// VerifyToken resolves a bearer token into the caller's identity.
func (v *Vault) VerifyToken(raw string) (auth.Principal, error) {
	return v.tokens.Verify(raw)
}

func (v *Vault) notify(ctx context.Context, recipient, subject, body string) {
	if v.notifier == nil || recipient == "" {
		return
	}
	v.notifier.Notify(ctx, notification.Message{Recipient: recipient, Subject: subject, Body: body})
}

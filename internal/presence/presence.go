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

package presence

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("chat session not found")

const (
	indexKey          = "presence:sessions"
	sessionPrefix     = "presence:session:"
	DefaultSessionTTL = 2 * time.Minute
)

// Session is one connected chat visitor.
type Session struct {
	ConnectionID string    `json:"connection_id"`
	VisitorID    string    `json:"visitor_id"`
	DisplayName  string    `json:"display_name"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastSeen     time.Time `json:"last_seen"`
}

// Registry tracks chat sessions in Redis. Each session is its own key with a
// TTL, so a client that stops sending heartbeats drops out on its own.
type Registry struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

func NewRegistry(client redis.UniversalClient, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Registry{client: client, ttl: ttl, now: time.Now}
}

func sessionKey(id string) string {
	return sessionPrefix + id
}

func (r *Registry) save(ctx context.Context, s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(s.ConnectionID), raw, r.ttl)
		pipe.SAdd(ctx, indexKey, s.ConnectionID)
		return nil
	})
	return err
}

func (r *Registry) load(ctx context.Context, id string) (Session, error) {
	raw, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	err = json.Unmarshal(raw, &s)
	return s, err
}

func (r *Registry) Connect(ctx context.Context, connectionID, visitorID, displayName string) (Session, error) {
	now := r.now().UTC()
	s := Session{
		ConnectionID: connectionID,
		VisitorID:    visitorID,
		DisplayName:  displayName,
		ConnectedAt:  now,
		LastSeen:     now,
	}
	return s, r.save(ctx, s)
}

// Heartbeat refreshes last_seen and the session TTL.
func (r *Registry) Heartbeat(ctx context.Context, connectionID string) (Session, error) {
	s, err := r.load(ctx, connectionID)
	if err != nil {
		return Session{}, err
	}
	s.LastSeen = r.now().UTC()
	return s, r.save(ctx, s)
}

func (r *Registry) Disconnect(ctx context.Context, connectionID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(connectionID))
		pipe.SRem(ctx, indexKey, connectionID)
		return nil
	})
	return err
}

// List returns live sessions, oldest connection first, and prunes index
// entries whose session key has expired.
func (r *Registry) List(ctx context.Context) ([]Session, error) {
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}

	sessions := []Session{}
	var stale []interface{}
	for _, id := range ids {
		s, err := r.load(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if len(stale) > 0 {
		if err := r.client.SRem(ctx, indexKey, stale...).Err(); err != nil {
			return nil, err
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].ConnectedAt.Equal(sessions[j].ConnectedAt) {
			return sessions[i].ConnectionID < sessions[j].ConnectionID
		}
		return sessions[i].ConnectedAt.Before(sessions[j].ConnectedAt)
	})
	return sessions, nil
}

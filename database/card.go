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

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/vault/internal/apierror"
	"github.com/blnkfinance/vault/model"
)

const cardColumns = `card_id, user_id, card_holder_name, card_type, card_fingerprint, card_number_token, last4, expiry_date, status, is_active,
	created_by, approved_by, approved_at, rejected_reason, card_balance, created_at, updated_at`

const (
	constraintOneOpenCard = "cards_one_open_per_user"
	constraintCardNumber  = "cards_card_fingerprint_key"
)

func scanCard(row rowScanner) (*model.Card, error) {
	c := &model.Card{}
	var approvedBy, reason sql.NullString
	var approvedAt sql.NullTime
	err := row.Scan(
		&c.CardID, &c.UserID, &c.CardHolderName, &c.CardType, &c.CardFingerprint, &c.CardNumberToken, &c.Last4, &c.ExpiryDate, &c.Status, &c.IsActive,
		&c.CreatedBy, &approvedBy, &approvedAt, &reason, &c.CardBalance, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.ApprovedBy = approvedBy.String
	c.RejectedReason = reason.String
	if approvedAt.Valid {
		t := approvedAt.Time
		c.ApprovedAt = &t
	}
	return c, nil
}

func (d Datasource) queryCards(ctx context.Context, query string, args ...interface{}) ([]model.Card, error) {
	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve cards", errors.Wrap(err, "query cards"))
	}
	defer rows.Close()

	cards := []model.Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan card", err)
		}
		cards = append(cards, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over cards", err)
	}
	return cards, nil
}

// CreateCard inserts a card. The partial unique index on open cards turns a
// concurrent second application into DuplicateActiveCard.
func (d Datasource) CreateCard(ctx context.Context, c *model.Card) error {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Saving card to db")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO vault.cards (card_id, user_id, card_holder_name, card_type, card_fingerprint, card_number_token, last4, expiry_date, status,
			is_active, created_by, approved_by, approved_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13, $14, $14)
	`, c.CardID, c.UserID, c.CardHolderName, c.CardType, c.CardFingerprint, c.CardNumberToken, c.Last4, c.ExpiryDate, c.Status, c.IsActive,
		c.CreatedBy, c.ApprovedBy, c.ApprovedAt, c.CreatedAt)
	if err != nil {
		name, constraint, ok := pqCode(err)
		if ok && name == "unique_violation" {
			switch constraint {
			case constraintOneOpenCard:
				return apierror.NewAPIError(apierror.ErrDuplicateActiveCard, "user already has an open card", err)
			case constraintCardNumber:
				return apierror.NewAPIError(apierror.ErrConflict, "Card number already exists", err)
			}
			return apierror.NewAPIError(apierror.ErrConflict, "card already exists", err)
		}
		if ok && name == "foreign_key_violation" {
			return apierror.NewAPIError(apierror.ErrNotFound, "User not found", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create card", errors.Wrap(err, "insert card"))
	}
	return nil
}

func (d Datasource) GetCardByID(ctx context.Context, id string) (*model.Card, error) {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Fetching card by id")
	defer span.End()

	c, err := scanCard(d.Conn.QueryRowContext(ctx, "SELECT "+cardColumns+" FROM vault.cards WHERE card_id = $1", id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Card not found", nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve card", errors.Wrap(err, "select card"))
	}
	return c, nil
}

func (d Datasource) GetCardsByUser(ctx context.Context, userID string) ([]model.Card, error) {
	return d.queryCards(ctx, "SELECT "+cardColumns+" FROM vault.cards WHERE user_id = $1 ORDER BY created_at DESC", userID)
}

func (d Datasource) GetCardsByStatus(ctx context.Context, status model.CardStatus) ([]model.Card, error) {
	return d.queryCards(ctx, "SELECT "+cardColumns+" FROM vault.cards WHERE status = $1 ORDER BY created_at DESC", status)
}

func (d Datasource) GetAllCards(ctx context.Context, limit, offset int) ([]model.Card, error) {
	return d.queryCards(ctx, "SELECT "+cardColumns+" FROM vault.cards ORDER BY created_at DESC LIMIT $1 OFFSET $2", limit, offset)
}

func (d Datasource) HasOpenCard(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM vault.cards WHERE user_id = $1 AND status <> 'rejected')
	`, userID).Scan(&exists)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check existing cards", errors.Wrap(err, "has open card"))
	}
	return exists, nil
}

// TransitionCard moves a card from one status to another only if it is still in from.
func (d Datasource) TransitionCard(ctx context.Context, id string, from, to model.CardStatus, actorID, reason string) (*model.Card, error) {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Transitioning card status")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `
		UPDATE vault.cards
		SET status = $3,
			is_active = ($3 = 'approved'),
			approved_by = CASE WHEN $3 = 'approved' THEN $4 ELSE approved_by END,
			approved_at = CASE WHEN $3 = 'approved' THEN NOW() ELSE approved_at END,
			rejected_reason = CASE WHEN $3 = 'rejected' THEN NULLIF($5, '') ELSE rejected_reason END,
			updated_at = NOW()
		WHERE card_id = $1 AND status = $2
		RETURNING `+cardColumns, id, from, to, actorID, reason)
	c, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, d.explainCardMiss(ctx, id, fmt.Sprintf("card is not %s", from))
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update card", errors.Wrap(err, "transition card"))
	}
	return c, nil
}

// SetCardActive toggles is_active on an approved card.
func (d Datasource) SetCardActive(ctx context.Context, id string, active bool) (*model.Card, error) {
	ctx, span := otel.Tracer("vault.database").Start(ctx, "Toggling card activity")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `
		UPDATE vault.cards SET is_active = $2, updated_at = NOW()
		WHERE card_id = $1 AND status = 'approved'
		RETURNING `+cardColumns, id, active)
	c, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, d.explainCardMiss(ctx, id, "only approved cards can be activated or deactivated")
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update card", errors.Wrap(err, "set card active"))
	}
	return c, nil
}

// explainCardMiss tells a missing card apart from one in the wrong state.
func (d Datasource) explainCardMiss(ctx context.Context, id, conflict string) error {
	var exists bool
	if err := d.Conn.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM vault.cards WHERE card_id = $1)`, id).Scan(&exists); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve card", err)
	}
	if !exists {
		return apierror.NewAPIError(apierror.ErrNotFound, "Card not found", nil)
	}
	return apierror.NewAPIError(apierror.ErrConflict, conflict, nil)
}

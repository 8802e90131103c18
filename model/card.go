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

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CardStatus string

const (
	CardPending  CardStatus = "pending"
	CardApproved CardStatus = "approved"
	CardRejected CardStatus = "rejected"
)

type Card struct {
	CardID          string          `json:"card_id"`
	UserID          string          `json:"user_id"`
	CardHolderName  string          `json:"card_holder_name"`
	CardType        string          `json:"card_type"`
	CardFingerprint string          `json:"-"`
	CardNumberToken string          `json:"-"`
	Last4           string          `json:"last4"`
	ExpiryDate      string          `json:"expiry_date"`
	Status          CardStatus      `json:"status"`
	IsActive        bool            `json:"is_active"`
	CreatedBy       Role            `json:"created_by"`
	ApprovedBy      string          `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	RejectedReason  string          `json:"rejected_reason,omitempty"`
	CardBalance     decimal.Decimal `json:"card_balance"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// MaskedNumber renders the card as ****1234 for descriptions and emails.
func (c *Card) MaskedNumber() string {
	return "****" + c.Last4
}

// CanTransition reports whether the lifecycle allows moving to next.
func (c *Card) CanTransition(next CardStatus) bool {
	return c.Status == CardPending && (next == CardApproved || next == CardRejected)
}

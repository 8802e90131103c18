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

// Holder is the kind of record a leg mutates.
type Holder string

const (
	HolderUser  Holder = "user"
	HolderAdmin Holder = "admin"
	HolderCard  Holder = "card"
)

type Operation string

const (
	OpPeerTransfer       Operation = "peer_transfer"
	OpAdminFundUser      Operation = "admin_fund_user"
	OpAdminWalletFunding Operation = "admin_wallet_funding"
	OpCardFunding        Operation = "card_funding"
	OpCardToAccount      Operation = "card_to_account"
	OpAdminTransfer      Operation = "admin_transfer"
)

// Leg is a single balance movement inside a posting. Entry, when set, is the
// log line written for this side; the store fills BalanceAfter on both.
type Leg struct {
	Holder       Holder
	OwnerID      string
	Bucket       Bucket
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Entry        *Transaction
}

// Posting groups every leg of one ledger operation so the store can apply
// them in a single database transaction.
type Posting struct {
	Reference   string
	Operation   Operation
	InitiatorID string
	// RequestHash fingerprints the parameters of an idempotent request.
	RequestHash string
	Debits      []*Leg
	Credits     []*Leg
	CreatedAt   time.Time
}

// Entries returns the log lines of all legs, debits first.
func (p *Posting) Entries() []*Transaction {
	var entries []*Transaction
	for _, legs := range [][]*Leg{p.Debits, p.Credits} {
		for _, l := range legs {
			if l.Entry != nil {
				entries = append(entries, l.Entry)
			}
		}
	}
	return entries
}

type LegResult struct {
	Holder       Holder          `json:"holder"`
	OwnerID      string          `json:"owner_id"`
	Bucket       Bucket          `json:"bucket"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}

// Receipt is returned to callers and persisted with the posting so that a
// retried request with the same idempotency key gets the same answer.
type Receipt struct {
	Reference      string     `json:"reference"`
	Operation      Operation  `json:"operation"`
	RequestHash    string     `json:"request_hash,omitempty"`
	TransactionIDs []string   `json:"transaction_ids"`
	Source         *LegResult `json:"source,omitempty"`
	Destination    *LegResult `json:"destination,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (p *Posting) Receipt() Receipt {
	r := Receipt{
		Reference:      p.Reference,
		Operation:      p.Operation,
		RequestHash:    p.RequestHash,
		TransactionIDs: []string{},
		CreatedAt:      p.CreatedAt,
	}
	for _, e := range p.Entries() {
		r.TransactionIDs = append(r.TransactionIDs, e.TransactionID)
	}
	if len(p.Debits) > 0 {
		r.Source = legResult(p.Debits[0])
	}
	if len(p.Credits) > 0 {
		r.Destination = legResult(p.Credits[0])
	}
	return r
}

func legResult(l *Leg) *LegResult {
	return &LegResult{Holder: l.Holder, OwnerID: l.OwnerID, Bucket: l.Bucket, BalanceAfter: l.BalanceAfter}
}

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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one immutable line in an owner's log.
type Transaction struct {
	TransactionID    string          `json:"transaction_id"`
	PostingReference string          `json:"posting_reference"`
	OwnerID          string          `json:"owner_id"`
	OwnerKind        Holder          `json:"owner_kind"`
	Type             TransactionType `json:"type"`
	Amount           decimal.Decimal `json:"amount"`
	AccountType      Bucket          `json:"account_type"`
	Description      string          `json:"description"`
	Counterparty     string          `json:"counterparty,omitempty"`
	BalanceAfter     decimal.Decimal `json:"balance_after"`
	Hash             string          `json:"hash"`
	CreatedAt        time.Time       `json:"created_at"`
}

// HashTxn generates a SHA-256 hash over the fields that define the entry.
func (t *Transaction) HashTxn() string {
	data := fmt.Sprintf("%s%s%s%s%s%s%s%d",
		t.TransactionID, t.PostingReference, t.OwnerID, t.Type,
		t.Amount.StringFixed(2), t.AccountType, t.Description, t.CreatedAt.UnixNano())
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// StatementRow is the flat projection written to exported statements.
func (t *Transaction) StatementRow() []string {
	return []string{
		t.CreatedAt.UTC().Format(time.RFC3339),
		t.Description,
		t.Amount.StringFixed(2),
		string(t.Type),
	}
}

var StatementHeader = []string{"Date", "Description", "Amount", "Type"}

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
	"encoding/json"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/blnkfinance/vault"
	"github.com/blnkfinance/vault/internal/apierror"
)

// Amount holds the amount as sent, either a JSON number or a string. It is
// parsed after the body is decoded so that a malformed value is reported as
// INVALID_AMOUNT instead of failing the whole decode. Range and precision
// are checked by the ledger.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		raw = s
	}
	*a = Amount(strings.TrimSpace(raw))
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(a))
}

// Decimal parses the amount. A missing amount parses as zero and is refused
// by the ledger.
func (a Amount) Decimal() (decimal.Decimal, error) {
	if a == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(string(a))
	if err != nil {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrInvalidAmount, "Amount must be a number", nil)
	}
	return d, nil
}

type Transfer struct {
	AccountNumber   string `json:"account_number"`
	Amount          Amount `json:"amount"`
	FromAccountType string `json:"from_account_type"`
	ToAccountType   string `json:"to_account_type"`
	BankName        string `json:"bank_name"`
	Country         string `json:"country"`
	Pin             string `json:"pin"`
	IdempotencyKey  string `json:"idempotency_key"`
}

func (t *Transfer) ValidateTransfer() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.AccountNumber, validation.Required),
		validation.Field(&t.Pin, validation.Required),
	)
}

func (t *Transfer) ToTransferRequest() (vault.TransferRequest, error) {
	amount, err := t.Amount.Decimal()
	if err != nil {
		return vault.TransferRequest{}, err
	}
	return vault.TransferRequest{
		AccountNumber:   t.AccountNumber,
		Amount:          amount,
		FromAccountType: t.FromAccountType,
		ToAccountType:   t.ToAccountType,
		BankName:        t.BankName,
		Country:         t.Country,
		Pin:             t.Pin,
		IdempotencyKey:  t.IdempotencyKey,
	}, nil
}

type AdminTransfer struct {
	SenderEmail         string `json:"sender_email"`
	ReceiverEmail       string `json:"receiver_email"`
	Amount              Amount `json:"amount"`
	FromAccountType     string `json:"from_account_type"`
	ToAccountType       string `json:"to_account_type"`
	SenderDescription   string `json:"sender_description"`
	ReceiverDescription string `json:"receiver_description"`
	Date                string `json:"date"`
	IdempotencyKey      string `json:"idempotency_key"`
}

func (t *AdminTransfer) ValidateAdminTransfer() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.SenderEmail, validation.Required),
		validation.Field(&t.ReceiverEmail, validation.Required),
		validation.Field(&t.Date, validation.By(validateDate)),
	)
}

func (t *AdminTransfer) ToAdminTransferRequest() (vault.AdminTransferRequest, error) {
	amount, err := t.Amount.Decimal()
	if err != nil {
		return vault.AdminTransferRequest{}, err
	}
	date, err := ParseDate(t.Date)
	if err != nil {
		return vault.AdminTransferRequest{}, err
	}
	return vault.AdminTransferRequest{
		SenderEmail:         t.SenderEmail,
		ReceiverEmail:       t.ReceiverEmail,
		Amount:              amount,
		FromAccountType:     t.FromAccountType,
		ToAccountType:       t.ToAccountType,
		SenderDescription:   t.SenderDescription,
		ReceiverDescription: t.ReceiverDescription,
		Date:                date,
		IdempotencyKey:      t.IdempotencyKey,
	}, nil
}

type FundUser struct {
	Email          string `json:"email"`
	Amount         Amount `json:"amount"`
	AccountType    string `json:"account_type"`
	Description    string `json:"description"`
	Date           string `json:"date"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (f *FundUser) ValidateFundUser() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.Email, validation.Required),
		validation.Field(&f.Date, validation.By(validateDate)),
	)
}

func (f *FundUser) ToFundUserRequest() (vault.FundUserRequest, error) {
	amount, err := f.Amount.Decimal()
	if err != nil {
		return vault.FundUserRequest{}, err
	}
	date, err := ParseDate(f.Date)
	if err != nil {
		return vault.FundUserRequest{}, err
	}
	return vault.FundUserRequest{
		Email:          f.Email,
		Amount:         amount,
		AccountType:    f.AccountType,
		Description:    f.Description,
		Date:           date,
		IdempotencyKey: f.IdempotencyKey,
	}, nil
}

type FundWallet struct {
	Amount         Amount `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

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
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/blnkfinance/vault"
)

type CardApplication struct {
	CardHolderName string `json:"card_holder_name"`
	CardType       string `json:"card_type"`
	CardNumber     string `json:"card_number"`
	ExpiryDate     string `json:"expiry_date"`
	CVV            string `json:"cvv"`
	CardPin        string `json:"card_pin"`
}

func (a *CardApplication) ValidateCardApplication() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.CardHolderName, validation.Required),
		validation.Field(&a.CardType, validation.Required),
		validation.Field(&a.CardNumber, validation.Required),
		validation.Field(&a.ExpiryDate, validation.Required),
		validation.Field(&a.CVV, validation.Required),
		validation.Field(&a.CardPin, validation.Required),
	)
}

func (a *CardApplication) ToCardApplication() vault.CardApplication {
	return vault.CardApplication{
		CardHolderName: a.CardHolderName,
		CardType:       a.CardType,
		CardNumber:     a.CardNumber,
		ExpiryDate:     a.ExpiryDate,
		CVV:            a.CVV,
		CardPin:        a.CardPin,
	}
}

// AdminCreateCard issues a card directly to the user with Email.
type AdminCreateCard struct {
	Email string `json:"email"`
	CardApplication
}

func (a *AdminCreateCard) ValidateAdminCreateCard() error {
	if err := validation.ValidateStruct(a, validation.Field(&a.Email, validation.Required)); err != nil {
		return err
	}
	return a.ValidateCardApplication()
}

type CardFunding struct {
	CardID         string `json:"card_id"`
	Amount         Amount `json:"amount"`
	AccountType    string `json:"account_type"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (f *CardFunding) ValidateCardFunding() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.CardID, validation.Required),
	)
}

func (f *CardFunding) ToFundCardRequest() (vault.FundCardRequest, error) {
	amount, err := f.Amount.Decimal()
	if err != nil {
		return vault.FundCardRequest{}, err
	}
	return vault.FundCardRequest{
		CardID:         f.CardID,
		Amount:         amount,
		AccountType:    f.AccountType,
		IdempotencyKey: f.IdempotencyKey,
	}, nil
}

type RejectCard struct {
	Reason string `json:"reason"`
}

func (r *RejectCard) ValidateRejectCard() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Reason, validation.Required, validation.Length(1, 500)),
	)
}

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
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/wacul/ptr"

	"github.com/blnkfinance/vault"
	"github.com/blnkfinance/vault/model"
)

const DateLayout = "2006-01-02"

var errDateFormat = errors.New("please format the date as 'YYYY-MM-DD' or RFC 3339 (e.g., 2024-04-22T15:28:03+00:00)")

// ParseDate accepts a calendar day or a full RFC 3339 timestamp. An empty
// value yields nil so the server clock is used.
func ParseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return ptr.Time(t.UTC()), nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return nil, errDateFormat
	}
	return ptr.Time(t), nil
}

func validateDate(value interface{}) error {
	s, _ := value.(string)
	_, err := ParseDate(s)
	return err
}

type RegisterUser struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *RegisterUser) ValidateRegisterUser() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Fullname, validation.Required),
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (r *RegisterUser) ToRegistration() vault.Registration {
	return vault.Registration{Fullname: r.Fullname, Email: r.Email, Password: r.Password, Role: model.RoleUser}
}

type Login struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (l *Login) ValidateLogin() error {
	return validation.ValidateStruct(l,
		validation.Field(&l.Email, validation.Required),
		validation.Field(&l.Password, validation.Required),
	)
}

type RegisterAdmin struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r *RegisterAdmin) ValidateRegisterAdmin() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Fullname, validation.Required),
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Role, validation.In(string(model.RoleAdmin), string(model.RoleSuperadmin))),
	)
}

func (r *RegisterAdmin) ToRegistration() vault.Registration {
	return vault.Registration{Fullname: r.Fullname, Email: r.Email, Password: r.Password, Role: model.Role(r.Role)}
}

type CreatePin struct {
	Pin string `json:"pin"`
}

func (p *CreatePin) ValidateCreatePin() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Pin, validation.Required),
	)
}

type ForgotPin struct {
	Email string `json:"email"`
}

func (f *ForgotPin) ValidateForgotPin() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.Email, validation.Required),
	)
}

type ResetPin struct {
	Token  string `json:"token"`
	NewPin string `json:"new_pin"`
}

func (r *ResetPin) ValidateResetPin() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPin, validation.Required),
	)
}

type ConnectChat struct {
	ConnectionID string `json:"connection_id"`
	VisitorID    string `json:"visitor_id"`
	DisplayName  string `json:"display_name"`
}

func (c *ConnectChat) ValidateConnectChat() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.VisitorID, validation.Required),
		validation.Field(&c.DisplayName, validation.Length(0, 80)),
	)
}

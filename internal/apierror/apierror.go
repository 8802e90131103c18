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

package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound            ErrorCode = "NOT_FOUND"
	ErrConflict            ErrorCode = "CONFLICT"
	ErrBadRequest          ErrorCode = "BAD_REQUEST"
	ErrInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrInternalServer      ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrInvalidAmount       ErrorCode = "INVALID_AMOUNT"
	ErrInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	ErrInvalidBucket       ErrorCode = "INVALID_BUCKET"
	ErrSelfTransferDenied  ErrorCode = "SELF_TRANSFER_DENIED"
	ErrUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrForbidden           ErrorCode = "FORBIDDEN"
	ErrPinNotSet           ErrorCode = "PIN_NOT_SET"
	ErrPinLocked           ErrorCode = "PIN_LOCKED"
	ErrDuplicateActiveCard ErrorCode = "DUPLICATE_ACTIVE_CARD"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// InsufficientBalanceDetails is attached to ErrInsufficientBalance so callers can
// show the available amount and the shortfall.
type InsufficientBalanceDetails struct {
	Bucket    string          `json:"bucket"`
	Available decimal.Decimal `json:"available"`
	Requested decimal.Decimal `json:"requested"`
	Shortfall decimal.Decimal `json:"shortfall"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes an underlying error carried in Details.
func (e APIError) Unwrap() error {
	if err, ok := e.Details.(error); ok {
		return err
	}
	return nil
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	entry := logrus.WithField("code", code)
	switch d := details.(type) {
	case nil:
		entry.Debug(message)
	case error:
		entry.WithError(d).Error(message)
	default:
		entry.Error(details)
	}
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewInsufficientBalance builds the declined result for a bucket that cannot cover amount.
func NewInsufficientBalance(bucket string, available, requested decimal.Decimal) APIError {
	return NewAPIError(ErrInsufficientBalance,
		fmt.Sprintf("Insufficient balance in %s. Available: %s", bucket, available.StringFixed(2)),
		InsufficientBalanceDetails{
			Bucket:    bucket,
			Available: available,
			Requested: requested,
			Shortfall: requested.Sub(available),
		})
}

// HasCode reports whether err is an APIError carrying code.
func HasCode(err error, code ErrorCode) bool {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

func MapErrorToHTTPStatus(err error) int {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case ErrNotFound:
			return http.StatusNotFound
		case ErrConflict, ErrDuplicateActiveCard:
			return http.StatusConflict
		case ErrInvalidInput, ErrBadRequest, ErrInvalidAmount, ErrInsufficientBalance,
			ErrInvalidBucket, ErrSelfTransferDenied, ErrPinNotSet:
			return http.StatusBadRequest
		case ErrUnauthorized:
			return http.StatusUnauthorized
		case ErrForbidden:
			return http.StatusForbidden
		case ErrPinLocked:
			return http.StatusLocked
		case ErrInternalServer:
			return http.StatusInternalServerError
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

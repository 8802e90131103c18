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

// Package tokenization keeps card numbers out of the database in clear text.
// A card number is stored twice: sealed with AES-GCM so it can be recovered,
// and as a keyed fingerprint so uniqueness can still be enforced by postgres.
package tokenization

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
)

var ErrMalformedToken = errors.New("malformed token")

// Tokenizer seals and fingerprints sensitive values with a single key.
type Tokenizer struct {
	aead cipher.AEAD
	key  []byte
}

// DeriveKey stretches an arbitrary secret into an AES-256 key.
func DeriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// NewTokenizer accepts 16, 24 or 32 byte keys.
func NewTokenizer(key []byte) (*Tokenizer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "tokenizer key")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Tokenizer{aead: gcm, key: key}, nil
}

// Seal encrypts value under a random nonce. Sealing the same value twice
// yields different tokens.
func (t *Tokenizer) Seal(value string) (string, error) {
	nonce := make([]byte, t.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := t.aead.Seal(nonce, nonce, []byte(value), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (t *Tokenizer) Open(token string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", ErrMalformedToken
	}
	nonceSize := t.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrMalformedToken
	}
	plain, err := t.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", errors.Wrap(err, "open token")
	}
	return string(plain), nil
}

// Fingerprint is deterministic for a given key and value.
func (t *Tokenizer) Fingerprint(value string) string {
	h := hmac.New(sha256.New, t.key)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}

// Copyright (c) 2024 anidb-go contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package credstore is the at-rest encrypted credential container of spec
// §4.8: a passphrase-derived AEAD key over the JSON-encoded (username,
// password) pair. Where the teacher's credCache_linux.go delegates secret
// storage to the session keyring, this module's secret (an AniDB account
// password) must survive across login sessions and across OSes, so it is
// stored in its own file-backed container instead — encrypted with
// golang.org/x/crypto/chacha20poly1305 under a key derived by
// golang.org/x/crypto/argon2, rather than deferred to any OS-specific
// keyring backend.
package credstore

import (
	"crypto/rand"
	"encoding/json"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/anidb-go/anidb-core/common"
)

// KDFParams records the Argon2id parameters used to derive the AEAD key,
// stored alongside the ciphertext so a different set of parameters can be
// adopted later without breaking existing containers.
type KDFParams struct {
	Salt         []byte `json:"salt"`
	TimeCost     uint32 `json:"time_cost"`
	MemoryCostKB uint32 `json:"memory_cost_kb"`
	Threads      uint8  `json:"threads"`
}

// DefaultKDFParams are conservative interactive-use Argon2id parameters.
func DefaultKDFParams() (KDFParams, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return KDFParams{}, common.WrapError(common.EErrorKind.Unknown(), "generate KDF salt", err)
	}
	return KDFParams{
		Salt:         salt,
		TimeCost:     3,
		MemoryCostKB: 64 * 1024, // 64 MiB
		Threads:      4,
	}, nil
}

func (p KDFParams) deriveKey(passphrase string) []byte {
	return argon2.IDKey([]byte(passphrase), p.Salt, p.TimeCost, p.MemoryCostKB, p.Threads, chacha20poly1305.KeySize)
}

// Credentials is the plaintext (username, password) pair, never written to
// disk outside of Container's ciphertext (spec §3).
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Container is the on-disk envelope from spec §4.8: {kdf_params, nonce,
// ciphertext, tag}. chacha20poly1305's Seal appends its 128-bit tag to the
// ciphertext, so Tag is not stored separately — it is the trailing 16 bytes
// of Ciphertext, matching how the AEAD primitive itself represents it.
type Container struct {
	KDFParams  KDFParams `json:"kdf_params"`
	Nonce      []byte    `json:"nonce"`
	Ciphertext []byte    `json:"ciphertext"`
}

// Seal encrypts creds under a key derived from passphrase, producing a new
// Container with fresh KDF salt and AEAD nonce.
func Seal(passphrase string, creds Credentials) (Container, error) {
	params, err := DefaultKDFParams()
	if err != nil {
		return Container{}, err
	}
	key := params.deriveKey(passphrase)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return Container{}, common.WrapError(common.EErrorKind.Unknown(), "construct AEAD cipher", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Container{}, common.WrapError(common.EErrorKind.Unknown(), "generate AEAD nonce", err)
	}

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return Container{}, common.WrapError(common.EErrorKind.Unknown(), "encode credentials", err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)
	return Container{KDFParams: params, Nonce: nonce, Ciphertext: ciphertext}, nil
}

// Open decrypts c under a key derived from passphrase. Any tampering with
// Nonce, Ciphertext, or the trailing AEAD tag inside Ciphertext causes
// CredentialDecryptFailed; no partial credentials are ever returned (spec
// §4.8).
func (c Container) Open(passphrase string) (Credentials, error) {
	key := c.KDFParams.deriveKey(passphrase)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return Credentials{}, common.WrapError(common.EErrorKind.Unknown(), "construct AEAD cipher", err)
	}
	if len(c.Nonce) != aead.NonceSize() {
		return Credentials{}, common.NewError(common.EErrorKind.CredentialDecryptFailed(), "malformed credential container nonce")
	}

	plaintext, err := aead.Open(nil, c.Nonce, c.Ciphertext, nil)
	if err != nil {
		return Credentials{}, common.WrapError(common.EErrorKind.CredentialDecryptFailed(), "credential decryption failed", err)
	}

	var creds Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return Credentials{}, common.WrapError(common.EErrorKind.CredentialDecryptFailed(), "malformed decrypted credentials", err)
	}
	return creds, nil
}

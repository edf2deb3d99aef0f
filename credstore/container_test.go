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

package credstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anidb-go/anidb-core/common"
)

func TestSealThenOpenRoundTrips(t *testing.T) {
	a := assert.New(t)
	creds := Credentials{Username: "alice", Password: "hunter2"}

	c, err := Seal("correct horse battery staple", creds)
	a.NoError(err)
	a.NotEmpty(c.Nonce)
	a.NotEmpty(c.Ciphertext)

	got, err := c.Open("correct horse battery staple")
	a.NoError(err)
	a.Equal(creds, got)
}

func TestOpenFailsWithWrongPassphrase(t *testing.T) {
	a := assert.New(t)
	c, err := Seal("correct-passphrase", Credentials{Username: "alice", Password: "hunter2"})
	a.NoError(err)

	_, err = c.Open("wrong-passphrase")
	a.Error(err)
	a.Equal(common.EErrorKind.CredentialDecryptFailed(), common.KindOf(err))
}

func TestOpenFailsWhenCiphertextIsTampered(t *testing.T) {
	a := assert.New(t)
	c, err := Seal("passphrase", Credentials{Username: "alice", Password: "hunter2"})
	a.NoError(err)

	tampered := append([]byte{}, c.Ciphertext...)
	tampered[0] ^= 0xFF
	c.Ciphertext = tampered

	_, err = c.Open("passphrase")
	a.Error(err)
	a.Equal(common.EErrorKind.CredentialDecryptFailed(), common.KindOf(err))
}

func TestOpenFailsWhenNonceIsTampered(t *testing.T) {
	a := assert.New(t)
	c, err := Seal("passphrase", Credentials{Username: "alice", Password: "hunter2"})
	a.NoError(err)

	tampered := append([]byte{}, c.Nonce...)
	tampered[0] ^= 0xFF
	c.Nonce = tampered

	_, err = c.Open("passphrase")
	a.Error(err)
	a.Equal(common.EErrorKind.CredentialDecryptFailed(), common.KindOf(err))
}

func TestOpenFailsWhenNonceIsWrongLength(t *testing.T) {
	a := assert.New(t)
	c, err := Seal("passphrase", Credentials{Username: "alice", Password: "hunter2"})
	a.NoError(err)

	c.Nonce = c.Nonce[:len(c.Nonce)-1]

	_, err = c.Open("passphrase")
	a.Error(err)
	a.Equal(common.EErrorKind.CredentialDecryptFailed(), common.KindOf(err))
}

func TestSealProducesFreshSaltAndNoncePerCall(t *testing.T) {
	a := assert.New(t)
	creds := Credentials{Username: "alice", Password: "hunter2"}

	c1, err := Seal("passphrase", creds)
	a.NoError(err)
	c2, err := Seal("passphrase", creds)
	a.NoError(err)

	a.NotEqual(c1.KDFParams.Salt, c2.KDFParams.Salt)
	a.NotEqual(c1.Nonce, c2.Nonce)
	a.NotEqual(c1.Ciphertext, c2.Ciphertext)
}

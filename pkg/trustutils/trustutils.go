/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package trustutils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcutil/base58"
)

const (
	// sha2-256 multihash code and digest length.
	multihashSHA256 = 0x12
	multihashLength = 0x20
)

// ErrNotContentID is returned when a string is not a base58 sha2-256 multihash.
var ErrNotContentID = errors.New("value is not a base58-encoded sha2-256 multihash")

type generateRandomBytesFunc func([]byte) (int, error)

// RandomBytes returns n bytes from a cryptographically secure random number generator.
func RandomBytes(n int) ([]byte, error) {
	return randomBytes(n, rand.Read)
}

func randomBytes(n int, generateRandomBytes generateRandomBytesFunc) ([]byte, error) {
	b := make([]byte, n)

	_, err := generateRandomBytes(b)
	if err != nil {
		return nil, err
	}

	return b, nil
}

// RandomHex returns n random bytes, hex-encoded.
func RandomHex(n int) (string, error) {
	b, err := RandomBytes(n)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ContentID returns the base58-encoded sha2-256 multihash of data.
func ContentID(data []byte) string {
	sum := sha256.Sum256(data)

	return base58.Encode(append([]byte{multihashSHA256, multihashLength}, sum[:]...))
}

// CheckContentID returns an error if id was not produced by ContentID.
func CheckContentID(id string) error {
	decoded := base58.Decode(id)

	if len(decoded) != multihashLength+2 || decoded[0] != multihashSHA256 || decoded[1] != multihashLength {
		return ErrNotContentID
	}

	return nil
}

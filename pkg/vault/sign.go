/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vault

import (
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
)

const (
	digestSize    = 32
	scalarSize    = 32
	signatureSize = 2 * scalarSize
)

// Sign produces a deterministic (RFC 6979) secp256k1 signature over a 32-byte digest using the
// key at path. The signature is the 64-byte concatenation r || s.
func (v *Vault) Sign(path, passphrase string, digest []byte) ([]byte, error) {
	if len(digest) != digestSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidDigest, len(digest))
	}

	var out []byte

	err := v.withPrivateKey(path, passphrase, func(key *btcec.PrivateKey) error {
		sig, err := key.Sign(digest)
		if err != nil {
			return fmt.Errorf("sign digest: %w", err)
		}

		out = make([]byte, signatureSize)
		sig.R.FillBytes(out[:scalarSize])
		sig.S.FillBytes(out[scalarSize:])

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Verify reports whether signature is a valid r || s signature of digest by publicKey.
// Malformed input yields false.
func Verify(digest, publicKey, signature []byte) bool {
	if len(digest) != digestSize || len(signature) != signatureSize {
		return false
	}

	pub, err := btcec.ParsePubKey(publicKey, btcec.S256())
	if err != nil {
		return false
	}

	sig := &btcec.Signature{
		R: new(big.Int).SetBytes(signature[:scalarSize]),
		S: new(big.Int).SetBytes(signature[scalarSize:]),
	}

	return sig.Verify(digest, pub)
}

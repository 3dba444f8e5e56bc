/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vault

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec"

	"github.com/trustbloc/didtrust/pkg/trustutils"
)

// WrappedKey is a symmetric key encrypted to one recipient.
type WrappedKey struct {
	PubKey string `json:"pubKey"`
	Cipher string `json:"cipher"`
}

// EncryptedData is a hybrid-encrypted payload: one AES-encrypted blob plus the AES key wrapped
// to every recipient.
type EncryptedData struct {
	Keys []WrappedKey `json:"keys"`
	Data string       `json:"data"`
}

// AsymEncrypt encrypts data to a secp256k1 public key (ECIES).
func AsymEncrypt(data, publicKey []byte) ([]byte, error) {
	pub, err := btcec.ParsePubKey(publicKey, btcec.S256())
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return btcec.Encrypt(pub, data)
}

// AsymDecrypt decrypts data encrypted with AsymEncrypt to the key at path.
func (v *Vault) AsymDecrypt(data []byte, path, passphrase string) ([]byte, error) {
	var plaintext []byte

	err := v.withPrivateKey(path, passphrase, func(key *btcec.PrivateKey) error {
		var err error

		plaintext, err = btcec.Decrypt(key, data)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrDecryptionFailed, err)
		}

		return nil
	})

	return plaintext, err
}

// EncryptHybrid JSON-encodes data and encrypts it under a fresh AES-256 key. The key is wrapped
// to the public key at path and to every extra recipient.
func (v *Vault) EncryptHybrid(data interface{}, path, passphrase string,
	recipients ...[]byte) (*EncryptedData, error) {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}

	own, err := v.PublicKey(path, passphrase)
	if err != nil {
		return nil, err
	}

	symKey, err := trustutils.RandomBytes(aesKeySize)
	if err != nil {
		return nil, fmt.Errorf("generate symmetric key: %w", err)
	}

	defer trustutils.Zero(symKey)

	ciphertext, err := encryptCBC(symKey, plaintext, rand.Read)
	if err != nil {
		return nil, err
	}

	bundle := &EncryptedData{Data: hex.EncodeToString(ciphertext)}

	for i, pub := range append([][]byte{own}, recipients...) {
		if i > 0 && bytes.Equal(pub, own) {
			continue
		}

		wrapped, errWrap := AsymEncrypt(symKey, pub)
		if errWrap != nil {
			return nil, fmt.Errorf("wrap key for recipient %d: %w", i, errWrap)
		}

		bundle.Keys = append(bundle.Keys, WrappedKey{
			PubKey: hex.EncodeToString(pub),
			Cipher: base64.StdEncoding.EncodeToString(wrapped),
		})
	}

	return bundle, nil
}

// DecryptHybrid returns the JSON plaintext of bundle, unwrapping the key held for the public
// key at path.
func (v *Vault) DecryptHybrid(bundle *EncryptedData, path, passphrase string) ([]byte, error) {
	own, err := v.PublicKey(path, passphrase)
	if err != nil {
		return nil, err
	}

	ownHex := hex.EncodeToString(own)

	var match *WrappedKey

	for i := range bundle.Keys {
		if !strings.EqualFold(bundle.Keys[i].PubKey, ownHex) {
			continue
		}

		if match != nil {
			return nil, fmt.Errorf("%w: more than one entry for %s", ErrNoMatchingKey, ownHex)
		}

		match = &bundle.Keys[i]
	}

	if match == nil {
		return nil, ErrNoMatchingKey
	}

	wrapped, err := base64.StdEncoding.DecodeString(match.Cipher)
	if err != nil {
		return nil, fmt.Errorf("%w: wrapped key: %s", ErrDecryptionFailed, err)
	}

	symKey, err := v.AsymDecrypt(wrapped, path, passphrase)
	if err != nil {
		return nil, err
	}

	defer trustutils.Zero(symKey)

	ciphertext, err := hex.DecodeString(bundle.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: data: %s", ErrDecryptionFailed, err)
	}

	return decryptCBC(symKey, ciphertext)
}

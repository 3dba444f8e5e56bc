/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"

	"github.com/trustbloc/didtrust/pkg/trustutils"
)

const (
	aesKeySize = 32
	blockSize  = aes.BlockSize
	ivSize     = aes.BlockSize
)

type generateRandomBytesFunc func([]byte) (int, error)

// passphraseKey turns a passphrase into an AES-256 key. A passphrase of exactly 32 bytes is
// used as is; anything else is replaced by its sha256 digest.
func passphraseKey(passphrase string) []byte {
	key := []byte(passphrase)
	if len(key) == aesKeySize {
		return key
	}

	logger.Warnf("passphrase is not %d bytes long, using its sha256 digest as the seed encryption key",
		aesKeySize)

	sum := sha256.Sum256(key)
	trustutils.Zero(key)

	return sum[:]
}

// encryptCBC encrypts plaintext with AES-CBC and PKCS#7 padding under a fresh random IV.
// The IV is prepended to the ciphertext.
func encryptCBC(key, plaintext []byte, generateRandomBytes generateRandomBytesFunc) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	padLen := blockSize - len(plaintext)%blockSize

	padded := make([]byte, len(plaintext)+padLen)
	copy(padded, plaintext)
	copy(padded[len(plaintext):], bytes.Repeat([]byte{byte(padLen)}, padLen))

	defer trustutils.Zero(padded)

	out := make([]byte, ivSize+len(padded))

	_, err = generateRandomBytes(out[:ivSize])
	if err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	cipher.NewCBCEncrypter(block, out[:ivSize]).CryptBlocks(out[ivSize:], padded)

	return out, nil
}

// decryptCBC reverses encryptCBC. A wrong key shows up as corrupted padding.
func decryptCBC(key, data []byte) ([]byte, error) {
	if len(data) < ivSize+blockSize || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is %d bytes", ErrDecryptionFailed, len(data))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	plaintext := make([]byte, len(data)-ivSize)
	cipher.NewCBCDecrypter(block, data[:ivSize]).CryptBlocks(plaintext, data[ivSize:])

	padLen := int(plaintext[len(plaintext)-1])
	if padLen == 0 || padLen > blockSize {
		trustutils.Zero(plaintext)

		return nil, ErrDecryptionFailed
	}

	for _, b := range plaintext[len(plaintext)-padLen:] {
		if int(b) != padLen {
			trustutils.Zero(plaintext)

			return nil, ErrDecryptionFailed
		}
	}

	trustutils.Zero(plaintext[len(plaintext)-padLen:])

	return plaintext[:len(plaintext)-padLen], nil
}

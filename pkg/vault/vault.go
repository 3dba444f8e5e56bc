/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package vault holds a single encrypted seed and derives secp256k1 key pairs from it on demand.
//
// The seed is never kept in clear. Every operation that needs key material decrypts the seed
// with the caller's passphrase, derives the requested child key, uses it and zeroes the
// decrypted seed and all intermediate keys before returning. A Vault is immutable and safe for
// concurrent use.
package vault

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil/hdkeychain"
	"github.com/trustbloc/edge-core/pkg/log"
	"github.com/tyler-smith/go-bip39"

	"github.com/trustbloc/didtrust/pkg/trusterrors"
	"github.com/trustbloc/didtrust/pkg/trustutils"
)

const (
	logModuleName = "didtrust/vault"

	// IdentityKeyPath is the derivation path of the key that controls an identity's DID document.
	IdentityKeyPath = "m/73'/0'/0'/0"
	// EthereumKeyPath is the derivation path of the key used for ledger transactions.
	EthereumKeyPath = "m/44'/60'/0'/0/0"

	minSeedLength  = 16
	maxSeedLength  = 32
	seedLengthStep = 4

	minEncryptedSeedLength = ivSize + minSeedLength + blockSize
	maxEncryptedSeedLength = ivSize + maxSeedLength + blockSize
)

var logger = log.New(logModuleName)

var (
	// ErrInvalidSeedLength is returned when a raw or encrypted seed has an unsupported length.
	ErrInvalidSeedLength = trusterrors.New(trusterrors.Validation, "invalid seed length")
	// ErrInvalidMnemonic is returned when a mnemonic phrase fails its checksum.
	ErrInvalidMnemonic = trusterrors.New(trusterrors.Validation, "invalid mnemonic phrase")
	// ErrInvalidDerivationPath is returned for malformed derivation paths.
	ErrInvalidDerivationPath = trusterrors.New(trusterrors.Validation, "invalid derivation path")
	// ErrInvalidDigest is returned when asked to sign something that is not a 32-byte digest.
	ErrInvalidDigest = trusterrors.New(trusterrors.Validation, "digest must be 32 bytes")
	// ErrDecryptionFailed is returned when ciphertext cannot be decrypted with the given key,
	// most commonly because the passphrase is wrong.
	ErrDecryptionFailed = trusterrors.New(trusterrors.Cryptographic, "decryption failed")
	// ErrNoMatchingKey is returned when a hybrid bundle holds no key wrapped for the caller.
	ErrNoMatchingKey = trusterrors.New(trusterrors.Cryptographic, "no wrapped key matches the derived public key")
)

// Vault owns one encrypted seed.
type Vault struct {
	encryptedSeed []byte
}

// New returns a Vault over an existing encrypted seed (IV followed by ciphertext).
func New(encryptedSeed []byte) (*Vault, error) {
	if len(encryptedSeed) < minEncryptedSeedLength || len(encryptedSeed) > maxEncryptedSeedLength ||
		len(encryptedSeed)%blockSize != 0 {
		return nil, fmt.Errorf("%w: encrypted seed is %d bytes", ErrInvalidSeedLength, len(encryptedSeed))
	}

	seed := make([]byte, len(encryptedSeed))
	copy(seed, encryptedSeed)

	return &Vault{encryptedSeed: seed}, nil
}

// NewFromHex returns a Vault over a hex-encoded encrypted seed.
func NewFromHex(encryptedSeed string) (*Vault, error) {
	b, err := hex.DecodeString(encryptedSeed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSeedLength, err)
	}

	return New(b)
}

// FromSeed encrypts seed under passphrase and returns the resulting Vault.
// The seed must be between 16 and 32 bytes long, in steps of 4 bytes, so that it can
// always be exported as a mnemonic.
func FromSeed(seed []byte, passphrase string) (*Vault, error) {
	return fromSeed(seed, passphrase, rand.Read)
}

func fromSeed(seed []byte, passphrase string, generateRandomBytes generateRandomBytesFunc) (*Vault, error) {
	if len(seed) < minSeedLength || len(seed) > maxSeedLength || len(seed)%seedLengthStep != 0 {
		return nil, fmt.Errorf("%w: seed is %d bytes", ErrInvalidSeedLength, len(seed))
	}

	key := passphraseKey(passphrase)
	defer trustutils.Zero(key)

	encrypted, err := encryptCBC(key, seed, generateRandomBytes)
	if err != nil {
		return nil, fmt.Errorf("encrypt seed: %w", err)
	}

	return &Vault{encryptedSeed: encrypted}, nil
}

// Recover rebuilds a Vault from a BIP39 mnemonic phrase.
func Recover(mnemonic, passphrase string) (*Vault, error) {
	entropy, err := bip39.EntropyFromMnemonic(normalizeMnemonic(mnemonic))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMnemonic, err)
	}

	defer trustutils.Zero(entropy)

	return FromSeed(entropy, passphrase)
}

// EncryptedSeed returns a copy of the encrypted seed.
func (v *Vault) EncryptedSeed() []byte {
	b := make([]byte, len(v.encryptedSeed))
	copy(b, v.encryptedSeed)

	return b
}

// EncryptedSeedHex returns the hex-encoded encrypted seed.
func (v *Vault) EncryptedSeedHex() string {
	return hex.EncodeToString(v.encryptedSeed)
}

// PublicKey derives the compressed secp256k1 public key at path.
func (v *Vault) PublicKey(path, passphrase string) ([]byte, error) {
	var pub []byte

	err := v.withKey(path, passphrase, func(key *hdkeychain.ExtendedKey) error {
		ecPub, err := key.ECPubKey()
		if err != nil {
			return err
		}

		pub = ecPub.SerializeCompressed()

		return nil
	})

	return pub, err
}

// PrivateKey derives the 32-byte secp256k1 private key at path.
// The caller owns the returned buffer and should zero it when done.
func (v *Vault) PrivateKey(path, passphrase string) ([]byte, error) {
	var priv []byte

	err := v.withPrivateKey(path, passphrase, func(key *btcec.PrivateKey) error {
		priv = key.Serialize()

		return nil
	})

	return priv, err
}

// withKey decrypts the seed, walks path and hands the derived key to fn.
// Nothing derived here outlives the call.
func (v *Vault) withKey(path, passphrase string, fn func(key *hdkeychain.ExtendedKey) error) error {
	indexes, err := parsePath(path)
	if err != nil {
		return err
	}

	seed, err := v.decryptSeed(passphrase)
	if err != nil {
		return err
	}

	defer trustutils.Zero(seed)

	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return fmt.Errorf("derive master key: %w", err)
	}

	for _, index := range indexes {
		child, errDerive := key.Derive(index)

		key.Zero()

		if errDerive != nil {
			return fmt.Errorf("derive child %d of %s: %w", index, path, errDerive)
		}

		key = child
	}

	defer key.Zero()

	return fn(key)
}

func (v *Vault) withPrivateKey(path, passphrase string, fn func(key *btcec.PrivateKey) error) error {
	return v.withKey(path, passphrase, func(key *hdkeychain.ExtendedKey) error {
		priv, err := key.ECPrivKey()
		if err != nil {
			return err
		}

		defer priv.D.SetInt64(0)

		return fn(priv)
	})
}

func (v *Vault) decryptSeed(passphrase string) ([]byte, error) {
	key := passphraseKey(passphrase)
	defer trustutils.Zero(key)

	seed, err := decryptCBC(key, v.encryptedSeed)
	if err != nil {
		return nil, err
	}

	// Garbage that happens to carry valid padding is caught here.
	if len(seed) < minSeedLength || len(seed) > maxSeedLength || len(seed)%seedLengthStep != 0 {
		trustutils.Zero(seed)

		return nil, ErrDecryptionFailed
	}

	return seed, nil
}

func normalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(mnemonic), " ")
}

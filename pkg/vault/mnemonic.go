/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vault

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"

	"github.com/trustbloc/didtrust/pkg/trustutils"
)

// Mnemonic returns the BIP39 phrase encoding the seed. When did is not empty, a second phrase
// encoding the DID's method-specific identifier (hex) is appended, so that the seed and the
// identity can be recovered together with SplitMnemonic.
func (v *Vault) Mnemonic(passphrase, did string) (string, error) {
	seed, err := v.decryptSeed(passphrase)
	if err != nil {
		return "", err
	}

	defer trustutils.Zero(seed)

	phrase, err := bip39.NewMnemonic(seed)
	if err != nil {
		return "", fmt.Errorf("encode seed: %w", err)
	}

	if did == "" {
		return phrase, nil
	}

	id, err := hex.DecodeString(did[strings.LastIndex(did, ":")+1:])
	if err != nil {
		return "", fmt.Errorf("%s has no hex identifier: %w", did, err)
	}

	didPhrase, err := bip39.NewMnemonic(id)
	if err != nil {
		return "", fmt.Errorf("encode did %s: %w", did, err)
	}

	return phrase + " " + didPhrase, nil
}

// SplitMnemonic separates a phrase produced by Mnemonic into the seed phrase and the hex
// identifier of the DID. didID is empty when the phrase only encodes a seed.
func SplitMnemonic(phrase string) (seedPhrase, didID string, err error) {
	words := strings.Fields(phrase)

	if bip39.IsMnemonicValid(strings.Join(words, " ")) {
		return strings.Join(words, " "), "", nil
	}

	// Seed phrases are 12 to 24 words in steps of 3.
	for n := 12; n <= 24 && n < len(words); n += 3 {
		first, second := strings.Join(words[:n], " "), strings.Join(words[n:], " ")

		if !bip39.IsMnemonicValid(first) || !bip39.IsMnemonicValid(second) {
			continue
		}

		id, errEntropy := bip39.EntropyFromMnemonic(second)
		if errEntropy != nil {
			return "", "", fmt.Errorf("%w: %s", ErrInvalidMnemonic, errEntropy)
		}

		return first, hex.EncodeToString(id), nil
	}

	return "", "", ErrInvalidMnemonic
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vault

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcutil/hdkeychain"
)

// parsePath turns "m/44'/60'/0'/0/0" into child indexes. A trailing ' or h marks a hardened index.
func parsePath(path string) ([]uint32, error) {
	segments := strings.Split(strings.TrimSpace(path), "/")
	if segments[0] != "m" {
		return nil, fmt.Errorf("%w: %q must start with m", ErrInvalidDerivationPath, path)
	}

	indexes := make([]uint32, 0, len(segments)-1)

	for _, segment := range segments[1:] {
		hardened := strings.HasSuffix(segment, "'") || strings.HasSuffix(segment, "h")
		if hardened {
			segment = segment[:len(segment)-1]
		}

		index, err := strconv.ParseUint(segment, 10, 32)
		if err != nil || index >= uint64(hdkeychain.HardenedKeyStart) {
			return nil, fmt.Errorf("%w: bad segment %q in %q", ErrInvalidDerivationPath, segment, path)
		}

		if hardened {
			index += uint64(hdkeychain.HardenedKeyStart)
		}

		indexes = append(indexes, uint32(index))
	}

	return indexes, nil
}

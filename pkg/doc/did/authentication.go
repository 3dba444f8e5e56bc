/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package did

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Authentication is an authentication entry: either a reference to a public key of the same
// document or an embedded key entry.
type Authentication struct {
	Reference string
	Embedded  *PublicKey
}

// KeyID returns the id of the key used for authentication.
func (a Authentication) KeyID() string {
	if a.Embedded != nil {
		return a.Embedded.ID
	}

	return a.Reference
}

// MarshalJSON writes a reference as a JSON string and an embedded key as an object.
func (a Authentication) MarshalJSON() ([]byte, error) {
	if a.Embedded != nil {
		return json.Marshal(a.Embedded)
	}

	return json.Marshal(a.Reference)
}

// UnmarshalJSON accepts either form.
func (a *Authentication) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '"' {
		a.Embedded = nil

		return json.Unmarshal(data, &a.Reference)
	}

	key := &PublicKey{}

	err := json.Unmarshal(data, key)
	if err != nil {
		return err
	}

	if key.ID == "" {
		return fmt.Errorf("embedded authentication key has no id")
	}

	a.Reference = ""
	a.Embedded = key

	return nil
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package models

import "encoding/json"

// AnchorRequest is the body of a request to anchor a DID document.
type AnchorRequest struct {
	DIDDocument   json.RawMessage `json:"didDocument"`
	PublicProfile json.RawMessage `json:"publicProfile,omitempty"`
}

// IdentifiersResponse lists anchored DIDs.
type IdentifiersResponse struct {
	Identifiers []string `json:"identifiers"`
}

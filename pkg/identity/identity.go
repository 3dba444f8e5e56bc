/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package identity pairs a DID document with its optional public profile credential.
package identity

import (
	"github.com/trustbloc/didtrust/pkg/doc/credential"
	"github.com/trustbloc/didtrust/pkg/doc/did"
)

// Identity is an immutable view of a resolved or self-issued identity. Accessors return copies.
type Identity struct {
	document *did.Document
	profile  *credential.SignedCredential
}

// New returns an Identity over doc and an optional public profile.
func New(doc *did.Document, profile *credential.SignedCredential) Identity {
	id := Identity{document: doc.Clone()}

	if profile != nil {
		id.profile = profile.Clone()
	}

	return id
}

// IsZero reports whether the Identity was never initialized.
func (i Identity) IsZero() bool {
	return i.document == nil
}

// DID returns the identifier.
func (i Identity) DID() string {
	if i.document == nil {
		return ""
	}

	return i.document.ID
}

// Document returns a copy of the DID document.
func (i Identity) Document() *did.Document {
	if i.document == nil {
		return nil
	}

	return i.document.Clone()
}

// PublicKeys returns the public key entries of the document.
func (i Identity) PublicKeys() []did.PublicKey {
	if i.document == nil {
		return nil
	}

	return append([]did.PublicKey(nil), i.document.PublicKey...)
}

// PublicKey returns the key entry with the given id.
func (i Identity) PublicKey(keyID string) (*did.PublicKey, error) {
	if i.document == nil {
		return nil, did.ErrKeyNotFound
	}

	return i.document.PublicKeyByID(keyID)
}

// ServiceEndpoints returns the service entries of the document.
func (i Identity) ServiceEndpoints() []did.Service {
	if i.document == nil {
		return nil
	}

	return append([]did.Service(nil), i.document.Service...)
}

// PublicProfile returns the public profile credential, if the identity has one.
func (i Identity) PublicProfile() (*credential.SignedCredential, bool) {
	if i.profile == nil {
		return nil, false
	}

	return i.profile.Clone(), true
}

// WithPublicProfile returns a new Identity carrying profile.
func (i Identity) WithPublicProfile(profile *credential.SignedCredential) Identity {
	return New(i.document, profile)
}

// WithDocument returns a new Identity over doc, keeping the profile.
func (i Identity) WithDocument(doc *did.Document) Identity {
	return New(doc, i.profile)
}

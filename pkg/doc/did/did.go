/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package did

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"golang.org/x/crypto/sha3"

	"github.com/trustbloc/didtrust/pkg/doc/proof"
	"github.com/trustbloc/didtrust/pkg/linkeddata"
	"github.com/trustbloc/didtrust/pkg/trusterrors"
)

const (
	// Method is the DID method name.
	Method = "jolo"
	// KeyFragment names the controlling key of a self-issued document.
	KeyFragment = "keys-1"
	// PublicKeyType is the type of secp256k1 public key entries.
	PublicKeyType = "Secp256k1VerificationKey2018"
	// PublicProfileServiceType marks the service entry pointing at a public profile credential.
	PublicProfileServiceType = "PublicProfile"

	methodPrefix          = "did:" + Method + ":"
	publicProfileFragment = "profile"
)

var (
	// ErrInvalidDocument is returned for structurally invalid documents.
	ErrInvalidDocument = trusterrors.New(trusterrors.Validation, "invalid DID document")
	// ErrDuplicateKeyID is returned when a key id appears more than once in a document.
	ErrDuplicateKeyID = trusterrors.New(trusterrors.Validation, "public key id is not unique")
	// ErrKeyNotFound is returned when a key id does not resolve within a document.
	ErrKeyNotFound = trusterrors.New(trusterrors.Validation, "public key not found in document")
	// ErrUnknownSigningKey is returned when a document's proof names a key the document does not list.
	ErrUnknownSigningKey = trusterrors.New(trusterrors.Validation, "proof creator is not a key of the document")
)

// PublicKey is a public key entry of a DID document.
type PublicKey struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Owner        string `json:"owner"`
	PublicKeyHex string `json:"publicKeyHex"`
}

// Bytes decodes the key material.
func (k *PublicKey) Bytes() ([]byte, error) {
	return hex.DecodeString(k.PublicKeyHex)
}

// Service is a service endpoint descriptor.
type Service struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
	Description     string `json:"description,omitempty"`
}

// Document is a DID document. Use Parse to build one from untrusted input.
type Document struct {
	Context        interface{}      `json:"@context"`
	ID             string           `json:"id"`
	PublicKey      []PublicKey      `json:"publicKey"`
	Authentication []Authentication `json:"authentication"`
	Service        []Service        `json:"service"`
	Created        string           `json:"created"`
	Updated        string           `json:"updated,omitempty"`
	Proof          *proof.Proof     `json:"proof,omitempty"`
}

// FromPublicKey builds a self-issued document controlled by a compressed secp256k1 key.
// The document carries an unsigned proof.
func FromPublicKey(publicKey []byte, created time.Time) (*Document, error) {
	_, err := btcec.ParsePubKey(publicKey, btcec.S256())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDocument, err)
	}

	id := PublicKeyToDID(publicKey)
	keyID := id + "#" + KeyFragment

	p, err := proof.New(keyID, created)
	if err != nil {
		return nil, err
	}

	return &Document{
		Context: linkeddata.DIDDocumentContext(),
		ID:      id,
		PublicKey: []PublicKey{{
			ID:           keyID,
			Type:         PublicKeyType,
			Owner:        id,
			PublicKeyHex: hex.EncodeToString(publicKey),
		}},
		Authentication: []Authentication{{Reference: keyID}},
		Service:        []Service{},
		Created:        proof.FormatTime(created),
		Proof:          p,
	}, nil
}

// Parse decodes a DID document and checks that it is self-consistent.
func Parse(raw []byte) (*Document, error) {
	doc := &Document{}

	err := json.Unmarshal(raw, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDocument, err)
	}

	err = doc.Validate()
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// Validate checks that key ids are unique, that authentication references resolve and that the
// proof, if any, was made by one of the document's own keys.
func (d *Document) Validate() error {
	if !strings.HasPrefix(d.ID, "did:") {
		return fmt.Errorf("%w: id %q is not a DID", ErrInvalidDocument, d.ID)
	}

	seen := map[string]bool{}

	for _, k := range d.keys() {
		if seen[k.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateKeyID, k.ID)
		}

		seen[k.ID] = true
	}

	for _, a := range d.Authentication {
		if a.Embedded == nil && !seen[a.Reference] {
			return fmt.Errorf("%w: authentication references %s", ErrKeyNotFound, a.Reference)
		}
	}

	if d.Proof != nil && !seen[d.Proof.Creator] {
		return fmt.Errorf("%w: %s", ErrUnknownSigningKey, d.Proof.Creator)
	}

	return nil
}

// keys lists the public key entries and the embedded authentication entries.
func (d *Document) keys() []PublicKey {
	keys := append([]PublicKey(nil), d.PublicKey...)

	for _, a := range d.Authentication {
		if a.Embedded != nil {
			keys = append(keys, *a.Embedded)
		}
	}

	return keys
}

// PublicKeyByID returns the single key entry with the given id.
func (d *Document) PublicKeyByID(id string) (*PublicKey, error) {
	var found *PublicKey

	for _, k := range d.keys() {
		if k.ID != id {
			continue
		}

		if found != nil {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKeyID, id)
		}

		key := k
		found = &key
	}

	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}

	return found, nil
}

// SigningKey returns the key the document's proof claims to be signed with.
func (d *Document) SigningKey() (*PublicKey, error) {
	if d.Proof == nil {
		return nil, fmt.Errorf("%w: document has no proof", ErrInvalidDocument)
	}

	key, err := d.PublicKeyByID(d.Proof.Creator)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSigningKey, err)
	}

	return key, nil
}

// Signer returns the DID and key id of the proof creator.
func (d *Document) Signer() proof.Signer {
	if d.Proof == nil {
		return proof.Signer{}
	}

	return d.Proof.Signer()
}

// Signature returns the hex signature value of the proof.
func (d *Document) Signature() string {
	if d.Proof == nil {
		return ""
	}

	return d.Proof.SignatureValue
}

// Digest returns the linked-data digest of the document under the DID document context.
func (d *Document) Digest(opts ...linkeddata.Option) ([]byte, error) {
	if d.Proof == nil {
		return nil, fmt.Errorf("%w: document has no proof", ErrInvalidDocument)
	}

	m, err := linkeddata.ToMap(d)
	if err != nil {
		return nil, err
	}

	return linkeddata.Digest(m, linkeddata.DIDDocumentContext(), opts...)
}

// JSONBytes returns the JSON form of the document.
func (d *Document) JSONBytes() ([]byte, error) {
	return json.Marshal(d)
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := *d

	c.Context = cloneJSON(d.Context)
	c.PublicKey = append([]PublicKey(nil), d.PublicKey...)
	c.Service = append([]Service{}, d.Service...)
	c.Authentication = make([]Authentication, len(d.Authentication))

	for i, a := range d.Authentication {
		c.Authentication[i] = a

		if a.Embedded != nil {
			k := *a.Embedded
			c.Authentication[i].Embedded = &k
		}
	}

	if d.Proof != nil {
		p := *d.Proof
		c.Proof = &p
	}

	return &c
}

// WithProof returns a copy of the document carrying p.
func (d *Document) WithProof(p *proof.Proof) *Document {
	c := d.Clone()

	pc := *p
	c.Proof = &pc

	return c
}

// WithService returns a copy of the document carrying s. An existing entry with the same id is
// replaced. The copy keeps the old, now stale, proof.
func (d *Document) WithService(s Service) *Document {
	c := d.Clone()

	for i := range c.Service {
		if c.Service[i].ID == s.ID {
			c.Service[i] = s

			return c
		}
	}

	c.Service = append(c.Service, s)

	return c
}

// WithPublicProfile returns a copy of the document whose public profile service points at
// endpoint, stamped as updated at the given time.
func (d *Document) WithPublicProfile(endpoint, description string, updated time.Time) *Document {
	c := d.WithService(Service{
		ID:              d.ID + "#" + publicProfileFragment,
		Type:            PublicProfileServiceType,
		ServiceEndpoint: endpoint,
		Description:     description,
	})
	c.Updated = proof.FormatTime(updated)

	return c
}

// PublicProfileService returns the service entry pointing at the public profile, if any.
func (d *Document) PublicProfileService() (*Service, bool) {
	for i := range d.Service {
		if d.Service[i].Type == PublicProfileServiceType {
			s := d.Service[i]

			return &s, true
		}
	}

	return nil, false
}

// PublicKeyToDID derives the DID controlled by a public key: the keccak256 of the key, hex-encoded.
func PublicKeyToDID(publicKey []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(publicKey) //nolint:errcheck

	return methodPrefix + hex.EncodeToString(h.Sum(nil))
}

// KeyIDToDID strips the fragment from a key id.
func KeyIDToDID(keyID string) string {
	return strings.SplitN(keyID, "#", 2)[0]
}

func cloneJSON(v interface{}) interface{} {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}

	var out interface{}

	if json.Unmarshal(b, &out) != nil {
		return v
	}

	return out
}

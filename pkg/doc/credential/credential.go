/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package credential

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trustbloc/didtrust/pkg/doc/did"
	"github.com/trustbloc/didtrust/pkg/doc/proof"
	"github.com/trustbloc/didtrust/pkg/linkeddata"
	"github.com/trustbloc/didtrust/pkg/trusterrors"
)

const (
	// BaseType is the first type of every credential.
	BaseType = "Credential"

	defaultValidity = 365 * 24 * time.Hour
)

// ErrInvalidCredential is returned for structurally invalid credentials.
var ErrInvalidCredential = trusterrors.New(trusterrors.Validation, "invalid credential")

// Metadata describes a kind of credential: its types, display name and the context terms its
// claim uses.
type Metadata struct {
	Type    []string
	Name    string
	Context []interface{}
}

// CreateArgs are the inputs of Build.
type CreateArgs struct {
	Metadata    Metadata
	Claim       map[string]interface{}
	Subject     string
	IssuerKeyID string
	Issued      time.Time
	// Expires defaults to one year after Issued.
	Expires time.Time
}

// SignedCredential is a claim about a subject, signed by an issuer.
type SignedCredential struct {
	Context interface{}            `json:"@context"`
	ID      string                 `json:"id"`
	Name    string                 `json:"name,omitempty"`
	Issuer  string                 `json:"issuer"`
	Type    []string               `json:"type"`
	Claim   map[string]interface{} `json:"claim"`
	Issued  string                 `json:"issued"`
	Expires string                 `json:"expires,omitempty"`
	Proof   *proof.Proof           `json:"proof,omitempty"`
}

// Build assembles an unsigned credential. The subject is stored as the claim id.
func Build(args *CreateArgs) (*SignedCredential, error) {
	if !isDID(args.Subject) {
		return nil, fmt.Errorf("%w: subject %q is not a DID", ErrInvalidCredential, args.Subject)
	}

	issuer := did.KeyIDToDID(args.IssuerKeyID)
	if !isDID(issuer) {
		return nil, fmt.Errorf("%w: issuer key %q is not a DID key", ErrInvalidCredential, args.IssuerKeyID)
	}

	p, err := proof.New(args.IssuerKeyID, args.Issued)
	if err != nil {
		return nil, err
	}

	claim := make(map[string]interface{}, len(args.Claim)+1)
	for k, v := range args.Claim {
		claim[k] = v
	}

	claim["id"] = args.Subject

	expires := args.Expires
	if expires.IsZero() {
		expires = args.Issued.Add(defaultValidity)
	}

	return &SignedCredential{
		Context: append(linkeddata.CredentialContext(), args.Metadata.Context...),
		ID:      uuid.New().URN(),
		Name:    args.Metadata.Name,
		Issuer:  issuer,
		Type:    append([]string{BaseType}, args.Metadata.Type...),
		Claim:   claim,
		Issued:  proof.FormatTime(args.Issued),
		Expires: proof.FormatTime(expires),
		Proof:   p,
	}, nil
}

// Parse decodes a signed credential and checks that issuer, subject and signer line up.
func Parse(raw []byte) (*SignedCredential, error) {
	c := &SignedCredential{}

	err := json.Unmarshal(raw, c)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredential, err)
	}

	if !isDID(c.Issuer) {
		return nil, fmt.Errorf("%w: issuer %q is not a DID", ErrInvalidCredential, c.Issuer)
	}

	if !isDID(c.Subject()) {
		return nil, fmt.Errorf("%w: claim has no DID subject", ErrInvalidCredential)
	}

	if c.Proof == nil {
		return nil, fmt.Errorf("%w: credential has no proof", ErrInvalidCredential)
	}

	if c.Signer().DID != c.Issuer {
		return nil, fmt.Errorf("%w: signed by %s on behalf of %s", ErrInvalidCredential, c.Proof.Creator, c.Issuer)
	}

	return c, nil
}

// Subject returns the DID the claim is about.
func (c *SignedCredential) Subject() string {
	s, _ := c.Claim["id"].(string) //nolint:errcheck

	return s
}

// Signer returns the DID and key id of the proof creator.
func (c *SignedCredential) Signer() proof.Signer {
	if c.Proof == nil {
		return proof.Signer{}
	}

	return c.Proof.Signer()
}

// Signature returns the hex signature value of the proof.
func (c *SignedCredential) Signature() string {
	if c.Proof == nil {
		return ""
	}

	return c.Proof.SignatureValue
}

// ExpiresAt parses the expiry; the zero time means the credential does not expire.
func (c *SignedCredential) ExpiresAt() (time.Time, error) {
	if c.Expires == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(proof.TimeFormat, c.Expires)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: expires: %s", ErrInvalidCredential, err)
	}

	return t, nil
}

// Digest returns the linked-data digest of the credential under its own context.
func (c *SignedCredential) Digest(opts ...linkeddata.Option) ([]byte, error) {
	if c.Proof == nil {
		return nil, fmt.Errorf("%w: credential has no proof", ErrInvalidCredential)
	}

	m, err := linkeddata.ToMap(c)
	if err != nil {
		return nil, err
	}

	return linkeddata.Digest(m, c.Context, opts...)
}

// WithProof returns a copy of the credential carrying p.
func (c *SignedCredential) WithProof(p *proof.Proof) *SignedCredential {
	cp := *c

	pc := *p
	cp.Proof = &pc

	return &cp
}

// Clone returns a deep copy of the credential.
func (c *SignedCredential) Clone() *SignedCredential {
	raw, err := json.Marshal(c)
	if err != nil {
		cp := *c

		return &cp
	}

	cp := &SignedCredential{}

	if json.Unmarshal(raw, cp) != nil {
		cp := *c

		return &cp
	}

	return cp
}

// JSONBytes returns the JSON form of the credential.
func (c *SignedCredential) JSONBytes() ([]byte, error) {
	return json.Marshal(c)
}

// HasType reports whether typ is one of the credential's types.
func (c *SignedCredential) HasType(typ string) bool {
	for _, t := range c.Type {
		if t == typ {
			return true
		}
	}

	return false
}

func isDID(s string) bool {
	return strings.HasPrefix(s, "did:") && !strings.Contains(s, "#")
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proof

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/trustbloc/didtrust/pkg/trustutils"
)

const (
	// Type is the signature suite of linked-data proofs.
	Type = "EcdsaKoblitzSignature2016"
	// TimeFormat is the layout of every timestamp in signed documents.
	TimeFormat = "2006-01-02T15:04:05.000Z"

	nonceSize = 8
)

// Proof is the signature metadata attached to a signed document.
// SignatureValue is empty until the document has been signed.
type Proof struct {
	Type           string `json:"type"`
	Creator        string `json:"creator"`
	Created        string `json:"created"`
	Nonce          string `json:"nonce"`
	SignatureValue string `json:"signatureValue"`
}

// Signer identifies who produced a signature.
type Signer struct {
	DID   string
	KeyID string
}

// New returns an unsigned proof created by the key creator, with a fresh random nonce.
func New(creator string, created time.Time) (*Proof, error) {
	nonce, err := trustutils.RandomHex(nonceSize)
	if err != nil {
		return nil, fmt.Errorf("generate proof nonce: %w", err)
	}

	return &Proof{
		Type:    Type,
		Creator: creator,
		Created: FormatTime(created),
		Nonce:   nonce,
	}, nil
}

// Signer returns the DID and key id named by the proof's creator.
func (p *Proof) Signer() Signer {
	return Signer{DID: strings.SplitN(p.Creator, "#", 2)[0], KeyID: p.Creator}
}

// Signature decodes the hex signature value.
func (p *Proof) Signature() ([]byte, error) {
	if p.SignatureValue == "" {
		return nil, fmt.Errorf("proof by %s is not signed", p.Creator)
	}

	return hex.DecodeString(p.SignatureValue)
}

// WithSignature returns a copy of the proof carrying signature.
func (p Proof) WithSignature(signature []byte) *Proof {
	p.SignatureValue = hex.EncodeToString(signature)

	return &p
}

// FormatTime renders t the way signed documents store timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package interaction

import (
	"encoding/json"
	"fmt"

	"github.com/trustbloc/didtrust/pkg/doc/credential"
)

// Type tags the payload carried by a token.
type Type string

// Interaction types.
const (
	TypeAuthentication          Type = "authentication"
	TypeCredentialRequest       Type = "credentialRequest"
	TypeCredentialResponse      Type = "credentialResponse"
	TypeCredentialOfferRequest  Type = "credentialOfferRequest"
	TypeCredentialOfferResponse Type = "credentialOfferResponse"
	TypeCredentialsReceive      Type = "credentialsReceive"
	TypePaymentRequest          Type = "paymentRequest"
	TypePaymentResponse         Type = "paymentResponse"
)

// Payload is the body of an interaction token.
type Payload interface {
	InteractionType() Type
}

// Authentication asks the receiver to prove control of its DID.
type Authentication struct {
	Challenge   string `json:"challenge"`
	CallbackURL string `json:"callbackURL"`
}

// CredentialRequirement names a credential type and optional constraints on it.
type CredentialRequirement struct {
	Type        []string          `json:"type"`
	Constraints []json.RawMessage `json:"constraints"`
}

// CredentialRequest asks for credentials of the listed types.
type CredentialRequest struct {
	CallbackURL            string                  `json:"callbackURL"`
	CredentialRequirements []CredentialRequirement `json:"credentialRequirements"`
}

// CredentialResponse supplies credentials answering a CredentialRequest.
type CredentialResponse struct {
	SuppliedCredentials []*credential.SignedCredential `json:"suppliedCredentials"`
}

// CredentialOffer is one credential an issuer is willing to hand out.
type CredentialOffer struct {
	Type           string                 `json:"type"`
	RequestedInput map[string]interface{} `json:"requestedInput,omitempty"`
	RenderInfo     map[string]interface{} `json:"renderInfo,omitempty"`
}

// CredentialOfferRequest lists the credentials an issuer offers.
type CredentialOfferRequest struct {
	CallbackURL        string            `json:"callbackURL"`
	OfferedCredentials []CredentialOffer `json:"offeredCredentials"`
}

// CredentialOfferSelection is an offer picked by the holder, with any input the issuer asked for.
type CredentialOfferSelection struct {
	Type          string                 `json:"type"`
	ProvidedInput map[string]interface{} `json:"providedInput,omitempty"`
}

// CredentialOfferResponse selects from a CredentialOfferRequest.
type CredentialOfferResponse struct {
	CallbackURL         string                     `json:"callbackURL"`
	SelectedCredentials []CredentialOfferSelection `json:"selectedCredentials"`
}

// CredentialsReceive delivers issued credentials.
type CredentialsReceive struct {
	SignedCredentials []*credential.SignedCredential `json:"signedCredentials"`
}

// TransactionOptions describe a requested ledger payment. Amounts are decimal strings in wei.
type TransactionOptions struct {
	To       string `json:"to,omitempty"`
	Value    string `json:"value"`
	GasLimit uint64 `json:"gasLimit,omitempty"`
	GasPrice string `json:"gasPrice,omitempty"`
}

// PaymentRequest asks the receiver to make a payment.
type PaymentRequest struct {
	CallbackURL        string             `json:"callbackURL"`
	Description        string             `json:"description"`
	TransactionOptions TransactionOptions `json:"transactionOptions"`
}

// PaymentResponse reports the transaction that settled a PaymentRequest.
type PaymentResponse struct {
	TxHash string `json:"txHash"`
}

// InteractionType implements Payload.
func (Authentication) InteractionType() Type { return TypeAuthentication }

// InteractionType implements Payload.
func (CredentialRequest) InteractionType() Type { return TypeCredentialRequest }

// InteractionType implements Payload.
func (CredentialResponse) InteractionType() Type { return TypeCredentialResponse }

// InteractionType implements Payload.
func (CredentialOfferRequest) InteractionType() Type { return TypeCredentialOfferRequest }

// InteractionType implements Payload.
func (CredentialOfferResponse) InteractionType() Type { return TypeCredentialOfferResponse }

// InteractionType implements Payload.
func (CredentialsReceive) InteractionType() Type { return TypeCredentialsReceive }

// InteractionType implements Payload.
func (PaymentRequest) InteractionType() Type { return TypePaymentRequest }

// InteractionType implements Payload.
func (PaymentResponse) InteractionType() Type { return TypePaymentResponse }

// ParsePayload decodes raw as the payload record of typ.
func ParsePayload(typ Type, raw []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)

	switch typ {
	case TypeAuthentication:
		p, err = decode(raw, &Authentication{})
	case TypeCredentialRequest:
		p, err = decode(raw, &CredentialRequest{})
	case TypeCredentialResponse:
		p, err = decode(raw, &CredentialResponse{})
	case TypeCredentialOfferRequest:
		p, err = decode(raw, &CredentialOfferRequest{})
	case TypeCredentialOfferResponse:
		p, err = decode(raw, &CredentialOfferResponse{})
	case TypeCredentialsReceive:
		p, err = decode(raw, &CredentialsReceive{})
	case TypePaymentRequest:
		p, err = decode(raw, &PaymentRequest{})
	case TypePaymentResponse:
		p, err = decode(raw, &PaymentResponse{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownInteractionType, typ)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s payload: %s", ErrInvalidToken, typ, err)
	}

	return p, nil
}

func decode(raw []byte, v Payload) (Payload, error) {
	return v, json.Unmarshal(raw, v)
}

// RequestedTypes lists the credential types asked for.
func (r *CredentialRequest) RequestedTypes() [][]string {
	types := make([][]string, 0, len(r.CredentialRequirements))

	for _, req := range r.CredentialRequirements {
		types = append(types, req.Type)
	}

	return types
}

// SatisfiesRequest reports whether every requirement of req is met by at least one supplied
// credential of exactly the required type. Constraints are not evaluated.
func (r *CredentialResponse) SatisfiesRequest(req *CredentialRequest) bool {
	for _, want := range req.RequestedTypes() {
		found := false

		for _, c := range r.SuppliedCredentials {
			if c != nil && sameTypes(c.Type, want) {
				found = true

				break
			}
		}

		if !found {
			return false
		}
	}

	return true
}

func sameTypes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package interaction issues and validates signed interaction tokens.
//
// A token wraps one typed payload in a JWS compact envelope signed with ES256K. Requests carry a
// fresh random nonce (the jti claim); responses copy the request's nonce and address the
// requester through the aud claim. Timestamps are milliseconds since the Unix epoch.
package interaction

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/square/go-jose"
	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/didtrust/pkg/doc/did"
	"github.com/trustbloc/didtrust/pkg/doc/proof"
	"github.com/trustbloc/didtrust/pkg/trusterrors"
	"github.com/trustbloc/didtrust/pkg/trustutils"
)

const (
	logModuleName = "didtrust/interaction"

	// Algorithm is the JWS algorithm of interaction tokens.
	Algorithm = "ES256K"
	// TokenType is the typ header of interaction tokens.
	TokenType = "JWT"
	// DefaultExpiry is how long a token stays valid unless WithExpiry says otherwise.
	DefaultExpiry = time.Hour

	nonceSize = 16
)

var logger = log.New(logModuleName)

var (
	// ErrInvalidToken is returned for tokens that cannot be built or decoded.
	ErrInvalidToken = trusterrors.New(trusterrors.Validation, "invalid interaction token")
	// ErrUnknownInteractionType is returned for an unrecognized typ claim.
	ErrUnknownInteractionType = trusterrors.New(trusterrors.Validation, "unknown interaction type")
)

// SignFunc signs a 32-byte digest and returns the 64-byte r||s signature.
type SignFunc func(digest []byte) ([]byte, error)

// Header is the protected JWS header.
type Header struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ"`
}

// Claims is the JWS payload.
type Claims struct {
	InteractionToken json.RawMessage `json:"interactionToken"`
	Type             Type            `json:"typ"`
	Issuer           string          `json:"iss"`
	Audience         string          `json:"aud,omitempty"`
	Expiry           int64           `json:"exp"`
	IssuedAt         int64           `json:"iat"`
	Nonce            string          `json:"jti"`
}

// Token is a signed interaction token.
type Token struct {
	Header    Header
	Claims    Claims
	Signature []byte
}

type issueOptions struct {
	expiry   time.Time
	audience string
	prior    *Token
	clock    func() time.Time
}

// IssueOption configures Issue.
type IssueOption func(opts *issueOptions)

// WithExpiry sets the expiry of the token.
func WithExpiry(expiry time.Time) IssueOption {
	return func(opts *issueOptions) {
		opts.expiry = expiry
	}
}

// WithAudience addresses a request to did. Ignored for responses.
func WithAudience(did string) IssueOption {
	return func(opts *issueOptions) {
		opts.audience = did
	}
}

// InResponseTo makes the token a response to request: the nonce is copied and the audience is
// the request's issuer.
func InResponseTo(request *Token) IssueOption {
	return func(opts *issueOptions) {
		opts.prior = request
	}
}

// WithClock overrides the issuance time source.
func WithClock(clock func() time.Time) IssueOption {
	return func(opts *issueOptions) {
		opts.clock = clock
	}
}

// Issue builds a token carrying payload, issued by issuerKeyID and signed with sign.
func Issue(payload Payload, issuerKeyID string, sign SignFunc, opts ...IssueOption) (*Token, error) {
	o := &issueOptions{clock: time.Now}

	for _, opt := range opts {
		opt(o)
	}

	if payload == nil {
		return nil, fmt.Errorf("%w: no payload", ErrInvalidToken)
	}

	if !strings.HasPrefix(issuerKeyID, "did:") || !strings.Contains(issuerKeyID, "#") {
		return nil, fmt.Errorf("%w: issuer %q is not a key id", ErrInvalidToken, issuerKeyID)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal payload: %s", ErrInvalidToken, err)
	}

	now := o.clock()

	expiry := o.expiry
	if expiry.IsZero() {
		expiry = now.Add(DefaultExpiry)
	}

	claims := Claims{
		InteractionToken: raw,
		Type:             payload.InteractionType(),
		Issuer:           issuerKeyID,
		Audience:         o.audience,
		Expiry:           expiry.UnixMilli(),
		IssuedAt:         now.UnixMilli(),
	}

	if o.prior != nil {
		claims.Nonce = o.prior.Claims.Nonce
		claims.Audience = o.prior.Signer().DID
	} else {
		claims.Nonce, err = trustutils.RandomHex(nonceSize)
		if err != nil {
			return nil, fmt.Errorf("generate token nonce: %w", err)
		}
	}

	signature, err := signClaims(&claims, sign)
	if err != nil {
		return nil, err
	}

	logger.Debugf("issued %s token %s by %s", claims.Type, claims.Nonce, claims.Issuer)

	return &Token{
		Header:    Header{Algorithm: Algorithm, Type: TokenType},
		Claims:    claims,
		Signature: signature,
	}, nil
}

func signClaims(claims *Claims, sign SignFunc) ([]byte, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal claims: %s", ErrInvalidToken, err)
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: Algorithm, Key: &digestSigner{sign: sign}},
		(&jose.SignerOptions{}).WithType(TokenType),
	)
	if err != nil {
		return nil, fmt.Errorf("create token signer: %w", err)
	}

	jws, err := signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return jws.Signatures[0].Signature, nil
}

// digestSigner adapts a SignFunc to jose.OpaqueSigner.
type digestSigner struct {
	sign SignFunc
}

func (s *digestSigner) Public() *jose.JSONWebKey {
	return nil
}

func (s *digestSigner) Algs() []jose.SignatureAlgorithm {
	return []jose.SignatureAlgorithm{Algorithm}
}

func (s *digestSigner) SignPayload(payload []byte, _ jose.SignatureAlgorithm) ([]byte, error) {
	digest := sha256.Sum256(payload)

	return s.sign(digest[:])
}

// Parse decodes a JWS compact token. The signature is not checked; use Validate.
func Parse(compact string) (*Token, error) {
	jws, err := jose.ParseSigned(compact)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	if len(jws.Signatures) != 1 {
		return nil, fmt.Errorf("%w: expected one signature, got %d", ErrInvalidToken, len(jws.Signatures))
	}

	sig := jws.Signatures[0]

	if sig.Header.Algorithm != Algorithm {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidToken, sig.Header.Algorithm)
	}

	typ, _ := sig.Header.ExtraHeaders[jose.HeaderType].(string) //nolint:errcheck

	t := &Token{
		Header:    Header{Algorithm: sig.Header.Algorithm, Type: typ},
		Signature: sig.Signature,
	}

	err = json.Unmarshal(jws.UnsafePayloadWithoutVerification(), &t.Claims)
	if err != nil {
		return nil, fmt.Errorf("%w: claims: %s", ErrInvalidToken, err)
	}

	if t.Claims.Issuer == "" || t.Claims.Nonce == "" {
		return nil, fmt.Errorf("%w: missing iss or jti", ErrInvalidToken)
	}

	_, err = t.Payload()
	if err != nil {
		return nil, err
	}

	return t, nil
}

// Encode returns the JWS compact form.
func (t *Token) Encode() (string, error) {
	input, err := t.signingInput()
	if err != nil {
		return "", err
	}

	return input + "." + base64.RawURLEncoding.EncodeToString(t.Signature), nil
}

// Digest returns the sha256 of the JWS signing input, recomputed from the current header and
// claims.
func (t *Token) Digest() ([]byte, error) {
	input, err := t.signingInput()
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(input))

	return sum[:], nil
}

func (t *Token) signingInput() (string, error) {
	header, err := json.Marshal(t.Header)
	if err != nil {
		return "", fmt.Errorf("%w: marshal header: %s", ErrInvalidToken, err)
	}

	claims, err := json.Marshal(t.Claims)
	if err != nil {
		return "", fmt.Errorf("%w: marshal claims: %s", ErrInvalidToken, err)
	}

	return base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(claims), nil
}

// Payload decodes the interaction payload.
func (t *Token) Payload() (Payload, error) {
	return ParsePayload(t.Claims.Type, t.Claims.InteractionToken)
}

// Signer returns the issuer DID and key id.
func (t *Token) Signer() proof.Signer {
	return proof.Signer{DID: did.KeyIDToDID(t.Claims.Issuer), KeyID: t.Claims.Issuer}
}

// Nonce returns the jti claim.
func (t *Token) Nonce() string {
	return t.Claims.Nonce
}

// Audience returns the DID the token is addressed to, if any.
func (t *Token) Audience() string {
	return t.Claims.Audience
}

// ExpiresAt returns the expiry.
func (t *Token) ExpiresAt() time.Time {
	return time.UnixMilli(t.Claims.Expiry)
}

// IssuedAt returns the issuance time.
func (t *Token) IssuedAt() time.Time {
	return time.UnixMilli(t.Claims.IssuedAt)
}

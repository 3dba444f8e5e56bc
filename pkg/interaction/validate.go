/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package interaction

import (
	"context"
	"fmt"
	"time"

	"github.com/trustbloc/didtrust/pkg/identity"
	"github.com/trustbloc/didtrust/pkg/trusterrors"
	"github.com/trustbloc/didtrust/pkg/vault"
)

var (
	// ErrUnknownIssuer is returned when the issuer or its key cannot be resolved.
	ErrUnknownIssuer = trusterrors.New(trusterrors.Protocol, "token issuer could not be resolved")
	// ErrInvalidSignature is returned when the token signature does not verify.
	ErrInvalidSignature = trusterrors.New(trusterrors.Cryptographic, "token signature is invalid")
	// ErrExpired is returned for tokens past their expiry.
	ErrExpired = trusterrors.New(trusterrors.Protocol, "token expired")
	// ErrWrongResponder is returned when a response is not addressed to the requester.
	ErrWrongResponder = trusterrors.New(trusterrors.Protocol, "response is not addressed to the requester")
	// ErrNonceMismatch is returned when a response does not echo the request nonce.
	ErrNonceMismatch = trusterrors.New(trusterrors.Protocol, "response nonce does not match the request")
	// ErrNotIntendedAudience is returned when a request is addressed to someone else.
	ErrNotIntendedAudience = trusterrors.New(trusterrors.Protocol, "token is addressed to another identity")
)

// IdentityResolver resolves a DID to a verified identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, did string) (identity.Identity, error)
}

type validateOptions struct {
	sent    *Token
	selfDID string
	clock   func() time.Time
}

// ValidateOption configures Validate.
type ValidateOption func(opts *validateOptions)

// WithSentToken validates the received token as a response to sent.
func WithSentToken(sent *Token) ValidateOption {
	return func(opts *validateOptions) {
		opts.sent = sent
	}
}

// WithSelfDID sets the validator's own DID, checked against the audience of requests.
func WithSelfDID(did string) ValidateOption {
	return func(opts *validateOptions) {
		opts.selfDID = did
	}
}

// WithValidationClock overrides the time source used for the expiry check.
func WithValidationClock(clock func() time.Time) ValidateOption {
	return func(opts *validateOptions) {
		opts.clock = clock
	}
}

// Validate checks, in order: the issuer resolves, the signature verifies against the issuer's
// key, the token has not expired and, for a response, that it answers sent, or for a request,
// that it is addressed to the validator. The first failure is returned.
func Validate(ctx context.Context, received *Token, resolver IdentityResolver, opts ...ValidateOption) error {
	o := &validateOptions{clock: time.Now}

	for _, opt := range opts {
		opt(o)
	}

	err := validate(ctx, received, resolver, o)
	if err != nil {
		logger.Debugf("rejected %s token %s from %s: %s", received.Claims.Type, received.Claims.Nonce,
			received.Claims.Issuer, err)

		return err
	}

	return nil
}

func validate(ctx context.Context, received *Token, resolver IdentityResolver, o *validateOptions) error {
	signer := received.Signer()

	issuer, err := resolver.Resolve(ctx, signer.DID)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnknownIssuer, signer.DID, err)
	}

	key, err := issuer.PublicKey(signer.KeyID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnknownIssuer, err)
	}

	pub, err := key.Bytes()
	if err != nil {
		return fmt.Errorf("%w: key %s: %s", ErrUnknownIssuer, key.ID, err)
	}

	digest, err := received.Digest()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	if !vault.Verify(digest, pub, received.Signature) {
		return ErrInvalidSignature
	}

	if o.clock().After(received.ExpiresAt()) {
		return fmt.Errorf("%w: at %s", ErrExpired, received.ExpiresAt().UTC().Format(time.RFC3339))
	}

	if o.sent != nil {
		if received.Claims.Audience != o.sent.Signer().DID {
			return fmt.Errorf("%w: addressed to %q", ErrWrongResponder, received.Claims.Audience)
		}

		if received.Claims.Nonce != o.sent.Claims.Nonce {
			return ErrNonceMismatch
		}

		return nil
	}

	if received.Claims.Audience != "" && received.Claims.Audience != o.selfDID {
		return fmt.Errorf("%w: addressed to %s", ErrNotIntendedAudience, received.Claims.Audience)
	}

	return nil
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package resolver turns a DID into a verified identity.
//
// Documents come from a Registry collaborator. A document is only trusted once its self-proof
// verifies against the key the document itself names, and that key is the one the DID is
// derived from. A public profile credential is verified
// against the same identity; a profile that fails verification is dropped and resolution still
// succeeds.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/piprate/json-gold/ld"
	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/didtrust/pkg/doc/credential"
	"github.com/trustbloc/didtrust/pkg/doc/did"
	"github.com/trustbloc/didtrust/pkg/identity"
	"github.com/trustbloc/didtrust/pkg/linkeddata"
	"github.com/trustbloc/didtrust/pkg/trusterrors"
	"github.com/trustbloc/didtrust/pkg/vault"
)

const logModuleName = "didtrust/resolver"

var logger = log.New(logModuleName)

var (
	// ErrDidNotAnchored is returned when the registry cannot produce a document. The registry's
	// error is wrapped alongside it.
	ErrDidNotAnchored = trusterrors.New(trusterrors.Resolution, "DID is not anchored")
	// ErrDocumentMismatch is returned when the registry answers with a document for another DID.
	ErrDocumentMismatch = trusterrors.New(trusterrors.Resolution, "registry returned a document for another DID")
	// ErrInvalidSignature is returned when a document or credential signature does not verify.
	ErrInvalidSignature = trusterrors.New(trusterrors.Cryptographic, "signature is invalid")
	// ErrUncontrolledDocument is returned when a document is not signed by the key its DID is
	// derived from.
	ErrUncontrolledDocument = trusterrors.New(trusterrors.Cryptographic, "document is not signed by its controlling key")
	// ErrCredentialExpired is returned by ValidateCredential for expired credentials.
	ErrCredentialExpired = trusterrors.New(trusterrors.Validation, "credential expired")
)

// Registry fetches anchored documents. GetPublicProfile returns nil, nil when the document
// has no profile.
type Registry interface {
	Resolve(ctx context.Context, did string) ([]byte, error)
	GetPublicProfile(ctx context.Context, docRecord []byte) ([]byte, error)
}

// IdentityResolver resolves a DID to a verified identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, did string) (identity.Identity, error)
}

// Option configures a Resolver.
type Option func(opts *Resolver)

// WithDocumentLoader sets the loader for remote contexts referenced by credentials.
func WithDocumentLoader(loader ld.DocumentLoader) Option {
	return func(opts *Resolver) {
		opts.ldOpts = append(opts.ldOpts, linkeddata.WithDocumentLoader(loader))
	}
}

// Resolver verifies documents fetched from a Registry.
type Resolver struct {
	registry Registry
	ldOpts   []linkeddata.Option
}

// New returns a Resolver reading from registry.
func New(registry Registry, opts ...Option) *Resolver {
	r := &Resolver{registry: registry}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve fetches and verifies the document of id, and its public profile if it has one.
func (r *Resolver) Resolve(ctx context.Context, id string) (identity.Identity, error) {
	if r.registry == nil {
		return identity.Identity{}, fmt.Errorf("%w: %s: no registry configured", ErrDidNotAnchored, id)
	}

	raw, err := r.registry.Resolve(ctx, id)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %s: %w", ErrDidNotAnchored, id, err)
	}

	doc, err := did.Parse(raw)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("resolve %s: %w", id, err)
	}

	if doc.ID != id {
		return identity.Identity{}, fmt.Errorf("%w: asked for %s, got %s", ErrDocumentMismatch, id, doc.ID)
	}

	err = VerifyDocument(doc, r.ldOpts...)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("resolve %s: %w", id, err)
	}

	err = VerifyController(doc)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("resolve %s: %w", id, err)
	}

	resolved := identity.New(doc, nil)

	profile, err := r.publicProfile(ctx, raw, resolved)
	if err != nil {
		logger.Warnf("dropping public profile of %s: %s", id, err)

		return resolved, nil
	}

	if profile != nil {
		resolved = resolved.WithPublicProfile(profile)
	}

	logger.Debugf("resolved %s", id)

	return resolved, nil
}

func (r *Resolver) publicProfile(ctx context.Context, docRecord []byte,
	issuer identity.Identity) (*credential.SignedCredential, error) {
	raw, err := r.registry.GetPublicProfile(ctx, docRecord)
	if err != nil {
		return nil, err
	}

	if raw == nil {
		return nil, nil
	}

	profile, err := credential.Parse(raw)
	if err != nil {
		return nil, err
	}

	if profile.Subject() != issuer.DID() {
		return nil, fmt.Errorf("profile is about %s", profile.Subject())
	}

	err = VerifyCredential(profile, issuer, r.ldOpts...)
	if err != nil {
		return nil, err
	}

	return profile, nil
}

// VerifyDocument checks that doc is self-consistent and that its proof verifies against the
// document's own signing key.
func VerifyDocument(doc *did.Document, opts ...linkeddata.Option) error {
	err := doc.Validate()
	if err != nil {
		return err
	}

	key, err := doc.SigningKey()
	if err != nil {
		return err
	}

	return verify(doc.Digest, doc.Proof.Signature, key, opts)
}

// VerifyController checks that a did:jolo document is signed by the key its DID is derived
// from. Documents of other methods are not checked.
func VerifyController(doc *did.Document) error {
	if !strings.HasPrefix(doc.ID, "did:"+did.Method+":") {
		return nil
	}

	key, err := doc.SigningKey()
	if err != nil {
		return err
	}

	pub, err := key.Bytes()
	if err != nil {
		return fmt.Errorf("%w: key %s: %s", ErrUncontrolledDocument, key.ID, err)
	}

	if did.PublicKeyToDID(pub) != doc.ID {
		return fmt.Errorf("%w: %s is not derived from %s", ErrUncontrolledDocument, doc.ID, key.ID)
	}

	return nil
}

// VerifyCredential checks that cred was signed by one of issuer's keys.
func VerifyCredential(cred *credential.SignedCredential, issuer identity.Identity, opts ...linkeddata.Option) error {
	signer := cred.Signer()

	if signer.DID == "" || signer.DID != issuer.DID() {
		return fmt.Errorf("%w: signed by %q, expected %s", ErrInvalidSignature, signer.DID, issuer.DID())
	}

	key, err := issuer.PublicKey(signer.KeyID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	return verify(cred.Digest, cred.Proof.Signature, key, opts)
}

// ValidateCredential resolves the issuer of cred, verifies its signature and checks that it
// has not expired at the given time.
func ValidateCredential(ctx context.Context, cred *credential.SignedCredential, resolver IdentityResolver,
	at time.Time, opts ...linkeddata.Option) error {
	issuer, err := resolver.Resolve(ctx, cred.Issuer)
	if err != nil {
		return err
	}

	err = VerifyCredential(cred, issuer, opts...)
	if err != nil {
		return err
	}

	expires, err := cred.ExpiresAt()
	if err != nil {
		return err
	}

	if !expires.IsZero() && at.After(expires) {
		return fmt.Errorf("%w: %s expired at %s", ErrCredentialExpired, cred.ID, cred.Expires)
	}

	return nil
}

func verify(digestFn func(...linkeddata.Option) ([]byte, error), signatureFn func() ([]byte, error),
	key *did.PublicKey, opts []linkeddata.Option) error {
	pub, err := key.Bytes()
	if err != nil {
		return fmt.Errorf("%w: key %s: %s", ErrInvalidSignature, key.ID, err)
	}

	sig, err := signatureFn()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}

	digest, err := digestFn(opts...)
	if err != nil {
		return err
	}

	if !vault.Verify(digest, pub, sig) {
		return fmt.Errorf("%w: by %s", ErrInvalidSignature, key.ID)
	}

	return nil
}

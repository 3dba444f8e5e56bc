/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package registry anchors DID documents and their public profiles in an Aries storage provider.
//
// Documents are keyed by DID. Profiles are content-addressed: the public profile service entry of
// a document points at ipfs://<content id> and the profile is stored under that content id.
// Everything is verified before it is stored.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/didtrust/pkg/doc/credential"
	"github.com/trustbloc/didtrust/pkg/doc/did"
	"github.com/trustbloc/didtrust/pkg/identity"
	"github.com/trustbloc/didtrust/pkg/resolver"
	"github.com/trustbloc/didtrust/pkg/trusterrors"
	"github.com/trustbloc/didtrust/pkg/trustutils"
)

const (
	logModuleName = "didtrust/registry"

	documentsStoreName = "documents"
	profilesStoreName  = "profiles"

	anchoredTagName = "anchored"

	// ContentScheme prefixes public profile service endpoints.
	ContentScheme = "ipfs://"
)

var logger = log.New(logModuleName)

var (
	// ErrNotFound is returned for unknown DIDs and profiles.
	ErrNotFound = trusterrors.New(trusterrors.Resolution, "not found in registry")
	// ErrInvalidRecord is returned when a document or profile is rejected on anchoring.
	ErrInvalidRecord = trusterrors.New(trusterrors.Validation, "record rejected")
	// ErrUnauthorizedUpdate is returned when a document is not signed by a key the DID vouches for.
	ErrUnauthorizedUpdate = trusterrors.New(trusterrors.Cryptographic, "document is not signed by a controlling key")
)

// Option configures a Registry.
type Option func(opts *options)

type options struct {
	prefix string
}

// WithStorePrefix prefixes the names of the underlying stores.
func WithStorePrefix(prefix string) Option {
	return func(opts *options) {
		opts.prefix = prefix
	}
}

// Registry is a storage-backed DID registry. It implements resolver.Registry.
type Registry struct {
	documents storage.Store
	profiles  storage.Store
}

// New opens the registry stores in provider.
func New(provider storage.Provider, opts ...Option) (*Registry, error) {
	o := &options{}

	for _, opt := range opts {
		opt(o)
	}

	documentsName := o.prefix + documentsStoreName

	documents, err := provider.OpenStore(documentsName)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", documentsName, err)
	}

	err = provider.SetStoreConfig(documentsName, storage.StoreConfiguration{TagNames: []string{anchoredTagName}})
	if err != nil {
		return nil, fmt.Errorf("failed to set %s store configuration: %w", documentsName, err)
	}

	profiles, err := provider.OpenStore(o.prefix + profilesStoreName)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", o.prefix+profilesStoreName, err)
	}

	return &Registry{documents: documents, profiles: profiles}, nil
}

// Anchor verifies and stores a signed DID document and, optionally, its public profile.
//
// The first anchor of a DID must be signed by the key the DID is derived from. Later anchors
// must be signed by a key of the currently anchored document.
func (r *Registry) Anchor(ctx context.Context, docRecord, profileRecord []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc, err := did.Parse(docRecord)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	err = resolver.VerifyDocument(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	err = r.checkController(doc)
	if err != nil {
		return err
	}

	if profileRecord != nil {
		err = r.putProfile(doc, profileRecord)
		if err != nil {
			return err
		}
	}

	err = r.documents.Put(doc.ID, docRecord, storage.Tag{Name: anchoredTagName})
	if err != nil {
		return fmt.Errorf("failed to store document %s: %w", doc.ID, err)
	}

	logger.Infof("anchored %s", doc.ID)

	return nil
}

func (r *Registry) checkController(doc *did.Document) error {
	signingKey, err := doc.SigningKey()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	current, err := r.documents.Get(doc.ID)

	switch {
	case errors.Is(err, storage.ErrDataNotFound):
		pub, errKey := signingKey.Bytes()
		if errKey != nil {
			return fmt.Errorf("%w: %s", ErrInvalidRecord, errKey)
		}

		if did.PublicKeyToDID(pub) != doc.ID {
			return fmt.Errorf("%w: %s is not derived from %s", ErrUnauthorizedUpdate, doc.ID, signingKey.ID)
		}

		return nil
	case err != nil:
		return fmt.Errorf("failed to read document %s: %w", doc.ID, err)
	}

	anchored, err := did.Parse(current)
	if err != nil {
		return fmt.Errorf("failed to parse anchored document %s: %w", doc.ID, err)
	}

	controller, err := anchored.PublicKeyByID(signingKey.ID)
	if err != nil || controller.PublicKeyHex != signingKey.PublicKeyHex {
		return fmt.Errorf("%w: %s is not a key of the anchored document", ErrUnauthorizedUpdate, signingKey.ID)
	}

	return nil
}

func (r *Registry) putProfile(doc *did.Document, profileRecord []byte) error {
	profile, err := credential.Parse(profileRecord)
	if err != nil {
		return fmt.Errorf("%w: profile: %w", ErrInvalidRecord, err)
	}

	if profile.Subject() != doc.ID {
		return fmt.Errorf("%w: profile is about %s", ErrInvalidRecord, profile.Subject())
	}

	err = resolver.VerifyCredential(profile, identity.New(doc, nil))
	if err != nil {
		return fmt.Errorf("%w: profile: %w", ErrInvalidRecord, err)
	}

	contentID := trustutils.ContentID(profileRecord)

	service, ok := doc.PublicProfileService()
	if !ok || service.ServiceEndpoint != ContentScheme+contentID {
		return fmt.Errorf("%w: document does not point at profile %s", ErrInvalidRecord, contentID)
	}

	err = r.profiles.Put(contentID, profileRecord)
	if err != nil {
		return fmt.Errorf("failed to store profile %s: %w", contentID, err)
	}

	return nil
}

// Resolve returns the anchored document of id.
func (r *Registry) Resolve(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := r.documents.Get(id)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}

		return nil, fmt.Errorf("failed to read document %s: %w", id, err)
	}

	return raw, nil
}

// GetPublicProfile returns the profile the document points at, or nil when it has none.
func (r *Registry) GetPublicProfile(ctx context.Context, docRecord []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := did.Parse(docRecord)
	if err != nil {
		return nil, err
	}

	service, ok := doc.PublicProfileService()
	if !ok {
		return nil, nil
	}

	return r.Profile(ctx, strings.TrimPrefix(service.ServiceEndpoint, ContentScheme))
}

// Profile returns the profile stored under contentID.
func (r *Registry) Profile(ctx context.Context, contentID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err := trustutils.CheckContentID(contentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	raw, err := r.profiles.Get(contentID)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, fmt.Errorf("%w: profile %s", ErrNotFound, contentID)
		}

		return nil, fmt.Errorf("failed to read profile %s: %w", contentID, err)
	}

	if trustutils.ContentID(raw) != contentID {
		return nil, fmt.Errorf("%w: profile %s does not match its content id", ErrInvalidRecord, contentID)
	}

	return raw, nil
}

// Identifiers lists the anchored DIDs.
func (r *Registry) Identifiers(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	iterator, err := r.documents.Query(anchoredTagName)
	if err != nil {
		return nil, fmt.Errorf("failed to query anchored documents: %w", err)
	}

	defer storage.Close(iterator, logger)

	var ids []string

	more, err := iterator.Next()
	for ; more && err == nil; more, err = iterator.Next() {
		key, errKey := iterator.Key()
		if errKey != nil {
			return nil, errKey
		}

		ids = append(ids, key)
	}

	if err != nil {
		return nil, err
	}

	return ids, nil
}

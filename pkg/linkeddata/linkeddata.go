/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package linkeddata computes the canonical form and the signing digest of JSON-LD documents.
//
// Documents are normalized with URDNA2015 into N-Quads. The expansion context is supplied by
// the caller and replaces any @context carried by the document itself. Before normalizing, every
// property used by the document is checked against the context, because JSON-LD expansion
// silently drops undefined terms and a dropped field would not be covered by the signature.
package linkeddata

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/piprate/json-gold/ld"
	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/didtrust/pkg/trusterrors"
)

const (
	logModuleName = "didtrust/linkeddata"

	formatNQuads       = "application/n-quads"
	algorithmURDNA2015 = "URDNA2015"

	contextKey        = "@context"
	proofKey          = "proof"
	signatureValueKey = "signatureValue"
)

var logger = log.New(logModuleName)

// ErrCanonicalization is returned when a document cannot be normalized under the given context.
var ErrCanonicalization = trusterrors.New(trusterrors.Validation, "canonicalization failed")

type options struct {
	loader ld.DocumentLoader
}

// Option configures canonicalization.
type Option func(opts *options)

// WithDocumentLoader sets the loader used to dereference remote contexts.
// By default remote contexts are refused.
func WithDocumentLoader(loader ld.DocumentLoader) Option {
	return func(opts *options) {
		opts.loader = loader
	}
}

func getOptions(opts []Option) *options {
	o := &options{loader: NewStaticLoader(nil)}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Canonicalize returns the URDNA2015 N-Quads of doc expanded with context.
func Canonicalize(doc map[string]interface{}, context interface{}, opts ...Option) ([]byte, error) {
	o := getOptions(opts)

	input := without(doc, contextKey)

	err := checkTerms(input, context, o.loader)
	if err != nil {
		return nil, err
	}

	input[contextKey] = context

	ldOpts := ld.NewJsonLdOptions("")
	ldOpts.Format = formatNQuads
	ldOpts.Algorithm = algorithmURDNA2015
	ldOpts.DocumentLoader = o.loader

	normalized, err := ld.NewJsonLdProcessor().Normalize(input, ldOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCanonicalization, err)
	}

	nquads, ok := normalized.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected normalization result %T", ErrCanonicalization, normalized)
	}

	return []byte(nquads), nil
}

// CanonicalizeProof returns the canonical form of a proof with its signature value, id and type removed.
func CanonicalizeProof(proof map[string]interface{}, context interface{}, opts ...Option) ([]byte, error) {
	return Canonicalize(without(proof, signatureValueKey, "id", "type"), context, opts...)
}

// DigestProof returns the sha256 of CanonicalizeProof.
func DigestProof(proof map[string]interface{}, context interface{}, opts ...Option) ([]byte, error) {
	canonical, err := CanonicalizeProof(proof, context, opts...)
	if err != nil {
		return nil, fmt.Errorf("normalize proof: %w", err)
	}

	sum := sha256.Sum256(canonical)

	return sum[:], nil
}

// Digest returns sha256(sha256(proof) || sha256(document)) for a signed document, where the
// proof is canonicalized without its signature and the document without its proof and context.
func Digest(signed map[string]interface{}, context interface{}, opts ...Option) ([]byte, error) {
	proof, ok := signed[proofKey].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: document has no proof", ErrCanonicalization)
	}

	proofDigest, err := DigestProof(proof, context, opts...)
	if err != nil {
		return nil, err
	}

	canonical, err := Canonicalize(without(signed, proofKey), context, opts...)
	if err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}

	logger.Debugf("normalized document: %s", canonical)

	docDigest := sha256.Sum256(canonical)
	sum := sha256.Sum256(append(proofDigest, docDigest[:]...))

	return sum[:], nil
}

// ToMap converts a typed document into its generic JSON object form.
func ToMap(v interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var m map[string]interface{}

	err = json.Unmarshal(b, &m)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func without(m map[string]interface{}, keys ...string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))

	for k, v := range m {
		out[k] = v
	}

	for _, k := range keys {
		delete(out, k)
	}

	return out
}

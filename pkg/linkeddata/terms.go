/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package linkeddata

import (
	"fmt"
	"strings"

	"github.com/piprate/json-gold/ld"
)

const (
	typeKeyword     = "@type"
	blankNodePrefix = "_:"
	maxContextDepth = 8
)

// terms holds what an expansion context defines.
type terms struct {
	defined     map[string]bool
	typeAliases map[string]bool
}

func checkTerms(doc map[string]interface{}, context interface{}, loader ld.DocumentLoader) error {
	t := &terms{defined: map[string]bool{}, typeAliases: map[string]bool{}}

	err := t.add(context, loader, 0)
	if err != nil {
		return err
	}

	return t.check(doc, loader)
}

func (t *terms) add(context interface{}, loader ld.DocumentLoader, depth int) error {
	if depth > maxContextDepth {
		return fmt.Errorf("%w: context nesting is too deep", ErrCanonicalization)
	}

	switch ctx := context.(type) {
	case nil:
		return nil
	case []interface{}:
		for _, entry := range ctx {
			if err := t.add(entry, loader, depth+1); err != nil {
				return err
			}
		}
	case string:
		remote, err := loader.LoadDocument(ctx)
		if err != nil {
			return fmt.Errorf("%w: load context %s: %s", ErrCanonicalization, ctx, err)
		}

		doc, ok := remote.Document.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%w: context document %s is not an object", ErrCanonicalization, ctx)
		}

		return t.add(doc[contextKey], loader, depth+1)
	case map[string]interface{}:
		for term, definition := range ctx {
			if strings.HasPrefix(term, "@") {
				continue
			}

			t.defined[term] = true

			if isTypeAlias(definition) {
				t.typeAliases[term] = true
			}
		}
	default:
		return fmt.Errorf("%w: unsupported context entry %T", ErrCanonicalization, context)
	}

	return nil
}

func (t *terms) clone() *terms {
	c := &terms{defined: map[string]bool{}, typeAliases: map[string]bool{}}

	for k := range t.defined {
		c.defined[k] = true
	}

	for k := range t.typeAliases {
		c.typeAliases[k] = true
	}

	return c
}

// resolves reports whether name expands to an IRI that survives normalization: a keyword, a
// defined term, a compact IRI with a defined prefix or an absolute IRI with an authority.
// Blank node identifiers are refused, they are dropped from the N-Quads.
func (t *terms) resolves(name string) bool {
	if ld.IsKeyword(name) || t.defined[name] {
		return true
	}

	if strings.HasPrefix(name, blankNodePrefix) {
		return false
	}

	prefix, suffix, ok := strings.Cut(name, ":")
	if !ok || suffix == "" {
		return false
	}

	if t.defined[prefix] {
		return true
	}

	return strings.HasPrefix(suffix, "//") && ld.IsAbsoluteIri(name)
}

func (t *terms) check(value interface{}, loader ld.DocumentLoader) error {
	switch node := value.(type) {
	case []interface{}:
		for _, item := range node {
			if err := t.check(item, loader); err != nil {
				return err
			}
		}
	case map[string]interface{}:
		scope := t

		if embedded, ok := node[contextKey]; ok {
			scope = t.clone()

			if err := scope.add(embedded, loader, 0); err != nil {
				return err
			}
		}

		for key, v := range node {
			if key == contextKey {
				continue
			}

			if !scope.resolves(key) {
				return fmt.Errorf("%w: term %q is not defined by the context", ErrCanonicalization, key)
			}

			if key == typeKeyword || scope.typeAliases[key] {
				if err := scope.checkTypes(v); err != nil {
					return err
				}

				continue
			}

			if err := scope.check(v, loader); err != nil {
				return err
			}
		}
	}

	return nil
}

func (t *terms) checkTypes(value interface{}) error {
	var types []interface{}

	switch v := value.(type) {
	case []interface{}:
		types = v
	default:
		types = []interface{}{v}
	}

	for _, typ := range types {
		name, ok := typ.(string)
		if !ok {
			return fmt.Errorf("%w: type %v is not a string", ErrCanonicalization, typ)
		}

		if !t.resolves(name) {
			return fmt.Errorf("%w: type %q is not defined by the context", ErrCanonicalization, name)
		}
	}

	return nil
}

func isTypeAlias(definition interface{}) bool {
	switch d := definition.(type) {
	case string:
		return d == typeKeyword
	case map[string]interface{}:
		return d["@id"] == typeKeyword
	}

	return false
}

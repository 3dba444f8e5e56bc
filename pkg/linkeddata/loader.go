/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package linkeddata

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/piprate/json-gold/ld"
)

// StaticLoader serves JSON-LD context documents from memory and refuses everything else.
type StaticLoader struct {
	mu        sync.RWMutex
	documents map[string]interface{}
}

// NewStaticLoader returns a loader preloaded with documents, keyed by URL.
func NewStaticLoader(documents map[string]interface{}) *StaticLoader {
	l := &StaticLoader{documents: make(map[string]interface{}, len(documents))}

	for u, doc := range documents {
		l.documents[u] = doc
	}

	return l
}

// Add registers the raw JSON context document served for u.
func (l *StaticLoader) Add(u string, raw []byte) error {
	var doc interface{}

	err := json.Unmarshal(raw, &doc)
	if err != nil {
		return fmt.Errorf("parse context document %s: %w", u, err)
	}

	l.mu.Lock()
	l.documents[u] = doc
	l.mu.Unlock()

	return nil
}

// LoadDocument implements ld.DocumentLoader.
func (l *StaticLoader) LoadDocument(u string) (*ld.RemoteDocument, error) {
	l.mu.RLock()
	doc, ok := l.documents[u]
	l.mu.RUnlock()

	if !ok {
		return nil, ld.NewJsonLdError(ld.LoadingDocumentFailed, fmt.Sprintf("context %s is not available offline", u))
	}

	return &ld.RemoteDocument{DocumentURL: u, Document: doc}, nil
}

// SPDX-License-Identifier: Apache-2.0

// Package docstore keeps a whole key-value collection as one JSON object in
// a single native secret slot.
package docstore

import (
	"bytes"
	"encoding/json"

	"github.com/akihiro/secure-storage/internal/backend"
	"github.com/akihiro/secure-storage/internal/errors"
)

// Document is the logical key-value map.
type Document map[string]string

// Codec loads and stores a Document in one backend slot. Warmup, when the
// backend needs it, happens inside the backend before its first lookup.
type Codec struct {
	store backend.Backend
	slot  string
}

// New returns a Codec for slot in store.
func New(store backend.Backend, slot string) *Codec {
	return &Codec{store: store, slot: slot}
}

// Load fetches and parses the document. A missing slot, an empty payload and
// the JSON literal null all load as an empty document.
func (c *Codec) Load() (Document, error) {
	raw, err := c.store.Get(c.slot)
	if err != nil {
		if backend.IsNotFound(err) {
			return Document{}, nil
		}
		return nil, err
	}
	return Decode(raw)
}

// Store serializes doc as compact JSON and replaces the slot in one call.
func (c *Codec) Store(doc Document) error {
	raw, err := Encode(doc)
	if err != nil {
		return err
	}
	return c.store.Set(c.slot, raw)
}

// Get loads the document and looks up key. It never stores.
func (c *Codec) Get(key string) (string, bool, error) {
	doc, err := c.Load()
	if err != nil {
		return "", false, err
	}
	v, ok := doc[key]
	return v, ok, nil
}

// Put loads, sets key and stores.
func (c *Codec) Put(key, value string) error {
	doc, err := c.Load()
	if err != nil {
		return err
	}
	doc[key] = value
	return c.Store(doc)
}

// Remove loads, deletes key and stores. Nothing is stored when key is
// absent.
func (c *Codec) Remove(key string) error {
	doc, err := c.Load()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return c.Store(doc)
}

// Clear stores an empty document.
func (c *Codec) Clear() error {
	return c.Store(Document{})
}

// Decode parses a stored payload.
func Decode(raw []byte) (Document, error) {
	trimmed := bytes.TrimSpace(bytes.TrimRight(raw, "\x00"))
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Document{}, nil
	}
	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, errors.Wrap(errors.KindCorrupt, "stored document is not a JSON object of strings", nil, err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Encode renders doc as compact JSON with sorted keys.
func Encode(doc Document) ([]byte, error) {
	if doc == nil {
		doc = Document{}
	}
	raw, err := json.Marshal(map[string]string(doc))
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "encode document", nil, err)
	}
	return raw, nil
}

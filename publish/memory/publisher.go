// Package memory implements an in-process Publisher for tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Document is one published feed as the publisher received it.
type Document struct {
	Data        []byte
	ContentType string
}

type Publisher struct {
	mu   sync.RWMutex
	docs map[string]Document
}

func New() *Publisher {
	return &Publisher{docs: make(map[string]Document)}
}

func (p *Publisher) Put(_ context.Context, key string, data []byte, contentType string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("empty key")
	}
	copied := make([]byte, len(data))
	copy(copied, data)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs[key] = Document{Data: copied, ContentType: contentType}
	return nil
}

// Get returns a copy of the published document, for assertions.
func (p *Publisher) Get(key string) (Document, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	doc, ok := p.docs[key]
	if !ok {
		return Document{}, false
	}
	copied := make([]byte, len(doc.Data))
	copy(copied, doc.Data)
	return Document{Data: copied, ContentType: doc.ContentType}, true
}

// Keys lists published keys sorted.
func (p *Publisher) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.docs))
	for key := range p.docs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

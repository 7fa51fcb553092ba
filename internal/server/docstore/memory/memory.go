// Package memory is a process-local docstore backend for development and
// tests. Data does not survive a restart.
package memory

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/dmitrijs2005/ticketdesk/internal/server/docstore"
)

type Store struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage
}

var _ docstore.Store = (*Store)(nil)

func New() *Store {
	return &Store{docs: make(map[string]json.RawMessage)}
}

func (s *Store) Get(ctx context.Context, path string, dst any) error {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return err
	}
	s.mu.RLock()
	raw, ok := s.docs[p]
	s.mu.RUnlock()
	if !ok {
		return docstore.ErrNotFound
	}
	return docstore.Decode(raw, dst)
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return err
	}
	raw, err := docstore.Encode(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.docs[p] = raw
	s.mu.Unlock()
	return nil
}

func (s *Store) Create(ctx context.Context, path string, value any) error {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return err
	}
	raw, err := docstore.Encode(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[p]; ok {
		return docstore.ErrAlreadyExists
	}
	s.docs[p] = raw
	return nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	_, err := s.merge(path, fields, func([]byte) bool { return true })
	return err
}

func (s *Store) UpdateIf(ctx context.Context, path, field, expected string, fields map[string]any) (bool, error) {
	return s.merge(path, fields, func(doc []byte) bool {
		return docstore.FieldEquals(doc, field, expected)
	})
}

func (s *Store) merge(path string, fields map[string]any, cond func([]byte) bool) (bool, error) {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return false, err
	}
	patch, err := docstore.EncodeFields(fields)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[p]
	if !ok {
		return false, docstore.ErrNotFound
	}
	if !cond(doc) {
		return false, nil
	}
	merged, err := docstore.Merge(doc, patch)
	if err != nil {
		return false, err
	}
	s.docs[p] = merged
	return true, nil
}

func (s *Store) Remove(ctx context.Context, path string) error {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.docs, p)
	s.mu.Unlock()
	return nil
}

func (s *Store) Push(ctx context.Context, parent string, value any) (string, error) {
	p, err := docstore.CleanPath(parent)
	if err != nil {
		return "", err
	}
	key, err := docstore.NewPushKey()
	if err != nil {
		return "", err
	}
	if err := s.Create(ctx, docstore.Join(p, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) List(ctx context.Context, parent string) (map[string]json.RawMessage, error) {
	p, err := docstore.CleanPath(parent)
	if err != nil {
		return nil, err
	}
	prefix := p + "/"

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]json.RawMessage)
	for k, v := range s.docs {
		rest, ok := strings.CutPrefix(k, prefix)
		if !ok || strings.Contains(rest, "/") {
			continue
		}
		out[rest] = v
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

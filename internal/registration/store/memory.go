package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"confreg/internal/registration/models"
	"confreg/pkg/platform/sentinel"
)

// InMemoryStore is a Store for tests and local runs. Hide simulates
// read-after-write lag by failing the next n lookups of a registration.
type InMemoryStore struct {
	mu      sync.Mutex
	byDoc   map[string]*models.Registration
	byRegID map[string]string
	hidden  map[string]int
	lookups map[string]int
	assets  map[string][]byte
	patches []PatchCall
}

// PatchCall records one Patch for assertions.
type PatchCall struct {
	DocumentID string
	Patch      models.Patch
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byDoc:   map[string]*models.Registration{},
		byRegID: map[string]string{},
		hidden:  map[string]int{},
		lookups: map[string]int{},
		assets:  map[string][]byte{},
	}
}

// Put stores a copy of reg, assigning a document id when it has none.
func (s *InMemoryStore) Put(reg models.Registration) *models.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reg.DocumentID == "" {
		reg.DocumentID = "reg-" + uuid.NewString()
	}
	cp := reg
	s.byDoc[cp.DocumentID] = &cp
	s.byRegID[cp.RegistrationID] = cp.DocumentID
	out := cp
	return &out
}

// Hide makes the next n lookups of registrationID miss.
func (s *InMemoryStore) Hide(registrationID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden[registrationID] = n
}

// Delete removes a registration, e.g. to race a patch.
func (s *InMemoryStore) Delete(registrationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byDoc, s.byRegID[registrationID])
	delete(s.byRegID, registrationID)
}

// Lookups returns how many times registrationID was queried.
func (s *InMemoryStore) Lookups(registrationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups[registrationID]
}

// Patches returns the patches applied so far.
func (s *InMemoryStore) Patches() []PatchCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PatchCall(nil), s.patches...)
}

// Asset returns an uploaded asset's bytes.
func (s *InMemoryStore) Asset(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.assets[id]
	return b, ok
}

func (s *InMemoryStore) FindByRegistrationID(_ context.Context, registrationID string) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups[registrationID]++
	if n := s.hidden[registrationID]; n > 0 {
		s.hidden[registrationID] = n - 1
		return nil, sentinel.ErrNotFound
	}
	docID, ok := s.byRegID[registrationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byDoc[docID]
	return &cp, nil
}

// Patch applies Set keys as JSON paths ("pricing.currency") to the stored
// document, mirroring the CMS set semantics.
func (s *InMemoryStore) Patch(_ context.Context, documentID string, patch models.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.byDoc[documentID]
	if !ok {
		return sentinel.ErrNotFound
	}

	raw, err := json.Marshal(reg)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	for path, v := range patch.Set {
		setPath(doc, strings.Split(path, "."), v)
	}
	for _, path := range patch.Unset {
		unsetPath(doc, strings.Split(path, "."))
	}
	raw, err = json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode patched document: %w", err)
	}
	var next models.Registration
	if err := json.Unmarshal(raw, &next); err != nil {
		return fmt.Errorf("decode patched document: %w", err)
	}
	next.DocumentID = documentID
	s.byDoc[documentID] = &next
	s.patches = append(s.patches, PatchCall{DocumentID: documentID, Patch: patch})
	return nil
}

func (s *InMemoryStore) UploadFile(_ context.Context, filename, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("file-%s-%s", strings.ReplaceAll(uuid.NewString(), "-", ""), "pdf")
	s.assets[id] = append([]byte(nil), data...)
	return id, nil
}

func setPath(doc map[string]any, path []string, v any) {
	for len(path) > 1 {
		next, ok := doc[path[0]].(map[string]any)
		if !ok {
			next = map[string]any{}
			doc[path[0]] = next
		}
		doc, path = next, path[1:]
	}
	doc[path[0]] = v
}

func unsetPath(doc map[string]any, path []string) {
	for len(path) > 1 {
		next, ok := doc[path[0]].(map[string]any)
		if !ok {
			return
		}
		doc, path = next, path[1:]
	}
	delete(doc, path[0])
}

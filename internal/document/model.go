// Package document owns the application's single persisted aggregate.
//
// The whole Document is serialized to JSON and written under one key on
// every mutation; there is no partial persistence. A Model is created once
// at startup and handed to every component that needs the data.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/iptdesk/internal/cryptox"
	"github.com/dmitrijs2005/iptdesk/internal/kvstore"
	"github.com/dmitrijs2005/iptdesk/internal/logging"
	"github.com/dmitrijs2005/iptdesk/internal/models"
	"github.com/google/uuid"
)

// StorageKey is the key the Document is stored under.
const StorageKey = "ipt_demo_v1"

// Seeded administrator credentials.
const (
	SeedAdminEmail    = "admin@example.com"
	SeedAdminPassword = "Password123!"
)

var (
	// ErrMalformedState means the persisted blob could not be decoded.
	// Startup must stop; the stored value is left untouched.
	ErrMalformedState = errors.New("malformed persisted state")

	ErrNotLoaded = errors.New("document not loaded")
)

// Model holds the in-memory Document and persists it through a Store.
type Model struct {
	mu     sync.Mutex
	store  kvstore.Store
	hasher cryptox.PasswordHasher
	log    logging.Logger
	doc    *models.Document
	newID  func() string
}

func New(store kvstore.Store, hasher cryptox.PasswordHasher, log logging.Logger) *Model {
	return &Model{store: store, hasher: hasher, log: log, newID: uuid.NewString}
}

// Load reads the persisted Document. When nothing is stored yet it builds
// the seed Document and persists it immediately. A stored Document is
// decoded as is; the only change made is assigning ids to accounts and
// requests written by versions that had none.
func (m *Model) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := m.store.Get(ctx, StorageKey)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	if data == nil {
		doc, err := m.seed()
		if err != nil {
			return fmt.Errorf("seed document: %w", err)
		}
		if err := m.saveTo(ctx, m.store, doc); err != nil {
			return err
		}
		m.doc = doc
		m.log.Info(ctx, "seeded new document", "accounts", len(doc.Accounts), "departments", len(doc.Departments))
		return nil
	}

	var doc *models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedState, err)
	}
	if doc == nil {
		return fmt.Errorf("%w: stored value is null", ErrMalformedState)
	}

	if n := m.backfillIDs(doc); n > 0 {
		if err := m.saveTo(ctx, m.store, doc); err != nil {
			return err
		}
		m.log.Warn(ctx, "assigned ids to records stored without one", "count", n)
	}

	m.doc = doc
	m.log.Debug(ctx, "document loaded", "accounts", len(doc.Accounts), "requests", len(doc.Requests))
	return nil
}

// Save writes the whole in-memory Document, replacing the stored value.
func (m *Model) Save(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.doc == nil {
		return ErrNotLoaded
	}
	return m.saveTo(ctx, m.store, m.doc)
}

// View runs fn with the live Document. fn must not modify it and must not
// call back into the Model.
func (m *Model) View(fn func(doc *models.Document)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.doc == nil {
		fn(&models.Document{})
		return
	}
	fn(m.doc)
}

// Snapshot returns a deep copy of the current Document.
func (m *Model) Snapshot() *models.Document {
	var c *models.Document
	m.View(func(doc *models.Document) { c = doc.Clone() })
	return c
}

// Update applies fn to the Document and saves it. If fn or the save fails
// the in-memory Document is restored to its state before the call.
func (m *Model) Update(ctx context.Context, fn func(doc *models.Document) error) error {
	return m.UpdateIn(ctx, m.store, fn)
}

// UpdateIn is Update writing through s, typically a transactional Store
// shared with other writes that must land together.
func (m *Model) UpdateIn(ctx context.Context, s kvstore.Store, fn func(doc *models.Document) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.doc == nil {
		return ErrNotLoaded
	}

	backup := m.doc.Clone()
	if err := fn(m.doc); err != nil {
		m.doc = backup
		return err
	}
	if err := m.saveTo(ctx, s, m.doc); err != nil {
		m.doc = backup
		return err
	}
	return nil
}

// Rollback replaces the in-memory Document with doc. Used when a
// transaction that already ran UpdateIn is aborted later.
func (m *Model) Rollback(doc *models.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = doc
}

// NewID returns a fresh record identifier.
func (m *Model) NewID() string {
	return m.newID()
}

func (m *Model) saveTo(ctx context.Context, s kvstore.Store, doc *models.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := s.Set(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (m *Model) seed() (*models.Document, error) {
	hash, err := m.hasher.Hash(SeedAdminPassword)
	if err != nil {
		return nil, err
	}
	return &models.Document{
		Accounts: []models.Account{{
			ID:           m.newID(),
			FirstName:    "Admin",
			LastName:     "User",
			Email:        SeedAdminEmail,
			PasswordHash: hash,
			Role:         models.RoleAdmin,
			Verified:     true,
		}},
		Departments: []models.Department{
			{Name: "Engineering", Description: "Tech team"},
			{Name: "HR", Description: "Human Resources"},
		},
		Employees: []json.RawMessage{},
		Requests:  []models.Request{},
	}, nil
}

func (m *Model) backfillIDs(doc *models.Document) int {
	n := 0
	for i := range doc.Accounts {
		if doc.Accounts[i].ID == "" {
			doc.Accounts[i].ID = m.newID()
			n++
		}
	}
	for i := range doc.Requests {
		if doc.Requests[i].ID == "" {
			doc.Requests[i].ID = m.newID()
			n++
		}
	}
	return n
}

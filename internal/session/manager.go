// Package session tracks who is logged in.
//
// The current user lives in process memory only, as an account id that is
// resolved against the Document on every read, so changes such as a
// password reset are always seen. A remembered-identity marker is written
// to the store on login and used by Restore to log the user back in at the
// next start without asking for the password.
package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/iptdesk/internal/kvstore"
	"github.com/dmitrijs2005/iptdesk/internal/logging"
	"github.com/dmitrijs2005/iptdesk/internal/models"
)

// RememberKey is the store key of the remembered-identity marker.
const RememberKey = "auth_token"

// Accounts gives read access to the Document. *document.Model implements it.
type Accounts interface {
	View(fn func(doc *models.Document))
}

type Manager struct {
	store    kvstore.Store
	accounts Accounts
	tokens   *Tokens
	log      logging.Logger

	// allowLegacy honours markers that hold a bare email, as written by
	// older versions. Such markers carry no signature.
	allowLegacy bool

	userID string
	admin  bool
}

type Option func(*Manager)

// WithLegacyRecall toggles acceptance of unsigned bare-email markers.
func WithLegacyRecall(allow bool) Option {
	return func(m *Manager) { m.allowLegacy = allow }
}

func NewManager(store kvstore.Store, accounts Accounts, tokens *Tokens, log logging.Logger, opts ...Option) *Manager {
	m := &Manager{store: store, accounts: accounts, tokens: tokens, log: log, allowLegacy: true}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Set makes acc the current user and persists a signed marker for it.
func (m *Manager) Set(ctx context.Context, acc models.Account) error {
	token, err := m.tokens.Issue(acc.Email)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, RememberKey, []byte(token)); err != nil {
		return fmt.Errorf("remember session: %w", err)
	}
	m.userID = acc.ID
	m.admin = acc.IsAdmin()
	m.log.Debug(ctx, "session set", "email", acc.Email, "admin", m.admin)
	return nil
}

// Clear drops the current user and removes the marker.
func (m *Manager) Clear(ctx context.Context) error {
	m.userID = ""
	m.admin = false
	if err := m.store.Remove(ctx, RememberKey); err != nil {
		return fmt.Errorf("forget session: %w", err)
	}
	return nil
}

// Restore logs in the account named by the stored marker, if any. The
// password is not checked. Expired or tampered markers are removed and
// leave the session empty. It reports whether a session was established.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	raw, err := m.store.Get(ctx, RememberKey)
	if err != nil {
		return false, fmt.Errorf("read remembered session: %w", err)
	}
	if len(raw) == 0 {
		return false, nil
	}
	marker := string(raw)

	var email string
	legacy := strings.Contains(marker, "@")
	switch {
	case legacy && !m.allowLegacy:
		m.log.Warn(ctx, "discarding unsigned remembered session")
		return false, m.store.Remove(ctx, RememberKey)
	case legacy:
		email = marker
	default:
		email, err = m.tokens.Email(marker)
		if err != nil {
			m.log.Warn(ctx, "discarding remembered session", "error", err)
			return false, m.store.Remove(ctx, RememberKey)
		}
	}

	acc, ok := m.lookup(func(doc *models.Document) int { return doc.AccountByEmail(email) })
	if !ok {
		return false, nil
	}

	if legacy {
		// upgrade the marker to a signed one
		return true, m.Set(ctx, acc)
	}
	m.userID = acc.ID
	m.admin = acc.IsAdmin()
	m.log.Info(ctx, "session restored", "email", acc.Email)
	return true, nil
}

// Current returns the live account of the logged-in user. It reports false
// when nobody is logged in or the account no longer exists.
func (m *Manager) Current() (models.Account, bool) {
	if m.userID == "" {
		return models.Account{}, false
	}
	id := m.userID
	return m.lookup(func(doc *models.Document) int { return doc.AccountByID(id) })
}

func (m *Manager) IsAuthenticated() bool {
	_, ok := m.Current()
	return ok
}

func (m *Manager) IsAdmin() bool {
	return m.IsAuthenticated() && m.admin
}

// Email of the current user, or "" when logged out.
func (m *Manager) Email() string {
	acc, _ := m.Current()
	return acc.Email
}

func (m *Manager) lookup(find func(doc *models.Document) int) (models.Account, bool) {
	var (
		acc models.Account
		ok  bool
	)
	m.accounts.View(func(doc *models.Document) {
		if i := find(doc); i >= 0 {
			acc, ok = doc.Accounts[i], true
		}
	})
	return acc, ok
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/iptdesk/internal/cryptox"
	"github.com/dmitrijs2005/iptdesk/internal/document"
	"github.com/dmitrijs2005/iptdesk/internal/kvstore"
	"github.com/dmitrijs2005/iptdesk/internal/logging"
	"github.com/dmitrijs2005/iptdesk/internal/models"
	"github.com/google/uuid"
)

// Store keys owned by the verification flow.
const (
	// PendingKey holds the token of the most recent registration.
	// Older versions stored the registered email here instead.
	PendingKey = "unverified_email"
	// TicketPrefix prefixes the key of every VerificationTicket.
	TicketPrefix = "verify:"
)

// RegisterInput is the registration form.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// AccountService defines account operations.
//
// Contract:
//   - Register: add an unverified account and return its verification token.
//   - VerifyPending: verify the account of the latest registration, if any.
//   - Verify: verify the account of a specific ticket.
//
// Both verify operations return the email they verified.
//   - Login / Logout: establish or clear the session.
//   - ResetPassword: replace an account's password.
//   - DeleteAccount: remove another account (admin only).
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (string, error)
	VerifyPending(ctx context.Context) (string, error)
	Verify(ctx context.Context, token string) (string, error)
	Login(ctx context.Context, email, password string) (models.Account, error)
	Logout(ctx context.Context) error
	ResetPassword(ctx context.Context, email, newPassword string) error
	DeleteAccount(ctx context.Context, id string, confirm func(models.Account) bool) error
	ListAccounts(ctx context.Context) ([]models.Account, error)
	ListDepartments(ctx context.Context) []models.Department
}

type accountService struct {
	model    *document.Model
	store    kvstore.TxStore
	sessions Sessions
	hasher   cryptox.PasswordHasher
	log      logging.Logger
}

func NewAccountService(model *document.Model, store kvstore.TxStore, sessions Sessions,
	hasher cryptox.PasswordHasher, log logging.Logger) AccountService {
	return &accountService{model: model, store: store, sessions: sessions, hasher: hasher, log: log}
}

// Register appends a new unverified user account. The document, the
// verification ticket and the pending marker are written in one transaction.
func (s *accountService) Register(ctx context.Context, in RegisterInput) (string, error) {
	if in.FirstName == "" || in.LastName == "" || in.Email == "" || in.Password == "" {
		return "", ErrMissingFields
	}
	if s.emailTaken(in.Email) {
		return "", ErrDuplicateEmail
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	token := uuid.NewString()
	ticket, err := json.Marshal(models.VerificationTicket{Token: token, Email: in.Email, CreatedAt: now().UTC()})
	if err != nil {
		return "", fmt.Errorf("encode ticket: %w", err)
	}

	snapshot := s.model.Snapshot()
	err = s.store.WithTx(ctx, func(ctx context.Context, tx kvstore.Store) error {
		err := s.model.UpdateIn(ctx, tx, func(doc *models.Document) error {
			if doc.AccountByEmail(in.Email) >= 0 {
				return ErrDuplicateEmail
			}
			doc.Accounts = append(doc.Accounts, models.Account{
				ID:           s.model.NewID(),
				FirstName:    in.FirstName,
				LastName:     in.LastName,
				Email:        in.Email,
				PasswordHash: hash,
				Role:         models.RoleUser,
			})
			return nil
		})
		if err != nil {
			return err
		}
		if err := tx.Set(ctx, TicketPrefix+token, ticket); err != nil {
			return err
		}
		return tx.Set(ctx, PendingKey, []byte(token))
	})
	if err != nil {
		s.model.Rollback(snapshot)
		return "", err
	}

	s.log.Info(ctx, "account registered", "email", in.Email)
	return token, nil
}

// VerifyPending verifies the account named by the pending marker. A missing
// marker, ticket or account is not an error; the returned email is empty.
func (s *accountService) VerifyPending(ctx context.Context) (string, error) {
	raw, err := s.store.Get(ctx, PendingKey)
	if err != nil {
		return "", err
	}
	if raw == nil {
		return "", nil
	}

	var email string
	marker := string(raw)
	if strings.Contains(marker, "@") {
		email, err = marker, s.verify(ctx, marker, "")
	} else {
		email, err = s.Verify(ctx, marker)
	}
	if errors.Is(err, ErrUnknownTicket) || errors.Is(err, ErrAccountNotFound) {
		s.log.Debug(ctx, "nothing to verify", "reason", err)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return email, nil
}

func (s *accountService) Verify(ctx context.Context, token string) (string, error) {
	raw, err := s.store.Get(ctx, TicketPrefix+token)
	if err != nil {
		return "", err
	}
	if raw == nil {
		return "", ErrUnknownTicket
	}

	var t models.VerificationTicket
	if err := json.Unmarshal(raw, &t); err != nil {
		return "", fmt.Errorf("decode ticket %s: %w", token, err)
	}
	if err := s.verify(ctx, t.Email, token); err != nil {
		return "", err
	}
	return t.Email, nil
}

// verify marks email verified and consumes its ticket. An empty token means
// a legacy pending marker holding the email itself.
func (s *accountService) verify(ctx context.Context, email, token string) error {
	snapshot := s.model.Snapshot()
	err := s.store.WithTx(ctx, func(ctx context.Context, tx kvstore.Store) error {
		err := s.model.UpdateIn(ctx, tx, func(doc *models.Document) error {
			i := doc.AccountByEmail(email)
			if i < 0 {
				return ErrAccountNotFound
			}
			doc.Accounts[i].Verified = true
			return nil
		})
		if err != nil {
			return err
		}

		if token != "" {
			if err := tx.Remove(ctx, TicketPrefix+token); err != nil {
				return err
			}
		}
		pending, err := tx.Get(ctx, PendingKey)
		if err != nil {
			return err
		}
		if token == "" || string(pending) == token {
			return tx.Remove(ctx, PendingKey)
		}
		return nil
	})
	if err != nil {
		s.model.Rollback(snapshot)
		return err
	}

	s.log.Info(ctx, "email verified", "email", email)
	return nil
}

// Login establishes a session when the account exists, the password matches
// and the account is verified. Every failure is reported as
// ErrInvalidCredentials. Accounts still holding a plaintext password are
// upgraded to a hash on their first successful login.
func (s *accountService) Login(ctx context.Context, email, password string) (models.Account, error) {
	acc, ok := s.account(func(doc *models.Document) int { return doc.AccountByEmail(email) })
	if !ok {
		s.log.Debug(ctx, "login failed", "email", email, "reason", "unknown email")
		return models.Account{}, ErrInvalidCredentials
	}

	match, legacy, err := s.checkPassword(acc, password)
	if err != nil {
		return models.Account{}, err
	}
	if !match || !acc.Verified {
		s.log.Debug(ctx, "login failed", "email", email, "verified", acc.Verified)
		return models.Account{}, ErrInvalidCredentials
	}

	if legacy {
		if err := s.setPassword(ctx, acc.Email, password); err != nil {
			return models.Account{}, err
		}
		s.log.Info(ctx, "upgraded plaintext password", "email", acc.Email)
	}

	if err := s.sessions.Set(ctx, acc); err != nil {
		return models.Account{}, err
	}
	s.log.Info(ctx, "logged in", "email", acc.Email)
	return acc, nil
}

func (s *accountService) Logout(ctx context.Context) error {
	return s.sessions.Clear(ctx)
}

func (s *accountService) ResetPassword(ctx context.Context, email, newPassword string) error {
	if utf8.RuneCountInString(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if err := s.setPassword(ctx, email, newPassword); err != nil {
		return err
	}
	s.log.Info(ctx, "password reset", "email", email)
	return nil
}

// DeleteAccount removes the account with the given id after confirm
// approves it. confirm may be nil.
func (s *accountService) DeleteAccount(ctx context.Context, id string, confirm func(models.Account) bool) error {
	if cur, ok := s.sessions.Current(); ok && cur.ID == id {
		return ErrSelfDeletion
	}
	if !s.sessions.IsAdmin() {
		return ErrForbidden
	}

	target, ok := s.account(func(doc *models.Document) int { return doc.AccountByID(id) })
	if !ok {
		return ErrAccountNotFound
	}
	if confirm != nil && !confirm(target) {
		return ErrNotConfirmed
	}

	var purged int
	snapshot := s.model.Snapshot()
	err := s.store.WithTx(ctx, func(ctx context.Context, tx kvstore.Store) error {
		err := s.model.UpdateIn(ctx, tx, func(doc *models.Document) error {
			i := doc.AccountByID(id)
			if i < 0 {
				return ErrAccountNotFound
			}
			doc.Accounts = slices.Delete(doc.Accounts, i, i+1)
			return nil
		})
		if err != nil {
			return err
		}
		purged, err = purgeTickets(ctx, tx, target.Email)
		return err
	})
	if err != nil {
		s.model.Rollback(snapshot)
		return err
	}

	s.log.Info(ctx, "account deleted", "id", id, "email", target.Email, "tickets", purged)
	return nil
}

// purgeTickets removes every verification ticket issued for email, and the
// pending marker when it points at one of them. A ticket outliving its
// account would otherwise verify a later registration of the same email.
func purgeTickets(ctx context.Context, s kvstore.Store, email string) (int, error) {
	keys, err := s.Keys(ctx, TicketPrefix)
	if err != nil {
		return 0, fmt.Errorf("list tickets: %w", err)
	}

	removed := make(map[string]bool)
	for _, key := range keys {
		raw, err := s.Get(ctx, key)
		if err != nil {
			return 0, err
		}
		var t models.VerificationTicket
		if raw == nil || json.Unmarshal(raw, &t) != nil || t.Email != email {
			continue
		}
		if err := s.Remove(ctx, key); err != nil {
			return 0, err
		}
		removed[strings.TrimPrefix(key, TicketPrefix)] = true
	}

	pending, err := s.Get(ctx, PendingKey)
	if err != nil {
		return 0, err
	}
	if marker := string(pending); marker == email || removed[marker] {
		if err := s.Remove(ctx, PendingKey); err != nil {
			return 0, err
		}
	}
	return len(removed), nil
}

func (s *accountService) ListAccounts(ctx context.Context) ([]models.Account, error) {
	if !s.sessions.IsAdmin() {
		return nil, ErrForbidden
	}
	var out []models.Account
	s.model.View(func(doc *models.Document) { out = slices.Clone(doc.Accounts) })
	return out, nil
}

func (s *accountService) ListDepartments(ctx context.Context) []models.Department {
	var out []models.Department
	s.model.View(func(doc *models.Document) { out = slices.Clone(doc.Departments) })
	return out
}

func (s *accountService) emailTaken(email string) bool {
	_, ok := s.account(func(doc *models.Document) int { return doc.AccountByEmail(email) })
	return ok
}

func (s *accountService) account(find func(doc *models.Document) int) (models.Account, bool) {
	var (
		acc models.Account
		ok  bool
	)
	s.model.View(func(doc *models.Document) {
		if i := find(doc); i >= 0 {
			acc, ok = doc.Accounts[i], true
		}
	})
	return acc, ok
}

// checkPassword reports whether password matches acc and whether the match
// was made against a legacy plaintext field.
func (s *accountService) checkPassword(acc models.Account, password string) (match, legacy bool, err error) {
	switch {
	case acc.PasswordHash != "":
		match, err = s.hasher.Verify(acc.PasswordHash, password)
		if err != nil {
			return false, false, fmt.Errorf("verify password for %s: %w", acc.Email, err)
		}
		return match, false, nil
	case acc.Password != "":
		return cryptox.ConstantTimeEqual(acc.Password, password), true, nil
	default:
		return false, false, nil
	}
}

func (s *accountService) setPassword(ctx context.Context, email, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.model.Update(ctx, func(doc *models.Document) error {
		i := doc.AccountByEmail(email)
		if i < 0 {
			return ErrAccountNotFound
		}
		doc.Accounts[i].PasswordHash = hash
		doc.Accounts[i].Password = ""
		return nil
	})
}

package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/iptdesk/internal/cryptox"
	"github.com/dmitrijs2005/iptdesk/internal/document"
	"github.com/dmitrijs2005/iptdesk/internal/kvstore"
	"github.com/dmitrijs2005/iptdesk/internal/logging"
	"github.com/dmitrijs2005/iptdesk/internal/models"
	"github.com/dmitrijs2005/iptdesk/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- helpers ----

type env struct {
	db       *kvstore.DB
	model    *document.Model
	sessions *session.Manager
	accounts AccountService
	requests RequestService
}

func cheapHasher() *cryptox.Argon2 {
	return &cryptox.Argon2{Time: 1, Memory: 8, Threads: 1, KeyLen: 16, SaltLen: 8}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWith(t, nil)
}

// newEnvWith builds the services over an in-memory store. wrap, when set,
// replaces the TxStore handed to the account service.
func newEnvWith(t *testing.T, wrap func(*kvstore.DB) kvstore.TxStore) *env {
	t.Helper()
	ctx := context.Background()

	db, err := kvstore.Open(ctx, kvstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logging.Discard()
	model := document.New(db, cheapHasher(), log)
	require.NoError(t, model.Load(ctx))

	sessions := session.NewManager(db, model, session.NewTokens("test-secret", time.Hour), log)

	var store kvstore.TxStore = db
	if wrap != nil {
		store = wrap(db)
	}
	return &env{
		db:       db,
		model:    model,
		sessions: sessions,
		accounts: NewAccountService(model, store, sessions, cheapHasher(), log),
		requests: NewRequestService(model, sessions, log),
	}
}

func (e *env) account(t *testing.T, email string) models.Account {
	t.Helper()
	doc := e.model.Snapshot()
	i := doc.AccountByEmail(email)
	require.GreaterOrEqual(t, i, 0, "account %s", email)
	return doc.Accounts[i]
}

func (e *env) loginAdmin(t *testing.T) models.Account {
	t.Helper()
	acc, err := e.accounts.Login(context.Background(), document.SeedAdminEmail, document.SeedAdminPassword)
	require.NoError(t, err)
	return acc
}

func (e *env) registerVerified(t *testing.T, email, password string) models.Account {
	t.Helper()
	ctx := context.Background()
	token, err := e.accounts.Register(ctx, RegisterInput{FirstName: "F", LastName: "L", Email: email, Password: password})
	require.NoError(t, err)
	_, err = e.accounts.Verify(ctx, token)
	require.NoError(t, err)
	return e.account(t, email)
}

func freezeNow(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

// ticketFailer fails every ticket write made inside a transaction.
type ticketFailer struct {
	*kvstore.DB
}

func (f ticketFailer) WithTx(ctx context.Context, fn func(ctx context.Context, s kvstore.Store) error) error {
	return f.DB.WithTx(ctx, func(ctx context.Context, s kvstore.Store) error {
		return fn(ctx, failingSet{Store: s})
	})
}

type failingSet struct {
	kvstore.Store
}

func (f failingSet) Set(ctx context.Context, key string, value []byte) error {
	if strings.HasPrefix(key, TicketPrefix) {
		return errors.New("disk full")
	}
	return f.Store.Set(ctx, key, value)
}

// ---- seed & login ----

func TestSeed_AdminCanLogIn(t *testing.T) {
	e := newEnv(t)

	doc := e.model.Snapshot()
	require.Len(t, doc.Accounts, 1)
	require.Len(t, doc.Departments, 2)

	acc := e.loginAdmin(t)
	assert.Equal(t, models.RoleAdmin, acc.Role)
	assert.True(t, e.sessions.IsAuthenticated())
	assert.True(t, e.sessions.IsAdmin())
}

func TestLogin_Failures(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.accounts.Register(ctx, RegisterInput{FirstName: "A", LastName: "B", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	tests := []struct {
		name            string
		email, password string
	}{
		{"wrong password", document.SeedAdminEmail, "Password123"},
		{"wrong email", "nobody@example.com", document.SeedAdminPassword},
		{"unverified", "a@x.com", "secret1"},
		{"case differs", "ADMIN@example.com", document.SeedAdminPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.accounts.Login(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			assert.False(t, e.sessions.IsAuthenticated())
		})
	}
}

func TestLogin_UpgradesLegacyPlaintext(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.model.Update(ctx, func(doc *models.Document) error {
		doc.Accounts = append(doc.Accounts, models.Account{
			ID: "old-1", FirstName: "Old", Email: "old@x.com", Password: "hunter2", Role: models.RoleUser, Verified: true,
		})
		return nil
	}))

	_, err := e.accounts.Login(ctx, "old@x.com", "hunter3")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, "hunter2", e.account(t, "old@x.com").Password)

	_, err = e.accounts.Login(ctx, "old@x.com", "hunter2")
	require.NoError(t, err)

	acc := e.account(t, "old@x.com")
	assert.Empty(t, acc.Password)
	assert.NotEmpty(t, acc.PasswordHash)

	require.NoError(t, e.accounts.Logout(ctx))
	_, err = e.accounts.Login(ctx, "old@x.com", "hunter2")
	assert.NoError(t, err)
}

func TestLogout_ClearsSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.loginAdmin(t)

	require.NoError(t, e.accounts.Logout(ctx))

	assert.False(t, e.sessions.IsAuthenticated())
	raw, err := e.db.Get(ctx, session.RememberKey)
	require.NoError(t, err)
	assert.Nil(t, raw)
}

// ---- registration & verification ----

func TestRegister_VerifyPending_Login(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	token, err := e.accounts.Register(ctx, RegisterInput{FirstName: "Ann", LastName: "Lee", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	acc := e.account(t, "a@x.com")
	assert.False(t, acc.Verified)
	assert.Equal(t, models.RoleUser, acc.Role)
	assert.NotEmpty(t, acc.ID)
	assert.NotEqual(t, "secret1", acc.PasswordHash)

	pending, err := e.db.Get(ctx, PendingKey)
	require.NoError(t, err)
	assert.Equal(t, token, string(pending))

	verified, err := e.accounts.VerifyPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", verified)
	assert.True(t, e.account(t, "a@x.com").Verified)

	pending, err = e.db.Get(ctx, PendingKey)
	require.NoError(t, err)
	assert.Nil(t, pending)
	ticket, err := e.db.Get(ctx, TicketPrefix+token)
	require.NoError(t, err)
	assert.Nil(t, ticket)

	got, err := e.accounts.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, "a@x.com", e.sessions.Email())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	e := newEnv(t)
	before := e.model.Snapshot()

	_, err := e.accounts.Register(context.Background(), RegisterInput{
		FirstName: "X", LastName: "Y", Email: document.SeedAdminEmail, Password: "whatever",
	})
	require.ErrorIs(t, err, ErrDuplicateEmail)
	assert.Equal(t, before, e.model.Snapshot())
}

func TestRegister_MissingFields(t *testing.T) {
	e := newEnv(t)
	_, err := e.accounts.Register(context.Background(), RegisterInput{FirstName: "X", Email: "x@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestRegister_IsAtomic(t *testing.T) {
	e := newEnvWith(t, func(db *kvstore.DB) kvstore.TxStore { return ticketFailer{DB: db} })
	ctx := context.Background()

	_, err := e.accounts.Register(ctx, RegisterInput{FirstName: "A", LastName: "B", Email: "a@x.com", Password: "secret1"})
	require.Error(t, err)

	assert.Equal(t, -1, e.model.Snapshot().AccountByEmail("a@x.com"))

	reloaded := document.New(e.db, cheapHasher(), logging.Discard())
	require.NoError(t, reloaded.Load(ctx))
	assert.Len(t, reloaded.Snapshot().Accounts, 1)

	pending, err := e.db.Get(ctx, PendingKey)
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestRegister_TwoTicketsVerifyIndependently(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.accounts.Register(ctx, RegisterInput{FirstName: "A", LastName: "A", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	second, err := e.accounts.Register(ctx, RegisterInput{FirstName: "B", LastName: "B", Email: "b@x.com", Password: "secret2"})
	require.NoError(t, err)

	verified, err := e.accounts.Verify(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", verified)
	assert.True(t, e.account(t, "a@x.com").Verified)
	assert.False(t, e.account(t, "b@x.com").Verified)

	pending, err := e.db.Get(ctx, PendingKey)
	require.NoError(t, err)
	assert.Equal(t, second, string(pending))

	verified, err = e.accounts.VerifyPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", verified)
	assert.True(t, e.account(t, "b@x.com").Verified)

	_, err = e.accounts.Verify(ctx, first)
	assert.ErrorIs(t, err, ErrUnknownTicket)
}

func TestVerifyPending_NoMarkerIsNoop(t *testing.T) {
	e := newEnv(t)
	before := e.model.Snapshot()
	verified, err := e.accounts.VerifyPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, verified)
	assert.Equal(t, before, e.model.Snapshot())
}

func TestVerifyPending_UnknownAccountIsNoop(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.db.Set(ctx, PendingKey, []byte("ghost@x.com")))

	verified, err := e.accounts.VerifyPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, verified)
}

func TestVerifyPending_LegacyEmailMarker(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.model.Update(ctx, func(doc *models.Document) error {
		doc.Accounts = append(doc.Accounts, models.Account{ID: "u-9", Email: "old@x.com", Role: models.RoleUser})
		return nil
	}))
	require.NoError(t, e.db.Set(ctx, PendingKey, []byte("old@x.com")))

	verified, err := e.accounts.VerifyPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, "old@x.com", verified)

	assert.True(t, e.account(t, "old@x.com").Verified)
	pending, err := e.db.Get(ctx, PendingKey)
	require.NoError(t, err)
	assert.Nil(t, pending)
}

// ---- password reset ----

func TestResetPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	oldHash := e.account(t, document.SeedAdminEmail).PasswordHash

	err := e.accounts.ResetPassword(ctx, document.SeedAdminEmail, "12345")
	require.ErrorIs(t, err, ErrPasswordTooShort)
	assert.Equal(t, oldHash, e.account(t, document.SeedAdminEmail).PasswordHash)

	require.NoError(t, e.accounts.ResetPassword(ctx, document.SeedAdminEmail, "123456"))
	assert.NotEqual(t, oldHash, e.account(t, document.SeedAdminEmail).PasswordHash)

	_, err = e.accounts.Login(ctx, document.SeedAdminEmail, document.SeedAdminPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = e.accounts.Login(ctx, document.SeedAdminEmail, "123456")
	assert.NoError(t, err)
}

func TestResetPassword_CountsRunes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	assert.ErrorIs(t, e.accounts.ResetPassword(ctx, document.SeedAdminEmail, "äöü"), ErrPasswordTooShort)
	assert.NoError(t, e.accounts.ResetPassword(ctx, document.SeedAdminEmail, "äöüäöü"))
}

func TestResetPassword_UnknownEmail(t *testing.T) {
	e := newEnv(t)
	err := e.accounts.ResetPassword(context.Background(), "nobody@x.com", "123456")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestResetPassword_SeenByCurrentSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.loginAdmin(t)

	require.NoError(t, e.accounts.ResetPassword(ctx, document.SeedAdminEmail, "newpass"))

	cur, ok := e.sessions.Current()
	require.True(t, ok)
	assert.Equal(t, e.account(t, document.SeedAdminEmail).PasswordHash, cur.PasswordHash)
}

// ---- deletion ----

func TestDeleteAccount_RequiresAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bob := e.registerVerified(t, "bob@x.com", "secret1")
	admin := e.account(t, document.SeedAdminEmail)

	assert.ErrorIs(t, e.accounts.DeleteAccount(ctx, admin.ID, nil), ErrForbidden)

	_, err := e.accounts.Login(ctx, "bob@x.com", "secret1")
	require.NoError(t, err)
	assert.ErrorIs(t, e.accounts.DeleteAccount(ctx, admin.ID, nil), ErrForbidden)
	_, err = e.accounts.ListAccounts(ctx)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, bob.ID, e.account(t, "bob@x.com").ID)
}

func TestDeleteAccount_NonAdminSelf(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bob := e.registerVerified(t, "bob@x.com", "secret1")
	_, err := e.accounts.Login(ctx, "bob@x.com", "secret1")
	require.NoError(t, err)
	before := e.model.Snapshot()

	err = e.accounts.DeleteAccount(ctx, bob.ID, nil)
	require.ErrorIs(t, err, ErrSelfDeletion)
	assert.Equal(t, before, e.model.Snapshot())
}

func TestDeleteAccount_Self(t *testing.T) {
	e := newEnv(t)
	admin := e.loginAdmin(t)
	before := e.model.Snapshot()

	confirmed := false
	err := e.accounts.DeleteAccount(context.Background(), admin.ID, func(models.Account) bool {
		confirmed = true
		return true
	})
	require.ErrorIs(t, err, ErrSelfDeletion)
	assert.False(t, confirmed)
	assert.Equal(t, before, e.model.Snapshot())
}

func TestDeleteAccount_Unknown(t *testing.T) {
	e := newEnv(t)
	e.loginAdmin(t)
	assert.ErrorIs(t, e.accounts.DeleteAccount(context.Background(), "missing", nil), ErrAccountNotFound)
}

func TestDeleteAccount_Declined(t *testing.T) {
	e := newEnv(t)
	bob := e.registerVerified(t, "bob@x.com", "secret1")
	e.loginAdmin(t)

	var asked models.Account
	err := e.accounts.DeleteAccount(context.Background(), bob.ID, func(a models.Account) bool {
		asked = a
		return false
	})
	require.ErrorIs(t, err, ErrNotConfirmed)
	assert.Equal(t, "bob@x.com", asked.Email)
	assert.Len(t, e.model.Snapshot().Accounts, 2)
}

func TestDeleteAccount_ByIDAfterReorder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bob := e.registerVerified(t, "bob@x.com", "secret1")
	e.registerVerified(t, "carol@x.com", "secret1")
	e.loginAdmin(t)

	// move carol in front of bob after bob's id was captured
	require.NoError(t, e.model.Update(ctx, func(doc *models.Document) error {
		doc.Accounts[1], doc.Accounts[2] = doc.Accounts[2], doc.Accounts[1]
		return nil
	}))

	require.NoError(t, e.accounts.DeleteAccount(ctx, bob.ID, func(models.Account) bool { return true }))

	doc := e.model.Snapshot()
	assert.Equal(t, -1, doc.AccountByEmail("bob@x.com"))
	assert.GreaterOrEqual(t, doc.AccountByEmail("carol@x.com"), 0)

	accounts, err := e.accounts.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestDeleteAccount_KeepsRequests(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bob := e.registerVerified(t, "bob@x.com", "secret1")
	_, err := e.accounts.Login(ctx, "bob@x.com", "secret1")
	require.NoError(t, err)
	_, err = e.requests.SubmitRequest(ctx, "Equipment", []models.RequestItem{{Name: "Laptop", Quantity: 1}})
	require.NoError(t, err)

	e.loginAdmin(t)
	require.NoError(t, e.accounts.DeleteAccount(ctx, bob.ID, nil))

	assert.Len(t, e.model.Snapshot().RequestsOf("bob@x.com"), 1)
}

func TestDeleteAccount_PurgesTickets(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bob := e.registerVerified(t, "bob@x.com", "secret1")
	carolToken, err := e.accounts.Register(ctx, RegisterInput{FirstName: "C", LastName: "D", Email: "carol@x.com", Password: "secret1"})
	require.NoError(t, err)
	staleToken, err := e.accounts.Register(ctx, RegisterInput{FirstName: "E", LastName: "F", Email: "eve@x.com", Password: "secret1"})
	require.NoError(t, err)
	eve := e.account(t, "eve@x.com")

	e.loginAdmin(t)
	require.NoError(t, e.accounts.DeleteAccount(ctx, eve.ID, nil))
	require.NoError(t, e.accounts.DeleteAccount(ctx, bob.ID, nil))

	keys, err := e.db.Keys(ctx, TicketPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{TicketPrefix + carolToken}, keys)
	pending, err := e.db.Get(ctx, PendingKey)
	require.NoError(t, err)
	assert.Nil(t, pending, "pending marker pointed at the deleted account")

	_, err = e.accounts.Register(ctx, RegisterInput{FirstName: "E", LastName: "F", Email: "eve@x.com", Password: "secret2"})
	require.NoError(t, err)
	_, err = e.accounts.Verify(ctx, staleToken)
	require.ErrorIs(t, err, ErrUnknownTicket)
	assert.False(t, e.account(t, "eve@x.com").Verified)
}

func TestListDepartments(t *testing.T) {
	e := newEnv(t)
	deps := e.accounts.ListDepartments(context.Background())
	assert.Equal(t, []models.Department{
		{Name: "Engineering", Description: "Tech team"},
		{Name: "HR", Description: "Human Resources"},
	}, deps)
}

// ---- requests ----

func TestSubmitRequest_EmptyItems(t *testing.T) {
	e := newEnv(t)
	e.loginAdmin(t)

	_, err := e.requests.SubmitRequest(context.Background(), "Equipment", nil)
	require.ErrorIs(t, err, ErrEmptyItemList)
	assert.Empty(t, e.model.Snapshot().Requests)
}

func TestSubmitRequest_RequiresSession(t *testing.T) {
	e := newEnv(t)
	_, err := e.requests.SubmitRequest(context.Background(), "Equipment", []models.RequestItem{{Name: "Laptop", Quantity: 1}})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = e.requests.ListOwnRequests(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestSubmitRequest_InvalidItems(t *testing.T) {
	e := newEnv(t)
	e.loginAdmin(t)
	ctx := context.Background()

	_, err := e.requests.SubmitRequest(ctx, "Equipment", []models.RequestItem{{Name: "", Quantity: 1}})
	assert.ErrorIs(t, err, ErrInvalidItem)
	_, err = e.requests.SubmitRequest(ctx, "Equipment", []models.RequestItem{{Name: "Laptop", Quantity: 0}})
	assert.ErrorIs(t, err, ErrInvalidItem)
	_, err = e.requests.SubmitRequest(ctx, " ", []models.RequestItem{{Name: "Laptop", Quantity: 1}})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestSubmitRequest_AppendsPending(t *testing.T) {
	e := newEnv(t)
	freezeNow(t, time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC))
	e.loginAdmin(t)

	req, err := e.requests.SubmitRequest(context.Background(), "Equipment", []models.RequestItem{{Name: "Laptop", Quantity: 1}})
	require.NoError(t, err)

	doc := e.model.Snapshot()
	require.Len(t, doc.Requests, 1)
	got := doc.Requests[0]
	assert.Equal(t, req, got)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, document.SeedAdminEmail, got.OwnerEmail)
	assert.Equal(t, "2025-03-14", got.CreatedAt)
	assert.Equal(t, []models.RequestItem{{Name: "Laptop", Quantity: 1}}, got.Items)
	assert.NotEmpty(t, got.ID)
}

func TestListOwnRequests_FiltersAndKeepsOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.registerVerified(t, "bob@x.com", "secret1")

	e.loginAdmin(t)
	_, err := e.requests.SubmitRequest(ctx, "A", []models.RequestItem{{Name: "One", Quantity: 1}})
	require.NoError(t, err)

	_, err = e.accounts.Login(ctx, "bob@x.com", "secret1")
	require.NoError(t, err)
	_, err = e.requests.SubmitRequest(ctx, "B", []models.RequestItem{{Name: "Two", Quantity: 2}})
	require.NoError(t, err)

	e.loginAdmin(t)
	_, err = e.requests.SubmitRequest(ctx, "C", []models.RequestItem{{Name: "Three", Quantity: 3}})
	require.NoError(t, err)

	own, err := e.requests.ListOwnRequests(ctx)
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.Equal(t, "A", own[0].Type)
	assert.Equal(t, "C", own[1].Type)
}

func TestRoundTrip_FreshModelSeesSameDocument(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.registerVerified(t, "bob@x.com", "secret1")
	e.loginAdmin(t)
	_, err := e.requests.SubmitRequest(ctx, "Equipment", []models.RequestItem{{Name: "Laptop", Quantity: 1}, {Name: "Mouse", Quantity: 2}})
	require.NoError(t, err)

	fresh := document.New(e.db, cheapHasher(), logging.Discard())
	require.NoError(t, fresh.Load(ctx))
	assert.Equal(t, e.model.Snapshot(), fresh.Snapshot())
}

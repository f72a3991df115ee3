// Package cli is the interactive console front end. It reads commands,
// calls the account and request services, navigates the router and prints
// the resulting pages.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/iptdesk/internal/config"
	"github.com/dmitrijs2005/iptdesk/internal/cryptox"
	"github.com/dmitrijs2005/iptdesk/internal/document"
	"github.com/dmitrijs2005/iptdesk/internal/kvstore"
	"github.com/dmitrijs2005/iptdesk/internal/logging"
	"github.com/dmitrijs2005/iptdesk/internal/models"
	"github.com/dmitrijs2005/iptdesk/internal/router"
	"github.com/dmitrijs2005/iptdesk/internal/services"
	"github.com/dmitrijs2005/iptdesk/internal/session"
	"github.com/dmitrijs2005/iptdesk/internal/views"
)

type App struct {
	log      logging.Logger
	model    *document.Model
	sessions *session.Manager
	router   *router.Router
	accounts services.AccountService
	requests services.RequestService
	reader   *bufio.Reader
	out      io.Writer
	closer   io.Closer
}

// NewApp opens the store named by cfg, loads the Document and wires the
// services to stdin and stdout. A document.ErrMalformedState error means
// the stored data could not be read and nothing was changed.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	db, err := kvstore.Open(ctx, cfg.DBDriver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	hasher := cryptox.DefaultArgon2()
	model := document.New(db, hasher, log.With("component", "document"))
	if err := model.Load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	tokens := session.NewTokens(cfg.SessionSecret, cfg.SessionTTL)
	sessions := session.NewManager(db, model, tokens, log.With("component", "session"),
		session.WithLegacyRecall(cfg.AllowLegacyRecall))

	a := newApp(db, model, sessions, hasher, log, os.Stdin, os.Stdout)
	a.closer = db
	return a, nil
}

func newApp(store kvstore.TxStore, model *document.Model, sessions *session.Manager,
	hasher cryptox.PasswordHasher, log logging.Logger, in io.Reader, out io.Writer) *App {
	a := &App{
		log:      log,
		model:    model,
		sessions: sessions,
		router:   router.New(sessions, log.With("component", "router")),
		accounts: services.NewAccountService(model, store, sessions, hasher, log.With("component", "accounts")),
		requests: services.NewRequestService(model, sessions, log.With("component", "requests")),
		reader:   bufio.NewReader(in),
		out:      out,
	}
	a.routes()
	return a
}

// Run restores a remembered session, shows the page for start and serves
// commands until EOF or exit.
func (a *App) Run(ctx context.Context, start string) error {
	restored, err := a.sessions.Restore(ctx)
	if err != nil {
		return err
	}
	if restored {
		a.log.Info(ctx, "welcome back", "email", a.sessions.Email())
	}

	fmt.Fprintln(a.out, "Welcome to IPT Desk (type 'help' for commands)")
	if err := a.Go(ctx, start); err != nil {
		a.reportError(ctx, err)
	}

	runREPL(ctx, a, a.status, a.reader)
	return nil
}

func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func (a *App) isLoggedIn() bool {
	return a.sessions.IsAuthenticated()
}

func (a *App) isAdmin() bool {
	return a.sessions.IsAdmin()
}

func (a *App) nav() views.Nav {
	acc, ok := a.sessions.Current()
	return views.NavOf(acc, ok, a.sessions.IsAdmin())
}

func (a *App) status() string {
	return a.nav().Status()
}

func (a *App) reportError(ctx context.Context, err error) {
	a.log.Debug(ctx, "command failed", "error", err)
	fmt.Fprintln(a.out, "Error:", err)
}

// Go navigates to hash and prints the navigation bar and the page.
func (a *App) Go(ctx context.Context, hash string) error {
	page, err := a.router.Navigate(ctx, hash)
	if err != nil {
		return err
	}
	if len(page.Redirected) > 0 {
		fmt.Fprintf(a.out, "Redirected to %s\n", page.Route)
	}
	if err := a.nav().Render(a.out); err != nil {
		return err
	}
	if page.View == nil {
		return nil
	}
	return page.View.Render(a.out)
}

func static(title string, lines ...string) router.Hook {
	v := views.Static{Title: title, Lines: lines}
	return func(context.Context) (views.View, error) { return v, nil }
}

func (a *App) routes() {
	a.router.Handle(router.Home, static("IPT Desk",
		"Procurement requests and accounts in one place.",
		"Type 'help' to see what you can do."))
	a.router.Handle(router.Register, static("Register",
		"Type 'register' to create an account."))
	a.router.Handle(router.Login, static("Login",
		"Type 'login' to sign in, or 'reset' if you forgot your password."))
	a.router.Handle(router.VerifyEmail, static("Verify your email",
		"A verification link has been sent to your inbox.",
		"Type 'verify' to follow it."))

	a.router.Handle(router.Profile, func(ctx context.Context) (views.View, error) {
		acc, ok := a.sessions.Current()
		if !ok {
			return nil, services.ErrNotAuthenticated
		}
		return views.ProfileOf(acc), nil
	})
	a.router.Handle(router.Accounts, func(ctx context.Context) (views.View, error) {
		list, err := a.accounts.ListAccounts(ctx)
		if err != nil {
			return nil, err
		}
		self, _ := a.sessions.Current()
		return views.AccountsOf(list, self.ID), nil
	})
	a.router.Handle(router.Requests, func(ctx context.Context) (views.View, error) {
		list, err := a.requests.ListOwnRequests(ctx)
		if err != nil {
			return nil, err
		}
		return views.RequestsOf(list), nil
	})
	a.router.Handle(router.Employees, func(ctx context.Context) (views.View, error) {
		var v views.EmployeeList
		a.model.View(func(doc *models.Document) { v = views.EmployeesOf(doc.Employees) })
		return v, nil
	})
	a.router.Handle(router.Departments, func(ctx context.Context) (views.View, error) {
		return views.DepartmentsOf(a.accounts.ListDepartments(ctx)), nil
	})
}

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/iptdesk/internal/cryptox"
	"github.com/dmitrijs2005/iptdesk/internal/models"
	"github.com/dmitrijs2005/iptdesk/internal/router"
	"github.com/dmitrijs2005/iptdesk/internal/services"
)

// Interactive input helpers, swapped in tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
	getItems      = GetItems
	confirm       = Confirm
)

// Register prompts for the registration form, creates an unverified
// account and shows the verify-email page.
func (a *App) Register(ctx context.Context) error {
	var in services.RegisterInput
	fields := []struct {
		prompt string
		dst    *string
	}{
		{"First name", &in.FirstName},
		{"Last name", &in.LastName},
		{"Email", &in.Email},
	}
	for _, f := range fields {
		v, err := getSimpleText(a.reader, f.prompt, a.out)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	pw, err := getPassword(a.reader, "Password", a.out)
	if err != nil {
		return err
	}
	defer cryptox.Wipe(pw)
	in.Password = string(pw)

	token, err := a.accounts.Register(ctx, in)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered. Verification ticket: %s\n", token)
	return a.Go(ctx, string(router.VerifyEmail))
}

// Verify confirms the email of the given ticket, or of the latest
// registration when token is empty.
func (a *App) Verify(ctx context.Context, token string) error {
	var (
		email string
		err   error
	)
	if token == "" {
		email, err = a.accounts.VerifyPending(ctx)
	} else {
		email, err = a.accounts.Verify(ctx, token)
	}
	if err != nil {
		return err
	}
	if email == "" {
		fmt.Fprintln(a.out, "Nothing to verify.")
		return nil
	}

	fmt.Fprintf(a.out, "Verified %s! You can now login.\n", email)
	return a.Go(ctx, string(router.Login))
}

func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	pw, err := getPassword(a.reader, "Password", a.out)
	if err != nil {
		return err
	}
	defer cryptox.Wipe(pw)

	acc, err := a.accounts.Login(ctx, email, string(pw))
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Welcome, %s!\n", acc.FirstName)
	return a.Go(ctx, string(router.Profile))
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.accounts.Logout(ctx); err != nil {
		return err
	}
	return a.Go(ctx, string(router.Home))
}

func (a *App) Reset(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	pw, err := getPassword(a.reader, "New password", a.out)
	if err != nil {
		return err
	}
	defer cryptox.Wipe(pw)

	if err := a.accounts.ResetPassword(ctx, email, string(pw)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password updated.")
	return nil
}

// Delete removes the account with the given id after a y/N confirmation
// and shows the refreshed account list.
func (a *App) Delete(ctx context.Context, id string) error {
	err := a.accounts.DeleteAccount(ctx, id, func(acc models.Account) bool {
		ok, err := confirm(a.reader, fmt.Sprintf("Delete %s <%s>?", acc.FullName(), acc.Email), a.out)
		return err == nil && ok
	})
	if errors.Is(err, services.ErrNotConfirmed) {
		fmt.Fprintln(a.out, "Cancelled.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Account deleted.")
	return a.Go(ctx, string(router.Accounts))
}

// Request prompts for a request type and its items, submits it and shows
// the user's request list.
func (a *App) Request(ctx context.Context) error {
	kind, err := getSimpleText(a.reader, "Request type (e.g. Equipment, Supplies)", a.out)
	if err != nil {
		return err
	}
	lines, err := getItems(a.reader, a.out)
	if err != nil {
		return err
	}
	items, err := ParseItems(lines)
	if err != nil {
		return err
	}

	if _, err := a.requests.SubmitRequest(ctx, kind, items); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Request submitted.")
	return a.Go(ctx, string(router.Requests))
}

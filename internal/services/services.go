// Package services implements the account and request operations. Each
// operation reads or mutates the Document through a document.Model and
// persists the result before returning; navigation is left to the caller.
package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/iptdesk/internal/models"
)

// MinPasswordLength is counted in runes.
const MinPasswordLength = 6

// Sessions is the part of session.Manager the services rely on.
type Sessions interface {
	Set(ctx context.Context, acc models.Account) error
	Clear(ctx context.Context) error
	Current() (models.Account, bool)
	IsAdmin() bool
}

// now is replaceable in tests.
var now = time.Now

package services

import "errors"

var (
	ErrDuplicateEmail     = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials or email not verified")
	ErrSelfDeletion       = errors.New("you cannot delete your own account")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrEmptyItemList      = errors.New("add at least one item")

	ErrMissingFields    = errors.New("all fields are required")
	ErrInvalidItem      = errors.New("item needs a name and a quantity of at least 1")
	ErrAccountNotFound  = errors.New("account not found")
	ErrUnknownTicket    = errors.New("unknown verification ticket")
	ErrNotConfirmed     = errors.New("not confirmed")
	ErrForbidden        = errors.New("admin access required")
	ErrNotAuthenticated = errors.New("login required")
)

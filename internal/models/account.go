// Package models defines the records kept in the persisted Document.
package models

import "strings"

// Role grants capabilities to an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Account is a registered user. Email is unique across all accounts.
//
// PasswordHash holds an encoded argon2id hash. Password is only ever set on
// documents written by older versions that stored plaintext; it is cleared
// once the account logs in and the hash is filled.
type Account struct {
	ID           string `json:"id"`
	FirstName    string `json:"fname"`
	LastName     string `json:"lname"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash,omitempty"`
	Password     string `json:"password,omitempty"`
	Role         Role   `json:"role"`
	Verified     bool   `json:"verified"`
}

func (a Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Department is an organisational unit. Departments are seeded only.
type Department struct {
	Name        string `json:"name"`
	Description string `json:"desc"`
}

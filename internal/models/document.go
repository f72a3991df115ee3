package models

import (
	"encoding/json"
	"time"
)

// Document is the aggregate persisted as a single JSON value.
// Employees is reserved: its entries are carried through untouched.
type Document struct {
	Accounts    []Account         `json:"accounts"`
	Departments []Department      `json:"departments"`
	Employees   []json.RawMessage `json:"employees"`
	Requests    []Request         `json:"requests"`
}

// AccountByEmail returns the index of the account with the given email, or -1.
func (d *Document) AccountByEmail(email string) int {
	for i := range d.Accounts {
		if d.Accounts[i].Email == email {
			return i
		}
	}
	return -1
}

// AccountByID returns the index of the account with the given id, or -1.
func (d *Document) AccountByID(id string) int {
	if id == "" {
		return -1
	}
	for i := range d.Accounts {
		if d.Accounts[i].ID == id {
			return i
		}
	}
	return -1
}

// RequestsOf returns the requests owned by email in storage order.
func (d *Document) RequestsOf(email string) []Request {
	out := make([]Request, 0)
	for _, r := range d.Requests {
		if r.OwnerEmail == email {
			out = append(out, r)
		}
	}
	return out
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := &Document{
		Accounts:    cloneSlice(d.Accounts),
		Departments: cloneSlice(d.Departments),
		Employees:   make([]json.RawMessage, len(d.Employees)),
		Requests:    make([]Request, len(d.Requests)),
	}
	if d.Employees == nil {
		c.Employees = nil
	}
	for i, e := range d.Employees {
		c.Employees[i] = append(json.RawMessage(nil), e...)
	}
	if d.Requests == nil {
		c.Requests = nil
	}
	for i, r := range d.Requests {
		r.Items = cloneSlice(r.Items)
		c.Requests[i] = r
	}
	return c
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	return append(make([]T, 0, len(in)), in...)
}

// VerificationTicket records one pending email verification.
type VerificationTicket struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

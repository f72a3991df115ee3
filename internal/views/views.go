// Package views turns Document and session state into printable pages.
// Every constructor here is a pure function of its arguments.
package views

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/dmitrijs2005/iptdesk/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// View is a page the console can print.
type View interface {
	Render(w io.Writer) error
}

var upper = cases.Upper(language.Und)

// Static is a page with fixed text, such as the login form hint.
type Static struct {
	Title string
	Lines []string
}

// Profile is the logged-in user's card.
type Profile struct {
	Name  string
	Email string
	Role  string
}

func ProfileOf(acc models.Account) Profile {
	return Profile{Name: acc.FullName(), Email: acc.Email, Role: upper.String(string(acc.Role))}
}

type AccountRow struct {
	ID       string
	Name     string
	Email    string
	Role     string
	Verified bool
	IsSelf   bool
}

type AccountList struct {
	Rows []AccountRow
}

// AccountsOf lists accounts in storage order. selfID marks the row of the
// logged-in admin, which cannot be deleted.
func AccountsOf(accounts []models.Account, selfID string) AccountList {
	rows := make([]AccountRow, len(accounts))
	for i, a := range accounts {
		rows[i] = AccountRow{
			ID:       a.ID,
			Name:     a.FullName(),
			Email:    a.Email,
			Role:     string(a.Role),
			Verified: a.Verified,
			IsSelf:   selfID != "" && a.ID == selfID,
		}
	}
	return AccountList{Rows: rows}
}

type RequestRow struct {
	ID     string
	Type   string
	Items  string
	Status string
	Date   string
}

type RequestList struct {
	Rows []RequestRow
}

func RequestsOf(requests []models.Request) RequestList {
	rows := make([]RequestRow, len(requests))
	for i, r := range requests {
		rows[i] = RequestRow{
			ID:     r.ID,
			Type:   r.Type,
			Items:  r.ItemsSummary(),
			Status: string(r.Status),
			Date:   r.CreatedAt,
		}
	}
	return RequestList{Rows: rows}
}

type DepartmentList struct {
	Rows []models.Department
}

func DepartmentsOf(deps []models.Department) DepartmentList {
	return DepartmentList{Rows: append([]models.Department(nil), deps...)}
}

// EmployeeList only counts entries; employee records have no schema yet.
type EmployeeList struct {
	Count int
}

func EmployeesOf(raw []json.RawMessage) EmployeeList {
	return EmployeeList{Count: len(raw)}
}

// Nav mirrors what the navigation bar shows for the current session.
type Nav struct {
	Authenticated bool
	Admin         bool
	DisplayName   string
}

// NavOf builds the navigation state. acc is ignored when authenticated is false.
func NavOf(acc models.Account, authenticated, admin bool) Nav {
	if !authenticated {
		return Nav{}
	}
	return Nav{Authenticated: true, Admin: admin, DisplayName: acc.FirstName}
}

// Links returns the routes reachable from the navigation bar.
func (n Nav) Links() []string {
	switch {
	case n.Admin:
		return []string{"/", "/profile", "/requests", "/accounts", "/employees", "/departments"}
	case n.Authenticated:
		return []string{"/", "/profile", "/requests"}
	default:
		return []string{"/", "/register", "/login"}
	}
}

// Status is the short session label used in the console prompt.
func (n Nav) Status() string {
	switch {
	case n.Admin:
		return n.DisplayName + " admin"
	case n.Authenticated:
		return n.DisplayName
	default:
		return "guest"
	}
}

func yesNo(b bool) string {
	return strconv.FormatBool(b)
}

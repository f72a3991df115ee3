package models

import (
	"fmt"
	"strings"
)

// RequestStatus tracks a request through review. Only Pending is produced
// by this application; the other values may appear in imported documents.
type RequestStatus string

const (
	StatusPending  RequestStatus = "Pending"
	StatusApproved RequestStatus = "Approved"
	StatusRejected RequestStatus = "Rejected"
)

// DateLayout is the layout of Request.CreatedAt.
const DateLayout = "2006-01-02"

// RequestItem is one line of a request.
type RequestItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"qty"`
}

func (i RequestItem) String() string {
	return fmt.Sprintf("%s x%d", i.Name, i.Quantity)
}

// Request is a purchase or equipment request. OwnerEmail is a weak
// reference to Account.Email; deleting the account leaves its requests.
type Request struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	Items      []RequestItem `json:"items"`
	Status     RequestStatus `json:"status"`
	CreatedAt  string        `json:"date"`
	OwnerEmail string        `json:"employeeEmail"`
}

// ItemsSummary renders the items as "Laptop x1, Mouse x2".
func (r Request) ItemsSummary() string {
	parts := make([]string, len(r.Items))
	for i, item := range r.Items {
		parts[i] = item.String()
	}
	return strings.Join(parts, ", ")
}

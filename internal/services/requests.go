package services

import (
	"context"
	"slices"
	"strings"

	"github.com/dmitrijs2005/iptdesk/internal/document"
	"github.com/dmitrijs2005/iptdesk/internal/logging"
	"github.com/dmitrijs2005/iptdesk/internal/models"
)

// RequestService defines operations on the current user's requests.
type RequestService interface {
	SubmitRequest(ctx context.Context, kind string, items []models.RequestItem) (models.Request, error)
	ListOwnRequests(ctx context.Context) ([]models.Request, error)
}

type requestService struct {
	model    *document.Model
	sessions Sessions
	log      logging.Logger
}

func NewRequestService(model *document.Model, sessions Sessions, log logging.Logger) RequestService {
	return &requestService{model: model, sessions: sessions, log: log}
}

// SubmitRequest appends a Pending request dated today and owned by the
// logged-in user.
func (s *requestService) SubmitRequest(ctx context.Context, kind string, items []models.RequestItem) (models.Request, error) {
	if len(items) == 0 {
		return models.Request{}, ErrEmptyItemList
	}
	acc, ok := s.sessions.Current()
	if !ok {
		return models.Request{}, ErrNotAuthenticated
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return models.Request{}, ErrMissingFields
	}
	for _, it := range items {
		if strings.TrimSpace(it.Name) == "" || it.Quantity < 1 {
			return models.Request{}, ErrInvalidItem
		}
	}

	req := models.Request{
		ID:         s.model.NewID(),
		Type:       kind,
		Items:      slices.Clone(items),
		Status:     models.StatusPending,
		CreatedAt:  now().Format(models.DateLayout),
		OwnerEmail: acc.Email,
	}
	err := s.model.Update(ctx, func(doc *models.Document) error {
		doc.Requests = append(doc.Requests, req)
		return nil
	})
	if err != nil {
		return models.Request{}, err
	}

	s.log.Info(ctx, "request submitted", "id", req.ID, "type", req.Type, "items", len(req.Items))
	return req, nil
}

// ListOwnRequests returns the current user's requests in storage order.
func (s *requestService) ListOwnRequests(ctx context.Context) ([]models.Request, error) {
	acc, ok := s.sessions.Current()
	if !ok {
		return nil, ErrNotAuthenticated
	}
	var out []models.Request
	s.model.View(func(doc *models.Document) { out = doc.RequestsOf(acc.Email) })
	return out, nil
}

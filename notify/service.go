package notify

import (
	"context"
	"net/http"
	"net/url"

	session "github.com/goliatone/go-erp-session"
)

const notificationsPath = "/api/notifications"

// Service is the remote side of the notification list.
type Service interface {
	List(ctx context.Context) ([]Notification, error)
	MarkRead(ctx context.Context, id ID) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id ID) error
}

// RESTService calls the notification endpoints of the ERP API.
type RESTService struct {
	client *session.Client
}

var _ Service = (*RESTService)(nil)

// NewRESTService uses client, which attaches the bearer credential.
func NewRESTService(client *session.Client) *RESTService {
	return &RESTService{client: client}
}

func (s *RESTService) List(ctx context.Context) ([]Notification, error) {
	var out []Notification
	if err := s.client.Do(ctx, http.MethodGet, notificationsPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RESTService) MarkRead(ctx context.Context, id ID) error {
	return s.client.Do(ctx, http.MethodPut, notificationsPath+"/"+url.PathEscape(id.String())+"/read", struct{}{}, nil)
}

func (s *RESTService) MarkAllRead(ctx context.Context) error {
	return s.client.Do(ctx, http.MethodPut, notificationsPath+"/read-all", struct{}{}, nil)
}

func (s *RESTService) Delete(ctx context.Context, id ID) error {
	return s.client.Do(ctx, http.MethodDelete, notificationsPath+"/"+url.PathEscape(id.String()), nil, nil)
}

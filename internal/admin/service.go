// Package admin drives the user-management console: the REST calls of the
// admin endpoints and the orchestration of pagination and row editing.
package admin

import (
	"context"
	"fmt"
	"net/url"

	"telecom-console/internal/config"
	"telecom-console/internal/gateway"
	"telecom-console/internal/rowedit"
)

// Service issues the admin REST calls.
type Service struct {
	gw  *gateway.Gateway
	cfg *config.Config
}

func NewService(gw *gateway.Gateway, cfg *config.Config) *Service {
	return &Service{gw: gw, cfg: cfg}
}

// UsersPath is the list endpoint relative to the server root, as reported.
func (s *Service) UsersPath(page, size int) string {
	return fmt.Sprintf("%s/users?page=%d&size=%d", trimBase(s.cfg.AdminBase), page, size)
}

func (s *Service) TrafficPath() string {
	return trimBase(s.cfg.AdminBase) + "/traffic-stats"
}

// ListUsers fetches one raw page of users.
func (s *Service) ListUsers(ctx context.Context, page, size int) (gateway.Body, error) {
	return s.gw.Get(ctx, s.cfg.AdminURL(fmt.Sprintf("/users?page=%d&size=%d", page, size)))
}

// ModifyUser sends a partial update keyed by account.
func (s *Service) ModifyUser(ctx context.Context, account string, payload map[string]interface{}) (gateway.Body, error) {
	return s.gw.Put(ctx, s.cfg.AdminURL("/modify-"+url.PathEscape(account)), payload)
}

func (s *Service) DeleteUser(ctx context.Context, account string) (gateway.Body, error) {
	return s.gw.Delete(ctx, s.cfg.AdminURL("/delete-"+url.PathEscape(account)))
}

func (s *Service) CreateUser(ctx context.Context, req rowedit.CreateRequest) (gateway.Body, error) {
	return s.gw.Post(ctx, s.cfg.AdminURL("/create-user"), req)
}

// ResetPassword asks the server to reset the password of account.
func (s *Service) ResetPassword(ctx context.Context, account string) (gateway.Body, error) {
	return s.gw.Post(ctx, s.cfg.AdminURL("/users/"+url.PathEscape(account)+"/reset-password"), nil)
}

func (s *Service) TrafficStats(ctx context.Context) (gateway.Body, error) {
	return s.gw.GetJSON(ctx, s.cfg.AdminURL("/traffic-stats"))
}

func trimBase(base string) string {
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	if base != "" && base[0] != '/' {
		base = "/" + base
	}
	return base
}

package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/erazemk/scanpoint/internal/model"
)

// LoginResult is the backend's answer to a successful login.
type LoginResult struct {
	AccessToken string     `json:"access_token"`
	User        model.User `json:"user"`
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var res LoginResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &res)
	if err != nil {
		return nil, err
	}
	if res.AccessToken == "" {
		return nil, errors.New("login response has no access token")
	}
	if res.User.Username == "" {
		res.User.Username = username
	}
	return &res, nil
}

// Logout invalidates the current access token on the backend.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

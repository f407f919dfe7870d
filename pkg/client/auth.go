package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rentease/admin/pkg/models"
)

// LoginRequest represents a sign-in request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login signs in as an admin and keeps the session token for subsequent
// requests.
func (c *Client) Login(ctx context.Context, email, password string) (*models.Session, error) {
	var result models.Session
	err := c.call(ctx, http.MethodPost, "/api/auth/login", LoginRequest{Email: email, Password: password}, &result)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	c.SetAuthToken(result.Token)
	return &result, nil
}

// Logout ends the session and clears the token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.call(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	c.SetAuthToken("")
	return nil
}

// Session returns the current session.
func (c *Client) Session(ctx context.Context) (*models.Session, error) {
	var result models.Session
	if err := c.call(ctx, http.MethodGet, "/api/auth/session", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateAdminRequest registers another admin.
type CreateAdminRequest struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type CreateAdminResponse struct {
	Message string       `json:"message"`
	Admin   models.Admin `json:"admin"`
}

func (c *Client) CreateAdmin(ctx context.Context, req CreateAdminRequest) (*CreateAdminResponse, error) {
	var result CreateAdminResponse
	if err := c.call(ctx, http.MethodPost, "/api/admins", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

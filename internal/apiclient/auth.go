package apiclient

import (
	"context"
	"net/http"

	"expenso/internal/core"
)

func (c *Client) Login(ctx context.Context, creds core.Credentials) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", nil, creds, &out)
	return out, err
}

// Register uses /auth/register; the /signup alias some deployments expose is not used.
func (c *Client) Register(ctx context.Context, reg core.Registration) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", nil, reg, &out)
	return out, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	var out TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, nil, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var out MessageResponse
	err := c.do(ctx, http.MethodPost, "/auth/forgot-password", nil, map[string]string{"email": email}, &out)
	return out.Message, err
}

func (c *Client) ResetPassword(ctx context.Context, token, password string) (string, error) {
	var out MessageResponse
	body := map[string]string{"token": token, "password": password}
	err := c.do(ctx, http.MethodPost, "/auth/reset-password", nil, body, &out)
	return out.Message, err
}

func (c *Client) UpdateProfile(ctx context.Context, p ProfileUpdate) (core.User, error) {
	var out UserResponse
	if err := c.do(ctx, http.MethodPut, "/auth/profile", nil, p, &out); err != nil {
		return core.User{}, err
	}
	return out.User, nil
}

func (c *Client) ChangePassword(ctx context.Context, p PasswordChange) (string, error) {
	var out MessageResponse
	err := c.do(ctx, http.MethodPut, "/auth/change-password", nil, p, &out)
	return out.Message, err
}

package api

import (
	"context"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

type DetailsUpdate struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type PasswordUpdate struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type PasswordReset struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*domain.Identity, error) {
	var user domain.User
	env, err := c.do(ctx, request{method: http.MethodPost, path: path, body: body}, &user)
	if err != nil {
		return nil, err
	}
	if env.Token == "" {
		return nil, &Error{Status: http.StatusBadGateway, Message: "login response did not include a token"}
	}
	return &domain.Identity{Token: env.Token, User: user}, nil
}

func (c *Client) Login(ctx context.Context, creds Credentials) (*domain.Identity, error) {
	return c.authenticate(ctx, "/auth/login", creds)
}

func (c *Client) AdminLogin(ctx context.Context, creds Credentials) (*domain.Identity, error) {
	return c.authenticate(ctx, "/auth/admin/login", creds)
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*domain.Identity, error) {
	return c.authenticate(ctx, "/auth/register", req)
}

func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UpdateDetails(ctx context.Context, upd DetailsUpdate) (*domain.User, error) {
	var user domain.User
	if _, err := c.do(ctx, request{method: http.MethodPut, path: "/auth/updatedetails", body: upd}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdatePassword returns the rotated token when the server issues one.
func (c *Client) UpdatePassword(ctx context.Context, upd PasswordUpdate) (string, error) {
	env, err := c.do(ctx, request{method: http.MethodPut, path: "/auth/updatepassword", body: upd}, nil)
	if err != nil {
		return "", err
	}
	return env.Token, nil
}

// Logout invalidates token on the server. The token is passed explicitly because the
// session has usually forgotten it by the time this runs.
func (c *Client) Logout(ctx context.Context, token string) error {
	r := request{method: http.MethodGet, path: "/auth/logout"}
	if token != "" {
		r.headers = map[string]string{"Authorization": "Bearer " + token}
	}
	_, err := c.do(ctx, r, nil)
	return err
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	_, err := c.do(ctx, request{method: http.MethodPost, path: "/auth/forgotpassword", body: map[string]string{"email": email}}, nil)
	return err
}

func (c *Client) ResetPassword(ctx context.Context, reset PasswordReset) error {
	_, err := c.do(ctx, request{method: http.MethodPost, path: "/auth/resetpassword", body: reset}, nil)
	return err
}

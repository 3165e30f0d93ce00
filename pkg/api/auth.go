package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/msniranjan18/chit-chat-client/pkg/models"
)

// CheckAuth returns the user owning the current session cookie.
func (c *Client) CheckAuth(ctx context.Context) (*models.User, error) {
	return c.userRequest(ctx, "auth.check", http.MethodGet, "/auth/check", nil)
}

func (c *Client) Signup(ctx context.Context, req models.AuthRequest) (*models.User, error) {
	return c.userRequest(ctx, "auth.signup", http.MethodPost, "/auth/signup", req)
}

func (c *Client) Login(ctx context.Context, req models.AuthRequest) (*models.User, error) {
	return c.userRequest(ctx, "auth.login", http.MethodPost, "/auth/login", req)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, "auth.logout", http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) UpdateProfile(ctx context.Context, req models.ProfileUpdateRequest) (*models.User, error) {
	return c.userRequest(ctx, "auth.update_profile", http.MethodPut, "/auth/update-profile", req)
}

func (c *Client) userRequest(ctx context.Context, endpoint, method, path string, body any) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, endpoint, method, path, body, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, &Error{Kind: KindDecode, Err: fmt.Errorf("%s response has no user id", endpoint)}
	}
	return &user, nil
}

package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/msniranjan18/chit-chat-client/pkg/models"
)

// ListUsers returns every user the session can message, excluding itself.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, "messages.users", http.MethodGet, "/messages/users", nil, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// GetMessages returns the history between the session user and peerID,
// oldest first.
func (c *Client) GetMessages(ctx context.Context, peerID string) ([]models.Message, error) {
	path, err := peerPath("/messages/", peerID)
	if err != nil {
		return nil, err
	}

	var messages []models.Message
	if err := c.do(ctx, "messages.history", http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}

func (c *Client) SendMessage(ctx context.Context, peerID string, req models.MessageRequest) (*models.Message, error) {
	path, err := peerPath("/messages/send/", peerID)
	if err != nil {
		return nil, err
	}

	var msg models.Message
	if err := c.do(ctx, "messages.send", http.MethodPost, path, req, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, &Error{Kind: KindDecode, Err: fmt.Errorf("messages.send response has no message id")}
	}
	return &msg, nil
}

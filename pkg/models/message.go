package models

import (
	"time"
)

type Message struct {
	ID         string    `json:"_id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// MessageRequest is the body of a send. Image carries either a data URL or
// a hosted image URL; the server decides how to store it.
type MessageRequest struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

func (r MessageRequest) IsEmpty() bool {
	return r.Text == "" && r.Image == ""
}

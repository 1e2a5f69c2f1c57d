package models

import "time"

// ChatMessage is one classroom chat message.
type ChatMessage struct {
	ID         string    `json:"id,omitempty"`
	Text       string    `json:"text"`
	SenderName string    `json:"senderName"`
	SenderID   string    `json:"senderId"`
	SenderRole Role      `json:"senderRole"`
	Timestamp  time.Time `json:"timestamp"`
}

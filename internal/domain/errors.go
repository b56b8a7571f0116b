package domain

import "errors"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotParticipant       = errors.New("user is not a participant")
	ErrEmptyMessage         = errors.New("empty message")
	ErrMessageTooLong       = errors.New("message too long")
	ErrNoParticipants       = errors.New("conversation needs at least two participants")
)

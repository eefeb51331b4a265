package core

import "github.com/google/uuid"

// NewID generates a random identifier for sessions, tool calls and records.
func NewID() string { return uuid.NewString() }

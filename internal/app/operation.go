package app

import "github.com/google/uuid"

// Invocation tags one CLI run for the log. Every line the run writes carries
// the same ID, so a log file shared by several staging runs can be teased
// apart afterwards.
type Invocation struct {
	ID      string
	Command string
	Status  string // "success" or "error"
}

// NewInvocation creates an Invocation for the named command.
func NewInvocation(command string) *Invocation {
	return &Invocation{
		ID:      uuid.NewString(),
		Command: command,
		Status:  "success",
	}
}

// Fail marks the invocation as failed.
func (inv *Invocation) Fail() {
	inv.Status = "error"
}

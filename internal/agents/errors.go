package agents

import (
	"errors"
	"fmt"
)

var (
	ErrAgentUnavailable = errors.New("agent unavailable")
	ErrAgentRejected    = errors.New("agent rejected request")
	ErrMissingCaseID    = errors.New("case_id is required")
	ErrNoFiles          = errors.New("no files provided")
	ErrPayloadTooLarge  = errors.New("payload too large")
)

// Kind classifies an agent failure.
type Kind string

const (
	KindUnavailable Kind = "agent_unavailable"
	KindRejected    Kind = "agent_rejected"
)

// Error describes a failed agent call. Status and Body are set for rejections.
type Error struct {
	Kind   Kind
	Agent  string
	URL    string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRejected:
		return fmt.Sprintf("%s rejected request (status %d): %s", e.Agent, e.Status, e.Body)
	default:
		return fmt.Sprintf("%s unreachable at %s, check that the agent is running: %v", e.Agent, e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrAgentUnavailable:
		return e.Kind == KindUnavailable
	case ErrAgentRejected:
		return e.Kind == KindRejected
	}
	return false
}

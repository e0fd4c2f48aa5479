package agent

import (
	"errors"
	"fmt"
)

// DefinitionError reports a scenario group whose definition is inconsistent,
// e.g. configuration for an agent that is not part of the group.
// It is raised at registration time, before any process is spawned.
type DefinitionError struct {
	// Group is the scenario group name, if known.
	Group string

	// Agent is the offending agent name, if the error concerns one.
	Agent string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *DefinitionError) Error() string {
	switch {
	case e.Group != "" && e.Agent != "":
		return fmt.Sprintf("scenario group %q: agent %q: %s", e.Group, e.Agent, e.Message)
	case e.Group != "":
		return fmt.Sprintf("scenario group %q: %s", e.Group, e.Message)
	case e.Agent != "":
		return fmt.Sprintf("agent %q: %s", e.Agent, e.Message)
	default:
		return e.Message
	}
}

// IsDefinitionError returns true if err is or wraps a *DefinitionError.
func IsDefinitionError(err error) bool {
	var de *DefinitionError
	return errors.As(err, &de)
}

// TransitionError reports an attempt to move an agent out of lifecycle order.
type TransitionError struct {
	Agent string
	From  State
	To    State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("agent %q: invalid transition %s -> %s", e.Agent, e.From, e.To)
}

package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/roach88/lnharness/internal/agent"
	"github.com/roach88/lnharness/internal/catalog"
)

// LoadError represents an error that occurred while loading a catalog.
type LoadError struct {
	Code    string
	Message string
	Group   string // offending group, for definition errors
	Agent   string // offending agent, for definition errors
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ExitCode maps the error to a CLI exit code. A catalog that parses but
// defines an inconsistent group is a validation failure; anything that
// prevents reading the file is a command error.
func (e *LoadError) ExitCode() int {
	if e.Code == ErrCodeInvalidGroup {
		return ExitFailure
	}
	return ExitCommandError
}

// Details returns the structured part of the error for JSON output.
func (e *LoadError) Details() map[string]string {
	if e.Group == "" && e.Agent == "" {
		return nil
	}
	d := map[string]string{}
	if e.Group != "" {
		d["group"] = e.Group
	}
	if e.Agent != "" {
		d["agent"] = e.Agent
	}
	return d
}

// LoadCatalog loads the catalog file at path. An empty path selects the
// built-in groups.
func LoadCatalog(path string) (*catalog.Catalog, *LoadError) {
	if path == "" {
		return catalog.Builtin(), nil
	}

	c, err := catalog.LoadFile(path)
	if err == nil {
		return c, nil
	}

	le := &LoadError{Code: ErrCodeLoadFailed, Message: err.Error(), Err: err}
	var de *agent.DefinitionError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		le.Code = ErrCodeNotFound
		le.Message = fmt.Sprintf("catalog file not found: %s", path)
	case errors.As(err, &de):
		le.Code = ErrCodeInvalidGroup
		le.Group = de.Group
		le.Agent = de.Agent
	}
	return nil, le
}

package model

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// ConfigError reports an invalid combination of inputs or options.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError formats a ConfigError.
func NewConfigError(format string, args ...any) error {
	return &ConfigError{Err: eris.Errorf(format, args...)}
}

// IsConfig returns true if any error in the chain is a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// InfeasibleError reports that the solver found no feasible selection.
type InfeasibleError struct {
	Status string
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("model is infeasible: no solution found (status %s)", e.Status)
}

// IsInfeasible returns true if any error in the chain is an InfeasibleError.
func IsInfeasible(err error) bool {
	var ie *InfeasibleError
	return errors.As(err, &ie)
}

// LookupError reports a single-value lookup that matched zero or several rows.
type LookupError struct {
	Kind    string
	Key     string
	Matches int
}

func (e *LookupError) Error() string {
	if e.Matches == 0 {
		return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
	}
	return fmt.Sprintf("%s %s matched %d rows, expected exactly one", e.Kind, e.Key, e.Matches)
}

// NewLookupError builds a LookupError for the given key.
func NewLookupError(kind string, key any, matches int) *LookupError {
	return &LookupError{Kind: kind, Key: fmt.Sprint(key), Matches: matches}
}

// IsLookup returns true if any error in the chain is a LookupError.
func IsLookup(err error) bool {
	var le *LookupError
	return errors.As(err, &le)
}

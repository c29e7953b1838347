package service

import (
	"errors"
	"fmt"
)

// ErrClientClosed indicates the client has been closed.
var ErrClientClosed = errors.New("piimap: client is closed")

// ErrRecognitionDegraded indicates the NER model is unavailable and
// detection fell back to pattern rules only.
var ErrRecognitionDegraded = errors.New("piimap: recognition degraded to pattern-only")

// ConfigurationError marks an invalid rule or setting. Bad rules are
// skipped, never fatal.
type ConfigurationError struct {
	Subject string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %v", e.Subject, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ConnectorError marks a failure talking to a scanned target. It is fatal
// for the run only when it occurs during inventory.
type ConnectorError struct {
	Phase     string
	Container string
	Err       error
}

func (e *ConnectorError) Error() string {
	if e.Container == "" {
		return fmt.Sprintf("connector error during %s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("connector error during %s of %q: %v", e.Phase, e.Container, e.Err)
}

func (e *ConnectorError) Unwrap() error { return e.Err }

// PersistenceError marks a failed result commit. Each container commits
// independently, so one failure never rolls back another container's rows.
type PersistenceError struct {
	Container string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error for container %q: %v", e.Container, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

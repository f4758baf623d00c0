package auditor

import (
	"errors"
	"fmt"
)

// ErrEmptyConfig is the fetch cause when a device answers the configuration command
// with no text.
var ErrEmptyConfig = errors.New("device returned an empty configuration")

// ConnectionError wraps a failure to open a session.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// FetchError wraps a failure to retrieve the running configuration.
type FetchError struct {
	Address string
	Command string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching configuration from %s with %q failed: %v", e.Address, e.Command, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ArtifactError wraps a failed artifact write. It never fails an audit.
type ArtifactError struct {
	Address  string
	Artifact string
	Err      error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("saving %s for %s failed: %v", e.Artifact, e.Address, e.Err)
}

func (e *ArtifactError) Unwrap() error {
	return e.Err
}

package scan

import (
	"errors"
	"fmt"
)

// ErrRootNotFound is returned when the scan root path does not exist. It is
// one of only two scan-aborting conditions; everything else degrades locally.
var ErrRootNotFound = errors.New("scan root path does not exist")

// RegistryLoadError reports a configured plugin id that does not resolve to
// any registered plugin. A missing plugin the operator explicitly configured
// is a configuration error, not a data error, so it aborts the whole scan.
type RegistryLoadError struct {
	ID string
}

func (e *RegistryLoadError) Error() string {
	return fmt.Sprintf("scanner plugin %q is not registered", e.ID)
}

// FileFailure records a file that could not be parsed by any tier. Failures
// are collected per plugin and surfaced through the scan result; they never
// abort the scan.
type FileFailure struct {
	Path    string `json:"path"`
	Tier    Tier   `json:"tier"`
	Message string `json:"message"`
}

func (f FileFailure) String() string {
	return fmt.Sprintf("%s: %s parse failed: %s", f.Path, f.Tier, f.Message)
}

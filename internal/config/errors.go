package config

import "fmt"

// NotFoundError represents a missing config file.
type NotFoundError struct {
	Path string
	Hint string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("config file not found: %s\n%s", e.Path, e.Hint)
}

// InvalidError represents a malformed config file.
type InvalidError struct {
	Path    string
	Message string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid config: %s\n%s", e.Path, e.Message)
}

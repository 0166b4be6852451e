package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MaxProjectRefLength bounds the length of a project reference.
const MaxProjectRefLength = 128

// Project is a named working directory a terminal can be opened in.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidateProjectRef checks that ref can be used as a project lookup key.
// A reference is a single, non-empty path segment.
func ValidateProjectRef(ref string) error {
	switch {
	case ref == "", ref == ".", ref == "..":
		return ErrInvalidProjectRef
	case len(ref) > MaxProjectRefLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidProjectRef, MaxProjectRefLength)
	case strings.ContainsAny(ref, "/\\\x00"):
		return fmt.Errorf("%w: contains a path separator", ErrInvalidProjectRef)
	}
	return nil
}

// CreateProjectRequest represents a request to register a project.
type CreateProjectRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path" binding:"required"`
}

// Validate validates the request and normalizes Path to an absolute, clean path.
func (r *CreateProjectRequest) Validate() error {
	if r.Path == "" {
		return ErrPathRequired
	}
	if r.ID != "" {
		if err := ValidateProjectRef(r.ID); err != nil {
			return err
		}
	}

	abs, err := filepath.Abs(r.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrPathNotDirectory, abs)
	}
	r.Path = abs
	return nil
}

package model

import "errors"

var (
	// ErrProjectNotFound is returned when a project reference does not resolve.
	ErrProjectNotFound = errors.New("project not found")

	// ErrInvalidProjectRef is returned when a project reference cannot be used as a lookup key.
	ErrInvalidProjectRef = errors.New("invalid project reference")

	// ErrPathRequired is returned when a project creation request is missing the path.
	ErrPathRequired = errors.New("path is required")

	// ErrPathNotDirectory is returned when a project path does not name an existing directory.
	ErrPathNotDirectory = errors.New("path is not a directory")

	// ErrProjectExists is returned when a project with the same ID already exists.
	ErrProjectExists = errors.New("project already exists")
)

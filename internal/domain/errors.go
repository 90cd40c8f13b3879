// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the write collides with an existing entity.
var ErrConflict = errors.New("conflict")

// ErrValidation indicates the request failed field validation.
var ErrValidation = errors.New("validation failed")

// ErrForbidden indicates the caller may not act on the entity.
var ErrForbidden = errors.New("forbidden")

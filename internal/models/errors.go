package models

import "errors"

// Domain errors. Handlers map these to HTTP responses with errors.Is.
var (
	ErrLinkNotFound   = errors.New("short URL not found")
	ErrEmptyURL       = errors.New("url cannot be empty")
	ErrInvalidURL     = errors.New("invalid url format")
	ErrEmptyShortCode = errors.New("short code cannot be empty")
	ErrMissingOwner   = errors.New("link must have an owner")
	ErrMissingParent  = errors.New("variant must reference a parent link")
	ErrForbidden      = errors.New("not allowed to modify this resource")

	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

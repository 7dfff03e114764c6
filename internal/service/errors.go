package service

import "errors"

// ErrValidation wraps request-level validation failures so handlers can map
// them to 400/422 without inspecting message text.
var ErrValidation = errors.New("validation failed")

// ErrNotAuthorized marks resources the caller is not a party to.
var ErrNotAuthorized = errors.New("not authorized")

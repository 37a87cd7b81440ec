// Package errors defines the error taxonomy for a push run.
package errors

import "errors"

var ErrValidation = errors.New("input validation failed")
var ErrInconsistentManifestSet = errors.New("some, but not all, of the source images are manifest lists")
var ErrImageNotFound = errors.New("image not found in any local storage")
var ErrCommandFailed = errors.New("external command failed")

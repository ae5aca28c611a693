package importer

import (
	"errors"
	"fmt"

	"github.com/mkranz/matrix-sticker-import/internal/matrix"
	"github.com/mkranz/matrix-sticker-import/internal/media"
	"github.com/mkranz/matrix-sticker-import/internal/telegram"
)

// The error taxonomy of the import pipeline. Per-asset errors are recorded
// against the asset's original index and never abort sibling imports;
// classification decides how a failure is reported at the end of a run.

// FetchError is a network or transport failure reaching either platform.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch failed: %v", e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// PlatformRejection is a well-formed non-success response from either
// platform's API, with code and description preserved.
type PlatformRejection struct {
	Err error
}

func (e *PlatformRejection) Error() string { return fmt.Sprintf("platform rejected request: %v", e.Err) }
func (e *PlatformRejection) Unwrap() error { return e.Err }

// ConversionError is a renderer, decoder or encoder failure, or a format
// unsupported by this environment.
type ConversionError struct {
	Err error
}

func (e *ConversionError) Error() string { return fmt.Sprintf("conversion failed: %v", e.Err) }
func (e *ConversionError) Unwrap() error { return e.Err }

// StoreError is a dedup log append failure. It degrades bookkeeping for
// future runs but never invalidates an already-obtained media reference.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("dedup store write failed: %v", e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// SerializationError is an output document that could not be encoded or
// written.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string { return fmt.Sprintf("serialization failed: %v", e.Err) }
func (e *SerializationError) Unwrap() error { return e.Err }

// InvalidReference is a pack URL or identifier that matched none of the
// recognized shapes.
type InvalidReference struct {
	Ref string
	Err error
}

func (e *InvalidReference) Error() string { return fmt.Sprintf("invalid pack reference %q: %v", e.Ref, e.Err) }
func (e *InvalidReference) Unwrap() error { return e.Err }

// classifyCallError wraps an error from a platform call: well-formed API
// rejections keep their code and description, everything else is a
// transport failure.
func classifyCallError(err error) error {
	var tgErr *telegram.APIError
	var mxErr *matrix.APIError
	var upErr *matrix.UploadError
	if errors.As(err, &tgErr) || errors.As(err, &mxErr) || errors.As(err, &upErr) {
		return &PlatformRejection{Err: err}
	}
	return &FetchError{Err: err}
}

// classifyConversionError keeps unsupported-format failures visibly typed.
func classifyConversionError(err error) error {
	var unsupported *media.UnsupportedFormatError
	if errors.As(err, &unsupported) {
		return &ConversionError{Err: unsupported}
	}
	return &ConversionError{Err: err}
}

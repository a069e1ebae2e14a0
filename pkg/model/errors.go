package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrMissingCredential is returned before any network call when no API
	// key is stored and no fallback is configured.
	ErrMissingCredential = goerr.New("API key is missing")

	// ErrNoImageData is returned when a provider response carries no inline
	// image payload in any content part.
	ErrNoImageData = goerr.New("no visual data received from the model")

	// ErrUploadExhausted is returned when every upload relay strategy failed.
	ErrUploadExhausted = goerr.New("all upload strategies failed")

	// ErrPersistedStateCorrupt marks an unparseable persisted history. It is
	// never fatal: loading degrades to an empty history.
	ErrPersistedStateCorrupt = goerr.New("persisted history is corrupt")

	// ErrRequestInFlight is returned when a generate or edit request is
	// submitted while another one is still running.
	ErrRequestInFlight = goerr.New("another request is in flight")

	ErrInvalidAspectRatio = goerr.New("invalid aspect ratio")
	ErrEmptyPrompt        = goerr.New("prompt is empty")
	ErrNoActiveItem       = goerr.New("no active image to edit")
	ErrItemNotFound       = goerr.New("history item not found")
)

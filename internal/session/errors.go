package session

import (
	"errors"
	"unicode/utf8"
)

// Failure taxonomy for the session manager. The first three are rejected
// before any session is created or any event is emitted.
var (
	// ErrEmptyInput means the user text was empty after trimming.
	ErrEmptyInput = errors.New("message text is empty")

	// ErrMissingCredential means no API key is configured. User-correctable,
	// surfaced verbatim.
	ErrMissingCredential = errors.New("no API key configured; set one in settings")

	// ErrSessionBusy means the tab already has a live session with a
	// different request id.
	ErrSessionBusy = errors.New("a response is already streaming for this tab")

	// ErrSessionExists means the exact (tab, request) pair is already live.
	// Request ids must be client-generated unique tokens.
	ErrSessionExists = errors.New("duplicate request id for live session")
)

// CanceledMessage is the STREAM_ERROR text for a cooperatively canceled
// session.
const CanceledMessage = "generation canceled"

// maxErrorLen bounds provider error text passed through to the UI.
const maxErrorLen = 300

func truncateError(msg string) string {
	if len(msg) <= maxErrorLen {
		return msg
	}
	// Back up to a rune boundary so the cut never emits invalid UTF-8.
	cut := maxErrorLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + "..."
}

// Package dc09 implements the SIA DC-09 IP block codec: payload framing,
// CRC-16 validation, AES-CBC encryption and acknowledgement parsing, as
// specified by SIA DC-09-2007 / EN 50136-1.
package dc09

import "errors"

// Configuration errors — returned synchronously to the caller, never
// queued for retry.
var (
	// ErrInvalidKeyLength is returned by NewBlock when a non-nil key is
	// neither 16 nor 32 bytes (AES-128 / AES-256).
	ErrInvalidKeyLength = errors.New("dc09: key length must be 16 or 32 bytes")

	// ErrPayloadUnterminated is returned by Build when the payload does
	// not end with the closing ']' the DC-09 grammar requires.
	ErrPayloadUnterminated = errors.New("dc09: payload must terminate with ']'")

	// ErrUnsupportedType is returned by the spt package when asked to
	// encode a payload for a dc09type other than SIA-DCS, ADM-CID or NULL.
	// Build itself frames whatever Type it is given. spec.md §7 notes the
	// original Python implementation silently emits an empty payload here
	// instead; this implementation tightens that to an explicit error.
	ErrUnsupportedType = errors.New("dc09: unsupported message type")
)

// Protocol errors — surfaced from ack parsing; the caller's transfer
// attempt is considered failed but the path remains available for retry.
var (
	// ErrMalformedAck covers short frames, length/CRC mismatches, and
	// message-number mismatches outside of NAK.
	ErrMalformedAck = errors.New("dc09: malformed acknowledgement")

	// ErrUnknownStatus is returned when the status token is not one of
	// ACK, NAK, DUH or RSP.
	ErrUnknownStatus = errors.New("dc09: unknown acknowledgement status")
)

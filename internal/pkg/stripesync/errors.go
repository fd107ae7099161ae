package stripesync

import "errors"

var (
	// ErrInvalidSignature rejects a webhook whose signature header is
	// missing, malformed, expired or does not match the payload.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrUnhandledEvent is returned for event types the engine does not
	// recognize. A silently dropped event is a worse failure mode than a
	// loud one for a billing mirror, so unknown types always error.
	ErrUnhandledEvent = errors.New("unhandled webhook event")

	// ErrUpstreamNotFound reports that a referenced object no longer exists
	// upstream. RemoteClient implementations wrap it so backfill can skip
	// vanished references without failing the parent write.
	ErrUpstreamNotFound = errors.New("object no longer exists upstream")
)

package http

import "time"

const (
	extensionPairHeader = "X-QA-Extension"
	agentSessionHeader  = "X-QA-Session"

	// websocket handshakes from the extension cannot carry custom headers
	extensionPairQuery = "pair_token"
)

// Generic HTTP / JSON strings
const (
	HTTPErrorInvalidJSONText = "invalid JSON"
	HTTPErrorForbiddenText   = "forbidden"
	HTTPErrorForbiddenHost   = "forbidden host"
	HTTPErrorUnauthorized    = "unauthorized"
	HTTPErrorNotPairedText   = "extension not paired"
	HTTPErrorUnknownPortText = "unknown provider port"
	HTTPErrorInternalText    = "internal error"
)

// Pairing flow constants
const (
	PairingErrorMissingPairIDOrCodeText = "missing pair_id or code"
	PairingErrorPairExpiredText         = "pair expired"
	PairingErrorInvalidCodeText         = "invalid code"

	PairingExchangeTTL = 60 * time.Second
)

// Consent API messages
const (
	ConsentErrorInvalidGrantText   = "grant needs an account and a matching state"
	ConsentErrorMissingAccountText = "missing account address"
	ConsentErrorStoreText          = "permission store unavailable"
)

// Provider channel query parameters
const (
	ProviderQueryPort    = "port"
	ProviderQuerySender  = "sender"
	ProviderQueryTitle   = "title"
	ProviderQueryFavicon = "favicon"
)

const (
	DefaultReadLimit    = 1 << 20
	channelWriteTimeout = 5 * time.Second
	corsMaxAge          = 10 * time.Minute
)

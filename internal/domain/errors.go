package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrBookStale      = errors.New("orderbook stale, re-snapshot required")
	ErrBookNotReady   = errors.New("orderbook not seeded")
	ErrGatewayTimeout = errors.New("execution gateway timeout")
	ErrWSDisconnect   = errors.New("websocket disconnected")
	ErrModelMissing   = errors.New("prediction model unavailable")
)

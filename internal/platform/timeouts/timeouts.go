// Package timeouts defines shared timeout constants used across the process.
// Centralizing these values prevents drift between collaborator boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// HTTPRequest caps the time allowed for a single outbound HTTP request to the
// game service or the language-model provider.
const HTTPRequest = 90 * time.Second

// ReadHeader limits how long the bridge HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the bridge HTTP server waits for in-flight
// requests during graceful shutdown.
const Shutdown = 5 * time.Second

// TransportDial caps the wait time when dialing a chat transport peer.
const TransportDial = 10 * time.Second

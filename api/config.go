// Package api provides the HTTP API server that answers queries over a
// loaded memorag pipeline and exposes the answer log.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// DisableMCP leaves the /mcp endpoint unmounted.
	DisableMCP bool
}

// Package server provides the HTTP server of the statuspage API.
//
// The architecture follows the pattern: CLI → App → Server → Router → Handlers.
// Committed writes flow Handlers → Bridge → Hub → websocket and SSE
// connections in the organization's room.
//
// Usage:
//
//	cfg := server.DefaultConfig()
//	cfg.Port = 3000
//
//	srv, err := server.New(app, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	srv.Start() // start the realtime hub
//	http.ListenAndServe(":3000", srv.Handler())
package server

//go:generate gomarkdoc --output README.md .

// Package application provides the application interface for statuspage
// commands.
//
// The Application interface is the contract between the application layer
// (cmd/statuspage/app) and command and server implementations. Commands accept
// the interface rather than the concrete App so tests can substitute a small
// fake.
//
// Usage in Commands:
//
//	func NewCommand(app application.Application) *cobra.Command {
//	    return &cobra.Command{
//	        RunE: func(cmd *cobra.Command, args []string) error {
//	            st, err := app.Store()
//	            if err != nil {
//	                return err
//	            }
//	            // ... use st
//	            return nil
//	        },
//	    }
//	}
package application

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/statuspage/internal/realtime/backplane"
	"github.com/agentstation/statuspage/internal/store"
)

// Application provides what commands and the server need from the process.
//
// Thread Safety: All methods must be safe for concurrent access.
type Application interface {
	// Store returns the configured store, opening it on first use.
	Store() (store.Store, error)

	// Backplane returns the cross-process backplane, or nil when the
	// process runs alone.
	Backplane() (backplane.Backplane, error)

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}

package application

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/statuspage/internal/realtime/backplane"
	"github.com/agentstation/statuspage/internal/store"
	"github.com/agentstation/statuspage/internal/store/memory"
)

// Mock provides a mock implementation of Application for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default value: a memory
// store shared by every call, no backplane and a no-op logger.
//
// Example Usage:
//
//	mock := &application.Mock{}
//	srv, err := server.New(mock, server.DefaultConfig())
//	// ... exercise srv; mock.Store() returns the same memory store
type Mock struct {
	StoreFunc     func() (store.Store, error)
	BackplaneFunc func() (backplane.Backplane, error)
	LoggerFunc    func() *zerolog.Logger
	VersionFunc   func() string
	CommitFunc    func() string
	DateFunc      func() string
	BuiltByFunc   func() string

	once  sync.Once
	store store.Store
}

var _ Application = (*Mock)(nil)

// Store returns a store using the mock function or a shared memory store.
func (m *Mock) Store() (store.Store, error) {
	if m.StoreFunc != nil {
		return m.StoreFunc()
	}
	m.once.Do(func() { m.store = memory.New() })
	return m.store, nil
}

// Backplane returns a backplane using the mock function or nil.
func (m *Mock) Backplane() (backplane.Backplane, error) {
	if m.BackplaneFunc != nil {
		return m.BackplaneFunc()
	}
	return nil, nil
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// Version returns version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns commit using the mock function or "unknown".
func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

// Date returns date using the mock function or "unknown".
func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

// BuiltBy returns builtBy using the mock function or "unknown".
func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "unknown"
}

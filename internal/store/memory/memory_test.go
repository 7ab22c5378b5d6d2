package memory_test

import (
	"testing"

	"github.com/agentstation/statuspage/internal/store"
	"github.com/agentstation/statuspage/internal/store/memory"
	"github.com/agentstation/statuspage/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}

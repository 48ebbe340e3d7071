package audit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/example/storefront/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type failingSink struct {
	mu    sync.Mutex
	calls int
}

func (f *failingSink) CreateAuditLog(ctx context.Context, log *repository.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("disk full")
}

func TestRecorder_WritesEventsInOrder(t *testing.T) {
	store := repository.NewMemoryStore()
	recorder, err := NewRecorder(store, "storefront", zap.NewNop())
	require.NoError(t, err)

	entityID := repository.NewID()
	recorder.Record(&Event{Action: ActionSignup, UserID: entityID, EntityID: entityID})
	recorder.Record(&Event{Action: ActionLogin, UserID: entityID, EntityID: entityID, Data: map[string]interface{}{"email": "ada@example.com"}})
	recorder.Stop()

	logs, err := store.GetAuditLogs(context.Background(), entityID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, ActionLogin, logs[0].Action)
	assert.Equal(t, ActionSignup, logs[1].Action)
	assert.Equal(t, "storefront", logs[0].Service)
	assert.Equal(t, "ada@example.com", logs[0].Data["email"])
}

func TestRecorder_SinkErrorsAreLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	sink := &failingSink{}

	recorder, err := NewRecorder(sink, "storefront", zap.New(core))
	require.NoError(t, err)

	recorder.Record(&Event{Action: ActionCheckout, EntityID: "order-1"})
	recorder.Stop()

	assert.Equal(t, 1, sink.calls)
	entries := logs.FilterMessage("Failed to write audit log").All()
	require.Len(t, entries, 1)
	assert.Equal(t, ActionCheckout, entries[0].ContextMap()["action"])
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var recorder *Recorder
	assert.NotPanics(t, func() {
		recorder.Record(&Event{Action: ActionLogin})
		recorder.Stop()
	})
}

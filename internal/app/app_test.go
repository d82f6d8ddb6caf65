package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pocketsafety/backend/config"
	"github.com/pocketsafety/backend/internal/models"
)

func memoryConfig(t *testing.T) *config.Config {
	return &config.Config{
		Store: config.StoreConfig{Backend: "memory", KeyPrefix: "test:", RecordingsDir: t.TempDir()},
	}
}

func TestOpenMemoryBackend(t *testing.T) {
	ctx := context.Background()
	d, err := Open(ctx, memoryConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer d.Close()

	assert.Nil(t, d.Redis)
	assert.Nil(t, d.Queue())

	store := d.History()
	_, err = store.AddSafetyEvent(ctx, models.SafetyEvent{})
	require.NoError(t, err)
	assert.Len(t, store.SafetyEvents(ctx), 1)

	_, err = d.ShareProcessor(ctx, store)
	assert.ErrorIs(t, err, ErrQueueUnavailable)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Store.Backend = "etcd"
	_, err := Open(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

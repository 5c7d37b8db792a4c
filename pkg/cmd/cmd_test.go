package cmd

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapilot/datapilot/pkg/locker"
	"github.com/datapilot/datapilot/pkg/persistence/file"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestParsePersistenceProvider(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"./data", "file"},
		{"file://./data", "file"},
		{"postgres://localhost:5432/datapilot", "postgres"},
		{"postgresql://localhost:5432/datapilot", "postgresql"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, parsePersistenceProvider(tt.url))
		})
	}
}

func TestNewPersistenceFileBackend(t *testing.T) {
	dir := t.TempDir()

	p, err := NewPersistence(context.Background(), testLogger(), "file://"+dir)
	require.NoError(t, err)

	_, ok := p.(*file.FilePersistence)
	assert.True(t, ok)
	assert.NoError(t, p.HealthCheck(context.Background()))
}

func TestNewTargetLocker(t *testing.T) {
	l, err := NewTargetLocker("")
	require.NoError(t, err)

	_, ok := l.(*locker.MemoryLocker)
	assert.True(t, ok)

	l, err = NewTargetLocker("redis://localhost:6379/0")
	require.NoError(t, err)

	_, ok = l.(*locker.RedisLocker)
	assert.True(t, ok)

	_, err = NewTargetLocker("://bad")
	assert.Error(t, err)
}

func TestNewEventBusProviders(t *testing.T) {
	for _, provider := range []string{"", "memory", "gochannel"} {
		bus, err := NewEventBus(provider, "test-service", testLogger())
		require.NoError(t, err)
		require.NoError(t, bus.Close())
	}

	_, err := NewEventBus("carrier-pigeon", "test-service", testLogger())
	assert.Error(t, err)
}

package metrics

import (
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pair-alert-bot/internal/database"
)

func TestTrackMessage(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.TrackMessage(1, "")
	m.TrackMessage(1, "")
	m.TrackMessage(2, "group")

	assert.Equal(t, 3.0, GetMetricValue(m.MessagesHandled))
	assert.Equal(t, 2.0, GetMetricValue(m.ChannelsCount))
	assert.Equal(t, "PrivateChat-1", m.ChannelsSet[1])
	assert.Equal(t, 2.0, GetMetricValue(m.MessagesPerChannel.WithLabelValues("1", "PrivateChat-1")))
}

func TestSaveAndLoadFromDB(t *testing.T) {
	require.NoError(t, database.InitDB(filepath.Join(t.TempDir(), "bot.db")))
	t.Cleanup(func() { database.CloseDB() })

	saved := New(prometheus.NewRegistry())
	saved.TrackMessage(5, "traders")
	saved.CommandsProcessed.Add(4)
	saved.Ticks.Add(10)
	saved.SaveToDB()

	loaded := New(prometheus.NewRegistry())
	loaded.LoadFromDB()

	assert.Equal(t, 1.0, GetMetricValue(loaded.MessagesHandled))
	assert.Equal(t, 4.0, GetMetricValue(loaded.CommandsProcessed))
	assert.Equal(t, 10.0, GetMetricValue(loaded.Ticks))
	assert.Equal(t, 1.0, GetMetricValue(loaded.ChannelsCount))
	assert.Equal(t, "traders", loaded.ChannelsSet[5])
	assert.Equal(t, 1.0, GetMetricValue(loaded.MessagesPerChannel.WithLabelValues("5", "traders")))
}

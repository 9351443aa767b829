package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveLiveness(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	at := func(ago time.Duration) *time.Time {
		ts := now.Add(-ago)
		return &ts
	}

	t.Run("never seen", func(t *testing.T) {
		assert.Equal(t, NodeStatusOffline, DeriveLiveness(nil, DefaultOfflineThreshold, now))
	})

	t.Run("stale", func(t *testing.T) {
		assert.Equal(t, NodeStatusOffline, DeriveLiveness(at(31*time.Second), DefaultOfflineThreshold, now))
	})

	t.Run("fresh", func(t *testing.T) {
		assert.Equal(t, NodeStatusOnline, DeriveLiveness(at(29*time.Second), DefaultOfflineThreshold, now))
	})

	t.Run("exactly threshold", func(t *testing.T) {
		assert.Equal(t, NodeStatusOnline, DeriveLiveness(at(30*time.Second), DefaultOfflineThreshold, now))
	})

	t.Run("stored status ignored", func(t *testing.T) {
		node := &Node{ID: "n1", Status: "online", LastSeen: at(time.Minute)}
		assert.Equal(t, NodeStatusOffline, node.Liveness(DefaultOfflineThreshold, now))
		assert.Equal(t, "offline", node.DisplayStatus(DefaultOfflineThreshold, now))

		node.Status = "degraded"
		node.LastSeen = at(time.Second)
		assert.Equal(t, "degraded", node.DisplayStatus(DefaultOfflineThreshold, now))
	})
}

func TestTaskStateTransitions(t *testing.T) {
	tests := []struct {
		from, to TaskState
		ok       bool
	}{
		{TaskStateCreated, TaskStateRunning, true},
		{TaskStateRunning, TaskStateSucceeded, true},
		{TaskStateRunning, TaskStateFailed, true},
		{TaskStateCreated, TaskStateSucceeded, false},
		{TaskStateRunning, TaskStateCreated, false},
		{TaskStateSucceeded, TaskStateFailed, false},
		{TaskStateFailed, TaskStateRunning, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.True(t, TaskStateSucceeded.IsTerminal())
	assert.True(t, TaskStateFailed.IsTerminal())
	assert.False(t, TaskStateRunning.IsTerminal())
	assert.False(t, TaskState("DONE").IsValid())
}

func TestTagsColumn(t *testing.T) {
	v, err := Tags{"gpu", "edge"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["gpu","edge"]`, v)

	v, err = Tags(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	var tags Tags
	require.NoError(t, tags.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, Tags{"a", "b"}, tags)

	require.NoError(t, tags.Scan(nil))
	assert.Empty(t, tags)

	assert.Error(t, tags.Scan(42))
}

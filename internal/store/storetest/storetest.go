// Package storetest holds the behaviour every types.Store implementation must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ops-console/internal/models"
	"ops-console/internal/store/types"
)

// Run executes the store contract against stores produced by newStore.
// Each subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) types.Store) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Register Node", func(t *testing.T) {
		s := newStore(t)
		seen := base
		node := &models.Node{ID: "n1", ProjectKey: "p1", Name: "first", Tags: models.Tags{"a"}, Status: "online", LastSeen: &seen}

		created, err := s.RegisterNode(ctx, node)
		require.NoError(t, err)
		assert.True(t, created)

		later := base.Add(time.Minute)
		version := "0.2.0"
		again := &models.Node{ID: "n1", ProjectKey: "p1", Name: "renamed", Tags: models.Tags{"b", "c"}, Version: &version, Status: "online", LastSeen: &later}
		created, err = s.RegisterNode(ctx, again)
		require.NoError(t, err)
		assert.False(t, created)

		got, err := s.GetNode(ctx, "n1")
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Name)
		assert.Equal(t, models.Tags{"b", "c"}, got.Tags)
		require.NotNil(t, got.Version)
		assert.Equal(t, "0.2.0", *got.Version)
		require.NotNil(t, got.LastSeen)
		assert.True(t, got.LastSeen.Equal(later))

		other := &models.Node{ID: "n1", ProjectKey: "p2", Name: "renamed", Status: "online", LastSeen: &later}
		_, err = s.RegisterNode(ctx, other)
		assert.ErrorIs(t, err, types.ErrProjectMismatch)

		got, err = s.GetNode(ctx, "n1")
		require.NoError(t, err)
		assert.Equal(t, "p1", got.ProjectKey)
	})

	t.Run("Touch Node", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateNode(ctx, &models.Node{ID: "n1", ProjectKey: "p1", Name: "n1", Status: "offline"}))

		require.NoError(t, s.TouchNode(ctx, "n1", "p1", "busy", base))
		got, err := s.GetNode(ctx, "n1")
		require.NoError(t, err)
		assert.Equal(t, "busy", got.Status)
		require.NotNil(t, got.LastSeen)
		assert.True(t, got.LastSeen.Equal(base))

		assert.ErrorIs(t, s.TouchNode(ctx, "n1", "p2", "online", base), types.ErrNodeNotFound)
		assert.ErrorIs(t, s.TouchNode(ctx, "missing", "p1", "online", base), types.ErrNodeNotFound)
	})

	t.Run("Operator Node CRUD", func(t *testing.T) {
		s := newStore(t)
		node := &models.Node{ID: "n1", ProjectKey: "p1", Name: "n1", Tags: models.Tags{}, Status: "offline"}
		require.NoError(t, s.CreateNode(ctx, node))
		assert.ErrorIs(t, s.CreateNode(ctx, node), types.ErrNodeExists)

		require.NoError(t, s.UpdateNode(ctx, &models.Node{ID: "n1", ProjectKey: "ignored", Name: "edge-1", Tags: models.Tags{"x"}}))
		got, err := s.GetNode(ctx, "n1")
		require.NoError(t, err)
		assert.Equal(t, "edge-1", got.Name)
		assert.Equal(t, "p1", got.ProjectKey)
		assert.Equal(t, models.Tags{"x"}, got.Tags)

		assert.ErrorIs(t, s.UpdateNode(ctx, &models.Node{ID: "missing", Name: "x"}), types.ErrNodeNotFound)
		_, err = s.GetNode(ctx, "missing")
		assert.ErrorIs(t, err, types.ErrNodeNotFound)
	})

	t.Run("List Nodes Order", func(t *testing.T) {
		s := newStore(t)
		older, newer := base, base.Add(time.Minute)
		require.NoError(t, s.CreateNode(ctx, &models.Node{ID: "never", ProjectKey: "p1", Name: "never", Status: "offline"}))
		require.NoError(t, s.CreateNode(ctx, &models.Node{ID: "old", ProjectKey: "p1", Name: "old", Status: "online", LastSeen: &older}))
		require.NoError(t, s.CreateNode(ctx, &models.Node{ID: "new", ProjectKey: "p1", Name: "new", Status: "online", LastSeen: &newer}))

		nodes, err := s.ListNodes(ctx)
		require.NoError(t, err)
		require.Len(t, nodes, 3)
		assert.Equal(t, []string{"new", "old", "never"}, []string{nodes[0].ID, nodes[1].ID, nodes[2].ID})
	})

	t.Run("Task Lifecycle", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateNode(ctx, &models.Node{ID: "n1", ProjectKey: "p1", Name: "n1", Status: "offline"}))

		task := &models.Task{ID: "task-000000000001", NodeID: "n1", Type: models.TaskTypePing, Payload: "{}", State: models.TaskStateCreated, CreatedAt: base, UpdatedAt: base}
		require.NoError(t, s.CreateTask(ctx, task, nil))

		claimed, err := s.ClaimTasks(ctx, "n1", models.TaskStateCreated, base.Add(time.Second))
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, models.TaskStateRunning, claimed[0].State)
		assert.True(t, claimed[0].UpdatedAt.Equal(base.Add(time.Second)))

		again, err := s.ClaimTasks(ctx, "n1", models.TaskStateCreated, base.Add(2*time.Second))
		require.NoError(t, err)
		assert.Empty(t, again)

		_, err = s.FinishTask(ctx, task.ID, "p2", models.TaskStateSucceeded, "{}", base.Add(3*time.Second))
		assert.ErrorIs(t, err, types.ErrTaskNotFound)

		done, err := s.FinishTask(ctx, task.ID, "p1", models.TaskStateSucceeded, "{}", base.Add(3*time.Second))
		require.NoError(t, err)
		assert.Equal(t, models.TaskStateSucceeded, done.State)
		require.NotNil(t, done.Result)
		assert.Equal(t, "{}", *done.Result)

		_, err = s.FinishTask(ctx, task.ID, "p1", models.TaskStateSucceeded, "{}", base.Add(4*time.Second))
		assert.ErrorIs(t, err, types.ErrAlreadyInState)
		_, err = s.FinishTask(ctx, task.ID, "p1", models.TaskStateFailed, "{}", base.Add(4*time.Second))
		assert.ErrorIs(t, err, types.ErrInvalidTransition)

		events, err := s.ListTaskEvents(ctx, task.ID)
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, models.TaskStateCreated, events[0].State)
		assert.Equal(t, models.TaskStateRunning, events[1].State)
		assert.Equal(t, models.TaskStateSucceeded, events[2].State)
		assert.Less(t, events[0].ID, events[1].ID)
		assert.Less(t, events[1].ID, events[2].ID)

		counts, err := s.CountTasksByState(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[models.TaskStateSucceeded])
	})

	t.Run("Finish Requires Running", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateNode(ctx, &models.Node{ID: "n1", ProjectKey: "p1", Name: "n1", Status: "offline"}))
		task := &models.Task{ID: "task-000000000002", NodeID: "n1", Type: models.TaskTypePing, Payload: "{}", State: models.TaskStateCreated, CreatedAt: base, UpdatedAt: base}
		require.NoError(t, s.CreateTask(ctx, task, nil))

		_, err := s.FinishTask(ctx, task.ID, "p1", models.TaskStateFailed, "{}", base)
		assert.ErrorIs(t, err, types.ErrInvalidTransition)

		got, err := s.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStateCreated, got.State)
		assert.Nil(t, got.Result)
	})

	t.Run("Redeliver Running", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateNode(ctx, &models.Node{ID: "n1", ProjectKey: "p1", Name: "n1", Status: "offline"}))
		task := &models.Task{ID: "task-000000000003", NodeID: "n1", Type: models.TaskTypePing, Payload: "{}", State: models.TaskStateCreated, CreatedAt: base, UpdatedAt: base}
		require.NoError(t, s.CreateTask(ctx, task, nil))

		_, err := s.ClaimTasks(ctx, "n1", models.TaskStateCreated, base)
		require.NoError(t, err)
		redelivered, err := s.ClaimTasks(ctx, "n1", models.TaskStateRunning, base.Add(time.Second))
		require.NoError(t, err)
		require.Len(t, redelivered, 1)

		events, err := s.ListTaskEvents(ctx, task.ID)
		require.NoError(t, err)
		require.Len(t, events, 3)
		require.NotNil(t, events[2].Message)
		assert.Equal(t, types.RedeliveredMessage, *events[2].Message)
	})

	t.Run("Concurrent Claims", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateNode(ctx, &models.Node{ID: "n1", ProjectKey: "p1", Name: "n1", Status: "offline"}))
		const total = 20
		for i := 0; i < total; i++ {
			ts := base.Add(time.Duration(i) * time.Millisecond)
			id := fmt.Sprintf("task-%012d", i)
			require.NoError(t, s.CreateTask(ctx, &models.Task{ID: id, NodeID: "n1", Type: models.TaskTypePing, Payload: "{}", State: models.TaskStateCreated, CreatedAt: ts, UpdatedAt: ts}, nil))
		}

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			seen = make(map[string]int)
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				claimed, err := s.ClaimTasks(ctx, "n1", models.TaskStateCreated, base.Add(time.Minute))
				assert.NoError(t, err)
				mu.Lock()
				defer mu.Unlock()
				for _, task := range claimed {
					seen[task.ID]++
				}
			}()
		}
		wg.Wait()

		assert.Len(t, seen, total)
		for id, n := range seen {
			assert.Equal(t, 1, n, "task %s dispatched more than once", id)
		}
	})

	t.Run("Cascade Delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateNode(ctx, &models.Node{ID: "n1", ProjectKey: "p1", Name: "n1", Status: "offline"}))
		require.NoError(t, s.CreateNode(ctx, &models.Node{ID: "n2", ProjectKey: "p1", Name: "n2", Status: "offline"}))
		require.NoError(t, s.CreateTask(ctx, &models.Task{ID: "task-aaaaaaaaaaaa", NodeID: "n1", Type: models.TaskTypePing, Payload: "{}", State: models.TaskStateCreated, CreatedAt: base, UpdatedAt: base}, nil))
		require.NoError(t, s.CreateTask(ctx, &models.Task{ID: "task-bbbbbbbbbbbb", NodeID: "n2", Type: models.TaskTypePing, Payload: "{}", State: models.TaskStateCreated, CreatedAt: base, UpdatedAt: base}, nil))

		require.NoError(t, s.DeleteNode(ctx, "n1"))

		_, err := s.GetNode(ctx, "n1")
		assert.ErrorIs(t, err, types.ErrNodeNotFound)
		_, err = s.GetTask(ctx, "task-aaaaaaaaaaaa")
		assert.ErrorIs(t, err, types.ErrTaskNotFound)
		events, err := s.ListTaskEvents(ctx, "task-aaaaaaaaaaaa")
		require.NoError(t, err)
		assert.Empty(t, events)

		tasks, err := s.ListTasks(ctx, models.TaskFilter{NodeID: "n2"})
		require.NoError(t, err)
		assert.Len(t, tasks, 1)
		events, err = s.ListTaskEvents(ctx, "task-bbbbbbbbbbbb")
		require.NoError(t, err)
		assert.Len(t, events, 1)

		assert.ErrorIs(t, s.DeleteNode(ctx, "n1"), types.ErrNodeNotFound)
	})

	t.Run("List Tasks", func(t *testing.T) {
		s := newStore(t)
		for i, id := range []string{"task-000000000010", "task-000000000011", "task-000000000012"} {
			ts := base.Add(time.Duration(i) * time.Second)
			require.NoError(t, s.CreateTask(ctx, &models.Task{ID: id, NodeID: "n1", Type: models.TaskTypePing, Payload: "{}", State: models.TaskStateCreated, CreatedAt: ts, UpdatedAt: ts}, nil))
		}

		tasks, err := s.ListTasks(ctx, models.TaskFilter{Limit: 2})
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, "task-000000000012", tasks[0].ID)
		assert.Equal(t, "task-000000000011", tasks[1].ID)

		tasks, err = s.ListTasks(ctx, models.TaskFilter{State: models.TaskStateRunning})
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(ctx))
	})
}

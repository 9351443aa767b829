package service

import (
	"context"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ops-console/internal/models"
	"ops-console/internal/store/memory"
	"ops-console/pkg/logger"
)

type fixture struct {
	store  *memory.Store
	nodes  *NodeService
	tasks  *TaskService
	status *StatusService
	clock  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewWithWriter(io.Discard, false)
	f := &fixture{
		store: memory.NewStore(),
		clock: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.nodes = NewNodeService(f.store, NodeSettings{
		HeartbeatInterval: 10 * time.Second,
		OfflineThreshold:  30 * time.Second,
		DefaultProjectKey: "project_a",
	}, log)
	f.tasks = NewTaskService(f.store, f.nodes, log)
	f.status = NewStatusService(f.store, f.nodes)

	now := func() time.Time { return f.clock }
	f.nodes.now = now
	f.tasks.now = now
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func register(t *testing.T, f *fixture, nodeID, project string) {
	t.Helper()
	_, err := f.nodes.Register(context.Background(), project, RegisterNodeInput{NodeID: nodeID, ProjectKey: project, Name: nodeID})
	require.NoError(t, err)
}

func TestNodeRegistration(t *testing.T) {
	ctx := context.Background()

	t.Run("creates then upserts", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.nodes.Register(ctx, "p1", RegisterNodeInput{NodeID: "n1", ProjectKey: "p1", Name: "one", Tags: []string{"a"}})
		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.Equal(t, 10, res.HeartbeatIntervalSec)
		assert.Equal(t, f.clock, res.ServerTime)

		f.advance(time.Minute)
		version := "0.1.0"
		res, err = f.nodes.Register(ctx, "p1", RegisterNodeInput{NodeID: "n1", ProjectKey: "p1", Name: "two", Version: &version})
		require.NoError(t, err)
		assert.False(t, res.Created)

		node, err := f.nodes.GetNode(ctx, "n1")
		require.NoError(t, err)
		assert.Equal(t, "two", node.Name)
		assert.Equal(t, "online", node.Status)
		assert.Equal(t, f.clock, *node.LastSeen)
		assert.Equal(t, models.Tags{}, node.Tags)
	})

	t.Run("body project must match token", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.nodes.Register(ctx, "p1", RegisterNodeInput{NodeID: "n1", ProjectKey: "p2"})
		require.Error(t, err)
		assert.True(t, IsKind(err, KindForbidden))
		assert.Equal(t, CodeProjectKeyMismatch, AsError(err).Code)
	})

	t.Run("cross project collision", func(t *testing.T) {
		f := newFixture(t)
		register(t, f, "n1", "p1")

		_, err := f.nodes.Register(ctx, "p2", RegisterNodeInput{NodeID: "n1", ProjectKey: "p2", Name: "n1"})
		require.Error(t, err)
		assert.True(t, IsKind(err, KindForbidden))
		assert.Equal(t, CodeForbidden, AsError(err).Code)

		node, err := f.nodes.GetNode(ctx, "n1")
		require.NoError(t, err)
		assert.Equal(t, "p1", node.ProjectKey)
	})
}

func TestHeartbeatAndLiveness(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	register(t, f, "n1", "p1")

	err := f.nodes.Heartbeat(ctx, "p2", "n1", "online")
	assert.True(t, IsKind(err, KindNotFound))
	assert.True(t, IsKind(f.nodes.Heartbeat(ctx, "p1", "ghost", "online"), KindNotFound))

	f.advance(20 * time.Second)
	require.NoError(t, f.nodes.Heartbeat(ctx, "p1", "n1", ""))

	f.advance(29 * time.Second)
	views, err := f.nodes.ListNodes(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, models.NodeStatusOnline, views[0].Liveness)

	f.advance(2 * time.Second)
	views, err = f.nodes.ListNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusOffline, views[0].Liveness)
	assert.Equal(t, "offline", views[0].DisplayStatus)
	assert.Equal(t, "online", views[0].Status)
}

func TestTaskDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("end to end", func(t *testing.T) {
		f := newFixture(t)
		register(t, f, "n1", "p1")

		task, err := f.tasks.CreateTask(ctx, "p1", "n1", "PING", "")
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^task-[0-9a-f]{12}$`), task.ID)
		assert.Equal(t, models.EmptyPayload, task.Payload)

		f.advance(time.Second)
		pulled, err := f.tasks.PullTasks(ctx, "p1", "n1", "")
		require.NoError(t, err)
		require.Len(t, pulled, 1)
		assert.Equal(t, task.ID, pulled[0].ID)
		assert.Equal(t, models.TaskStateRunning, pulled[0].State)

		again, err := f.tasks.PullTasks(ctx, "p1", "n1", "CREATED")
		require.NoError(t, err)
		assert.Empty(t, again)

		require.NoError(t, f.tasks.ReportTask(ctx, "p1", task.ID, "SUCCEEDED", "{}"))

		detail, err := f.tasks.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStateSucceeded, detail.Task.State)
		require.Len(t, detail.Events, 3)
		assert.Equal(t, models.TaskStateCreated, detail.Events[0].State)
		assert.Equal(t, models.TaskStateRunning, detail.Events[1].State)
		assert.Equal(t, models.TaskStateSucceeded, detail.Events[2].State)
	})

	t.Run("project scoping", func(t *testing.T) {
		f := newFixture(t)
		register(t, f, "n1", "p1")

		_, err := f.tasks.CreateTask(ctx, "p2", "n1", "PING", "{}")
		assert.True(t, IsKind(err, KindNotFound))

		_, err = f.tasks.PullTasks(ctx, "p2", "n1", "")
		assert.True(t, IsKind(err, KindNotFound))

		task, err := f.tasks.CreateTaskAsOperator(ctx, "n1", "PING", "{}")
		require.NoError(t, err)
		_, err = f.tasks.PullTasks(ctx, "p1", "n1", "")
		require.NoError(t, err)

		err = f.tasks.ReportTask(ctx, "p2", task.ID, "SUCCEEDED", "{}")
		assert.True(t, IsKind(err, KindNotFound))
		assert.Equal(t, CodeTaskNotFound, AsError(err).Code)
	})

	t.Run("invalid report status", func(t *testing.T) {
		f := newFixture(t)
		register(t, f, "n1", "p1")
		task, err := f.tasks.CreateTask(ctx, "p1", "n1", "PING", "{}")
		require.NoError(t, err)
		_, err = f.tasks.PullTasks(ctx, "p1", "n1", "")
		require.NoError(t, err)

		for _, status := range []string{"RUNNING", "CREATED", "DONE", ""} {
			err := f.tasks.ReportTask(ctx, "p1", task.ID, status, "{}")
			assert.True(t, IsKind(err, KindValidation), status)
			assert.Equal(t, CodeInvalidStatus, AsError(err).Code)
		}

		detail, err := f.tasks.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStateRunning, detail.Task.State)
	})

	t.Run("terminal report policy", func(t *testing.T) {
		f := newFixture(t)
		register(t, f, "n1", "p1")
		task, err := f.tasks.CreateTask(ctx, "p1", "n1", "PING", "{}")
		require.NoError(t, err)

		err = f.tasks.ReportTask(ctx, "p1", task.ID, "SUCCEEDED", "{}")
		assert.True(t, IsKind(err, KindConflict), "report before pull")

		_, err = f.tasks.PullTasks(ctx, "p1", "n1", "")
		require.NoError(t, err)
		require.NoError(t, f.tasks.ReportTask(ctx, "p1", task.ID, "FAILED", `{"error":"x"}`))
		require.NoError(t, f.tasks.ReportTask(ctx, "p1", task.ID, "FAILED", `{"error":"x"}`))

		err = f.tasks.ReportTask(ctx, "p1", task.ID, "SUCCEEDED", "{}")
		assert.True(t, IsKind(err, KindConflict))

		detail, err := f.tasks.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStateFailed, detail.Task.State)
		assert.Len(t, detail.Events, 3)
	})

	t.Run("state filter", func(t *testing.T) {
		f := newFixture(t)
		register(t, f, "n1", "p1")
		_, err := f.tasks.CreateTask(ctx, "p1", "n1", "PING", "{}")
		require.NoError(t, err)

		_, err = f.tasks.PullTasks(ctx, "p1", "n1", "SUCCEEDED")
		assert.True(t, IsKind(err, KindValidation))

		first, err := f.tasks.PullTasks(ctx, "p1", "n1", "created")
		require.NoError(t, err)
		require.Len(t, first, 1)

		redelivered, err := f.tasks.PullTasks(ctx, "p1", "n1", "RUNNING")
		require.NoError(t, err)
		require.Len(t, redelivered, 1)
		assert.Equal(t, first[0].ID, redelivered[0].ID)
	})

	t.Run("type defaults to ping", func(t *testing.T) {
		f := newFixture(t)
		register(t, f, "n1", "p1")
		task, err := f.tasks.CreateTask(ctx, "p1", "n1", " ", "{}")
		require.NoError(t, err)
		assert.Equal(t, models.TaskTypePing, task.Type)
	})
}

func TestOperatorNodeManagement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	node, err := f.nodes.CreateNode(ctx, CreateNodeInput{NodeID: "edge-1"})
	require.NoError(t, err)
	assert.Equal(t, "project_a", node.ProjectKey)
	assert.Equal(t, "edge-1", node.Name)
	assert.Nil(t, node.LastSeen)

	_, err = f.nodes.CreateNode(ctx, CreateNodeInput{NodeID: "edge-1"})
	assert.True(t, IsKind(err, KindConflict))
	_, err = f.nodes.CreateNode(ctx, CreateNodeInput{NodeID: "  "})
	assert.True(t, IsKind(err, KindValidation))

	updated, err := f.nodes.UpdateNode(ctx, "edge-1", "Edge One", []string{"rack-3"})
	require.NoError(t, err)
	assert.Equal(t, "Edge One", updated.Name)
	assert.Equal(t, "project_a", updated.ProjectKey)

	task, err := f.tasks.CreateTaskAsOperator(ctx, "edge-1", "PING", "")
	require.NoError(t, err)

	status, err := f.status.GetSystemStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.TotalNodes)
	assert.Equal(t, 0, status.OnlineNodes)
	assert.Equal(t, int64(1), status.PendingTasks)

	require.NoError(t, f.nodes.DeleteNode(ctx, "edge-1"))
	_, err = f.tasks.GetTask(ctx, task.ID)
	assert.True(t, IsKind(err, KindNotFound))
	assert.True(t, IsKind(f.nodes.DeleteNode(ctx, "edge-1"), KindNotFound))

	_, err = f.tasks.CreateTaskAsOperator(ctx, "edge-1", "PING", "")
	assert.True(t, IsKind(err, KindNotFound))
}

package temporal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/canopy-network/stakedrop/pkg/retry"
	"github.com/canopy-network/stakedrop/pkg/utils"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	taskqueuepb "go.temporal.io/api/taskqueue/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/durationpb"
)

// Client is a Temporal connection bound to the snapshot namespace.
type Client struct {
	TClient   client.Client
	TSClient  client.ScheduleClient
	Namespace string
	HostPort  string
	Queue     string
	logger    *zap.Logger
}

type Health struct {
	ConnectionOK  bool                      `json:"connection_ok"`
	SnapshotQueue []*taskqueuepb.PollerInfo `json:"snapshot_queue"`
}

// NewClient dials TEMPORAL_HOSTPORT / TEMPORAL_NAMESPACE, retrying until the frontend is healthy.
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	host := utils.Env("TEMPORAL_HOSTPORT", "localhost:7233")
	ns := utils.Env("TEMPORAL_NAMESPACE", DefaultNamespace)
	adapter := NewZapAdapter(logger)

	logger.Info("Connecting to Temporal", zap.String("host", host), zap.String("namespace", ns))

	var tClient client.Client
	err := retry.WithBackoff(connCtx, retry.ConfigFromEnv(), logger, "temporal_connection", func() error {
		var err error
		if tClient, err = Dial(connCtx, host, ns, adapter); err != nil {
			return dialError(err)
		}
		if _, err = tClient.CheckHealth(connCtx, nil); err != nil {
			tClient.Close()
			return dialError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		TClient:   tClient,
		TSClient:  tClient.ScheduleClient(),
		Namespace: ns,
		HostPort:  host,
		Queue:     utils.Env("TEMPORAL_SNAPSHOT_QUEUE", QueueSnapshot),
		logger:    logger,
	}, nil
}

// dialError stops the connection retry on errors a redial cannot fix.
func dialError(err error) error {
	var (
		notFound *serviceerror.NamespaceNotFound
		denied   *serviceerror.PermissionDenied
		invalid  *serviceerror.InvalidArgument
	)
	if errors.As(err, &notFound) || errors.As(err, &denied) || errors.As(err, &invalid) {
		return retry.Permanent(err)
	}
	return err
}

// Dial connects to Temporal using the provided hostPort and namespace.
func Dial(ctx context.Context, hostPort, namespace string, logger log.Logger) (client.Client, error) {
	return client.DialContext(ctx, client.Options{
		HostPort:  hostPort,
		Namespace: namespace,
		Logger:    logger,
	})
}

// EnsureNamespace registers the namespace when it does not exist yet.
func (c *Client) EnsureNamespace(ctx context.Context, retention time.Duration) error {
	nsClient, err := client.NewNamespaceClient(client.Options{
		HostPort: c.HostPort,
		Logger:   NewZapAdapter(c.logger),
	})
	if err != nil {
		return fmt.Errorf("failed to create namespace client: %w", err)
	}
	defer nsClient.Close()

	for {
		_, err = nsClient.Describe(ctx, c.Namespace)
		if err == nil {
			return nil
		}
		var notFound *serviceerror.NamespaceNotFound
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to describe namespace: %w", err)
		}

		err = nsClient.Register(ctx, &workflowservice.RegisterNamespaceRequest{
			Namespace:                        c.Namespace,
			WorkflowExecutionRetentionPeriod: durationpb.New(retention),
		})
		var exists *serviceerror.NamespaceAlreadyExists
		if err != nil && !errors.As(err, &exists) {
			return fmt.Errorf("failed to register namespace: %w", err)
		}
		c.logger.Info("Registered Temporal namespace", zap.String("namespace", c.Namespace))

		// registration is eventually consistent
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

// EnsureSchedule creates the schedule, or replaces its spec and action when it already exists.
func (c *Client) EnsureSchedule(ctx context.Context, opts client.ScheduleOptions) error {
	h := c.TSClient.GetHandle(ctx, opts.ID)
	_, err := h.Describe(ctx)
	if err == nil {
		c.logger.Info("Updating schedule", zap.String("id", opts.ID))
		return h.Update(ctx, client.ScheduleUpdateOptions{
			DoUpdate: func(in client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
				s := in.Description.Schedule
				spec := opts.Spec
				s.Spec = &spec
				s.Action = opts.Action
				return &client.ScheduleUpdate{Schedule: &s}, nil
			},
		})
	}

	var notFound *serviceerror.NotFound
	if !errors.As(err, &notFound) {
		return err
	}
	c.logger.Info("Creating schedule", zap.String("id", opts.ID), zap.String("namespace", c.Namespace))
	_, err = c.TSClient.Create(ctx, opts)
	return err
}

// StartWorkflow starts workflow on the snapshot queue under id. A run already open under id is
// reused, so repeated requests for the same window do not compute twice.
func (c *Client) StartWorkflow(ctx context.Context, id, workflow string, args ...interface{}) (string, error) {
	run, err := c.TClient.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       id,
		TaskQueue:                c.Queue,
		WorkflowIDConflictPolicy: enums.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
		WorkflowIDReusePolicy:    enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
	}, workflow, args...)
	if err != nil {
		return "", err
	}
	c.logger.Info("Workflow started", zap.String("id", run.GetID()), zap.String("run_id", run.GetRunID()))
	return run.GetRunID(), nil
}

// Health reports the pollers attached to the snapshot queue.
func (c *Client) Health(ctx context.Context) (Health, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if _, err := c.TClient.CheckHealth(ctx, nil); err != nil {
		return Health{}, err
	}
	h := Health{ConnectionOK: true}
	if svc := c.TClient.WorkflowService(); svc != nil {
		if rep, err := svc.DescribeTaskQueue(ctx, &workflowservice.DescribeTaskQueueRequest{
			Namespace:     c.Namespace,
			TaskQueue:     &taskqueuepb.TaskQueue{Name: c.Queue},
			TaskQueueType: enums.TASK_QUEUE_TYPE_WORKFLOW,
		}); err == nil {
			h.SnapshotQueue = rep.GetPollers()
		}
	}
	return h, nil
}

func (c *Client) Close() {
	if c.TClient != nil {
		c.TClient.Close()
	}
}

package temporal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"go.temporal.io/api/enums/v1"
	taskqueuepb "go.temporal.io/api/taskqueue/v1"
	workflowservicepb "go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"

	"github.com/neynartodes/contesthub/pkg/utils"
)

type Client struct {
	TClient   client.Client
	TSClient  client.ScheduleClient
	Namespace string

	// Task Queues
	ContestsQueue string // contests - finalization and archive work share one queue.

	// Workflow IDs
	FinalizeWorkflowId string // finalize:<contestKey> - one workflow per terminal contest, so replays dedupe.
	ArchiveWorkflowId  string // archive:season:<id>
}

type Health struct {
	ConnectionOK  bool                      `json:"connection_ok"`
	ContestsQueue []*taskqueuepb.PollerInfo `json:"contests_queue"`
}

func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("TEMPORAL_HOSTPORT", "localhost:7233")
	ns := utils.Env("TEMPORAL_NAMESPACE", "contesthub")
	loggerWrapper := NewZapAdapter(logger)

	logger.Info("Connecting to Temporal", zap.String("host", host), zap.String("namespace", ns))
	tClient, err := Dial(ctx, host, ns, loggerWrapper)
	if err != nil {
		return nil, err
	}

	if _, err = tClient.CheckHealth(ctx, nil); err != nil {
		return nil, err
	}

	return &Client{
		TClient:   tClient,
		TSClient:  tClient.ScheduleClient(),
		Namespace: ns,
		// for now this is just hardcoded, could be configurable if we need it
		ContestsQueue: "contests",
		// workflow IDs
		FinalizeWorkflowId: "finalize:%s",
		ArchiveWorkflowId:  "archive:season:%d",
	}, nil
}

// Dial connects to Temporal using the provided hostPort and namespace.
func Dial(ctx context.Context, hostPort, namespace string, logger log.Logger) (client.Client, error) {
	return client.DialContext(
		ctx,
		client.Options{
			HostPort:  hostPort,
			Namespace: namespace,
			Logger:    logger,
		},
	)
}

// GetContestsQueue returns the shared contest work queue.
func (c *Client) GetContestsQueue() string { return c.ContestsQueue }

// GetFinalizeWorkflowId returns the workflow ID for finalizing the given contest.
func (c *Client) GetFinalizeWorkflowId(contestKey string) string {
	return fmt.Sprintf(c.FinalizeWorkflowId, contestKey)
}

// GetArchiveWorkflowId returns the workflow ID for archiving the given season.
func (c *Client) GetArchiveWorkflowId(seasonID uint64) string {
	return fmt.Sprintf(c.ArchiveWorkflowId, seasonID)
}

// GetScheduleSpec returns a schedule spec for the given interval.
func (c *Client) GetScheduleSpec(interval time.Duration) client.ScheduleSpec {
	return client.ScheduleSpec{Intervals: []client.ScheduleIntervalSpec{{Every: interval}}}
}

// Health returns the health of the Temporal client.
func (c *Client) Health(ctx context.Context) (Health, error) {
	h := Health{ConnectionOK: true}
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	svc := c.TClient.WorkflowService()
	if svc != nil {
		if rep, err := svc.DescribeTaskQueue(ctx, &workflowservicepb.DescribeTaskQueueRequest{
			Namespace:     c.Namespace,
			TaskQueue:     &taskqueuepb.TaskQueue{Name: c.ContestsQueue},
			TaskQueueType: enums.TASK_QUEUE_TYPE_WORKFLOW,
		}); err == nil {
			h.ContestsQueue = rep.GetPollers()
		}
	}
	return h, nil
}

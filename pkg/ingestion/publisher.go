package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/algojuke/discovery/pkg/vectorstore"
)

// EnrichmentEvent asks the enrichment pipeline to index one track.
type EnrichmentEvent struct {
	EventID     string    `json:"eventId"`
	ISRC        string    `json:"isrc"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	Album       string    `json:"album,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`

	Interpretation string                     `json:"interpretation,omitempty"`
	Features       *vectorstore.AudioFeatures `json:"features,omitempty"`
}

// Publisher dispatches one event. Callers report a failure, they never propagate it.
type Publisher interface {
	Publish(ctx context.Context, ev EnrichmentEvent) error
}

// workflowStarter is the slice of client.Client the publisher needs.
type workflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// TemporalPublisher starts one enrichment workflow per event.
type TemporalPublisher struct {
	client       workflowStarter
	taskQueue    string
	workflowName string
	timeout      time.Duration
}

// NewTemporalPublisher creates a publisher that starts workflowName on taskQueue.
func NewTemporalPublisher(c client.Client, taskQueue, workflowName string) *TemporalPublisher {
	return newTemporalPublisher(c, taskQueue, workflowName)
}

func newTemporalPublisher(c workflowStarter, taskQueue, workflowName string) *TemporalPublisher {
	return &TemporalPublisher{
		client:       c,
		taskQueue:    taskQueue,
		workflowName: workflowName,
		timeout:      30 * time.Minute,
	}
}

// WorkflowID is keyed by ISRC so concurrent requests for the same track
// collapse onto one running workflow.
func WorkflowID(code string) string {
	return "enrich-track-" + code
}

// Publish starts the workflow without waiting for it. An enrichment already
// running for the same ISRC counts as success.
func (p *TemporalPublisher) Publish(ctx context.Context, ev EnrichmentEvent) error {
	opts := client.StartWorkflowOptions{
		ID:                                       WorkflowID(ev.ISRC),
		TaskQueue:                                p.taskQueue,
		WorkflowExecutionTimeout:                 p.timeout,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
		Memo:                                     map[string]interface{}{"eventId": ev.EventID},
	}
	_, err := p.client.ExecuteWorkflow(ctx, opts, p.workflowName, ev)
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return nil
		}
		return fmt.Errorf("start enrichment workflow for %s: %w", ev.ISRC, err)
	}
	return nil
}

var _ Publisher = (*TemporalPublisher)(nil)

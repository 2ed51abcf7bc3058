// Package enrichment holds the Temporal workflow that turns a scheduled track
// into an indexed vector document.
package enrichment

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/algojuke/discovery/pkg/ingestion"
	"github.com/algojuke/discovery/pkg/isrc"
)

// WorkflowName is the registered name publishers start.
const WorkflowName = "TrackEnrichmentWorkflow"

var enrichActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 2 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:        time.Second,
		BackoffCoefficient:     2.0,
		MaximumInterval:        time.Minute,
		MaximumAttempts:        5,
		NonRetryableErrorTypes: []string{errTypeInvalidTrack},
	},
}

// TrackEnrichmentWorkflow embeds one track and upserts it under its derived
// key. Running it twice for the same ISRC leaves a single document.
func TrackEnrichmentWorkflow(ctx workflow.Context, ev ingestion.EnrichmentEvent) (*Result, error) {
	logger := workflow.GetLogger(ctx)

	code, err := isrc.Parse(ev.ISRC)
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), errTypeInvalidTrack, err)
	}
	ev.ISRC = code
	logger.Info("enriching track", "isrc", code, "eventId", ev.EventID)

	ctx = workflow.WithActivityOptions(ctx, enrichActivityOptions)

	var a *Activities
	var res Result
	if err := workflow.ExecuteActivity(ctx, a.EnrichTrack, ev).Get(ctx, &res); err != nil {
		logger.Error("enrichment failed", "isrc", code, "error", err)
		return nil, err
	}

	logger.Info("track indexed", "isrc", code, "documentId", res.DocumentID)
	return &res, nil
}

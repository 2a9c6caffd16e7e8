// Package reconcile implements the workers on both sides of the LP DAAC
// reconciliation exchange: the response worker, which re-triggers every
// granule a discrepancy report says the archive is missing files for, and
// the request forwarder, which announces new HLS inventory reports to the
// archive.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hlsrecon/internal/hls"
	"hlsrecon/internal/ledger"
	"hlsrecon/internal/lpdaac"
	"hlsrecon/internal/queue"
	"hlsrecon/internal/types"
)

// DefaultTouchConcurrency bounds how many trigger objects are probed and
// touched in parallel within one collection.
const DefaultTouchConcurrency = 8

// ReportFetcher retrieves a reconciliation report object, transparently
// decompressing gzip bodies.
type ReportFetcher interface {
	Fetch(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// TriggerStore probes and touches notification trigger objects.
type TriggerStore interface {
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Touch(ctx context.Context, bucket, key string) error
}

// RunLedger records processed notifications for duplicate detection and
// operator queries.
type RunLedger interface {
	Seen(ctx context.Context, messageID string) (bool, error)
	Record(ctx context.Context, rec ledger.RunRecord) error
}

// ReviewQueue receives notifications whose input can never be processed.
type ReviewQueue interface {
	Submit(ctx context.Context, msg queue.ReviewMessage) error
}

// MetricsRecorder emits per-collection outcome metrics. Implementations
// log and swallow delivery failures rather than failing the run.
type MetricsRecorder interface {
	CollectionOutcome(ctx context.Context, collection string, triggered, missing, filesExamined int)
}

// ProcessorConfig holds the configuration for the response worker Lambda.
type ProcessorConfig struct {
	// ForwardBucket holds the trigger objects for the forward-processing
	// pipeline, the default target for reconciliation reports.
	ForwardBucket string

	// HistoricalBucket holds the trigger objects for the historical
	// reprocessing pipeline, targeted when a report's key marks it as
	// historical.
	HistoricalBucket string

	// TouchConcurrency bounds parallel trigger probes per collection.
	// Zero means DefaultTouchConcurrency.
	TouchConcurrency int
}

// Notification is the LP DAAC discrepancy notification carried by one SNS
// record.
type Notification struct {
	MessageID  string
	Subject    string
	Message    string
	ReceivedAt time.Time
}

// Processor orchestrates the response side of a reconciliation exchange:
// locate the report a notification points at, group it by collection, and
// re-trigger every granule with missing or failed files.
type Processor struct {
	Config   ProcessorConfig
	Log      *slog.Logger
	Reports  ReportFetcher
	Triggers TriggerStore
	Ledger   RunLedger
	Review   ReviewQueue
	Metrics  MetricsRecorder
}

// cleanSubjectToken is the trailing subject token LP DAAC appends when a
// reconciliation finds no discrepancies.
const cleanSubjectToken = "Ok"

// noDiscrepancies reports whether a subject marks a clean reconciliation.
// Clean subjects name the report file and end with a bare "Ok" token, e.g.
// "Rec-Report HLS lp-prod HLS_reconcile_2024239_2.0.rpt Ok".
func noDiscrepancies(subject string) bool {
	fields := strings.Fields(subject)
	return len(fields) > 0 && fields[len(fields)-1] == cleanSubjectToken
}

// historicalKeyMarker identifies reports produced by historical
// reprocessing campaigns, e.g. reports/HLS_historical_reconcile_2024239_2.0.json.
const historicalKeyMarker = "historical"

// triggerBucket picks the bucket holding the trigger objects for this
// report's granules.
func (p *Processor) triggerBucket(reportKey string) string {
	if strings.Contains(reportKey, historicalKeyMarker) {
		return p.Config.HistoricalBucket
	}
	return p.Config.ForwardBucket
}

// ProcessNotification handles one discrepancy notification end to end and
// returns the per-collection status counts. Collections without
// discrepancies appear in the summary with an empty count map.
//
// Reprocessing a notification is idempotent: trigger keys are
// deterministic and touching an already-touched object only re-triggers
// the same granule. The run ledger is therefore advisory; its faults are
// logged and ignored.
func (p *Processor) ProcessNotification(ctx context.Context, n Notification) (types.ReconciliationSummary, error) {
	runID := uuid.New().String()
	log := p.Log.With("run_id", runID, "message_id", n.MessageID)

	// Step 1: Clean reconciliations carry no report worth fetching.
	if noDiscrepancies(n.Subject) {
		log.InfoContext(ctx, "reconciliation found no discrepancies", "subject", n.Subject)
		p.record(ctx, log, ledger.RunRecord{
			MessageID:   n.MessageID,
			RunID:       runID,
			Subject:     n.Subject,
			Outcome:     ledger.OutcomeClean,
			ProcessedAt: time.Now().UTC(),
		})
		return types.ReconciliationSummary{}, nil
	}

	// Step 2: Skip redelivered notifications before touching anything.
	if seen, err := p.Ledger.Seen(ctx, n.MessageID); err != nil {
		log.WarnContext(ctx, "run ledger lookup failed, proceeding without duplicate check",
			"error", err.Error(),
		)
	} else if seen {
		log.InfoContext(ctx, "notification already processed, skipping", "subject", n.Subject)
		return types.ReconciliationSummary{}, nil
	}

	// Step 3: Locate, fetch, and group the report.
	loc, err := lpdaac.ExtractReportLocation(n.Message)
	if err != nil {
		return nil, err
	}

	bucket := p.triggerBucket(loc.Key)
	log = log.With("report_uri", loc.URI(), "trigger_bucket", bucket)

	body, err := p.Reports.Fetch(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	report, err := lpdaac.ParseReport(body)
	if err != nil {
		return nil, err
	}

	groups, err := lpdaac.GroupGranuleIDs(report)
	if err != nil {
		return nil, err
	}

	// Step 4: Re-trigger granules collection by collection. Collection
	// order is fixed so two runs over the same report touch objects in the
	// same sequence.
	collectionIDs := make([]string, 0, len(groups))
	for collectionID := range groups {
		collectionIDs = append(collectionIDs, collectionID)
	}
	sort.Strings(collectionIDs)

	summary := make(types.ReconciliationSummary, len(groups))
	for _, collectionID := range collectionIDs {
		counts, err := p.processCollection(ctx, log, bucket, collectionID, groups[collectionID])
		if err != nil {
			return nil, err
		}
		summary[collectionID] = counts
	}

	log.InfoContext(ctx, "reconciliation response processed",
		"collections", len(summary),
		"triggered", summary.Total(types.StatusTriggered),
		"missing", summary.Total(types.StatusMissing),
	)

	// Step 5: Record the run. A racing duplicate delivery losing the
	// conditional write is harmless; see the idempotence note above.
	p.record(ctx, log, ledger.RunRecord{
		MessageID:   n.MessageID,
		RunID:       runID,
		Subject:     n.Subject,
		ReportURI:   loc.URI(),
		Outcome:     ledger.OutcomeProcessed,
		Summary:     summary,
		ProcessedAt: time.Now().UTC(),
	})

	return summary, nil
}

// processCollection probes and touches the trigger object for every granule
// in one collection, concurrently up to the configured limit. The returned
// counts hold only statuses that actually occurred, so a collection with no
// granules yields an empty map.
func (p *Processor) processCollection(ctx context.Context, log *slog.Logger, bucket, collectionID string, group lpdaac.CollectionGroup) (types.CollectionSummary, error) {
	cid, err := hls.DecodeCollectionID(collectionID)
	if err != nil {
		return nil, err
	}

	// Derive every trigger key up front so a malformed granule id surfaces
	// before any object is touched.
	type target struct {
		granuleID string
		key       string
	}
	targets := make([]target, 0, len(group.GranuleIDs))
	for _, granuleID := range group.GranuleIDs {
		key, err := hls.NotificationTriggerKey(granuleID)
		if err != nil {
			return nil, fmt.Errorf("reconcile: collection %s: %w", collectionID, err)
		}
		targets = append(targets, target{granuleID: granuleID, key: key})
	}

	concurrency := p.Config.TouchConcurrency
	if concurrency <= 0 {
		concurrency = DefaultTouchConcurrency
	}

	var mu sync.Mutex
	counts := types.CollectionSummary{}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, tgt := range targets {
		tgt := tgt
		g.Go(func() error {
			status, err := p.touchTrigger(gCtx, bucket, tgt.key)
			if err != nil {
				return fmt.Errorf("reconcile: granule %s: %w", tgt.granuleID, err)
			}
			mu.Lock()
			counts[status]++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "collection reconciled",
		"collection", collectionID,
		"short_name", cid.ShortName,
		"version", cid.Version,
		"files_examined", group.FileCount,
		"triggered", counts[types.StatusTriggered],
		"missing", counts[types.StatusMissing],
	)
	p.Metrics.CollectionOutcome(ctx, collectionID,
		counts[types.StatusTriggered], counts[types.StatusMissing], group.FileCount)

	return counts, nil
}

// touchTrigger classifies one granule. An existing trigger object is
// touched so the pipeline resends the granule; a missing one is only
// counted, never created, because writing it would trigger ingestion of a
// granule that was never produced.
func (p *Processor) touchTrigger(ctx context.Context, bucket, key string) (types.GranuleStatus, error) {
	exists, err := p.Triggers.Exists(ctx, bucket, key)
	if err != nil {
		return "", err
	}
	if !exists {
		return types.StatusMissing, nil
	}
	if err := p.Triggers.Touch(ctx, bucket, key); err != nil {
		return "", err
	}
	return types.StatusTriggered, nil
}

// record writes a run record, logging and ignoring faults: the ledger is
// an audit aid, not a processing dependency.
func (p *Processor) record(ctx context.Context, log *slog.Logger, rec ledger.RunRecord) {
	if err := p.Ledger.Record(ctx, rec); err != nil {
		if errors.Is(err, ledger.ErrAlreadyProcessed) {
			log.InfoContext(ctx, "run already recorded by an earlier delivery")
			return
		}
		log.WarnContext(ctx, "failed to record run in ledger", "error", err.Error())
	}
}

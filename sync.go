package snapdu

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mwantia/snapdu/data"
	"github.com/mwantia/snapdu/index"
)

// SyncResult summarizes a single sync run.
type SyncResult struct {
	Deleted   []string        `json:"deleted"`
	Fetched   []*IngestResult `json:"fetched"`
	Unchanged int             `json:"unchanged"`
	Duration  time.Duration   `json:"duration"`
}

// IngestResult summarizes the ingestion of a single snapshot.
type IngestResult struct {
	SnapshotID    string        `json:"snapshot_id"`
	TransactionID string        `json:"transaction_id"`
	Files         int64         `json:"files"`
	Excluded      int64         `json:"excluded"`
	BytesRead     int64         `json:"bytes_read"`
	Duration      time.Duration `json:"duration"`
}

// Sync brings the index in line with the remote catalog: snapshots gone
// from the repository are deleted first, then every missing snapshot is
// ingested in catalog order. The first failure stops the run.
func (e *Engine) Sync(ctx context.Context) (*SyncResult, error) {
	e.writer.Lock()
	defer e.writer.Unlock()

	start := time.Now()
	backend, err := e.index()
	if err != nil {
		return nil, err
	}

	remote, err := e.source.Snapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote snapshots: %w", err)
	}

	missing, deleted, err := e.reconcile(ctx, backend, remote)
	if err != nil {
		return &SyncResult{Deleted: deleted}, err
	}

	result := &SyncResult{
		Deleted:   deleted,
		Unchanged: len(data.SnapshotIDs(remote)) - len(missing),
	}

	for i, snapshot := range missing {
		e.log.Info("[%d/%d] Fetching snapshot %s", i+1, len(missing), snapshot.ID)

		fetched, err := e.ingest(ctx, backend, snapshot)
		if err != nil {
			return result, err
		}
		result.Fetched = append(result.Fetched, fetched)
	}

	result.Duration = time.Since(start)
	e.log.Info("Sync finished: %d deleted, %d fetched, %d unchanged in %s",
		len(result.Deleted), len(result.Fetched), result.Unchanged, result.Duration.Round(time.Millisecond))

	return result, nil
}

// Reconcile deletes every local snapshot absent from remote and returns the
// remote snapshots not yet indexed, in remote order.
func (e *Engine) Reconcile(ctx context.Context, remote []*data.Snapshot) ([]*data.Snapshot, error) {
	e.writer.Lock()
	defer e.writer.Unlock()

	backend, err := e.index()
	if err != nil {
		return nil, err
	}

	missing, _, err := e.reconcile(ctx, backend, remote)
	return missing, err
}

// reconcile MUST be called while holding the writer lock.
func (e *Engine) reconcile(ctx context.Context, backend index.Backend, remote []*data.Snapshot) ([]*data.Snapshot, []string, error) {
	local, err := backend.Snapshots(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list local snapshots: %w", err)
	}

	remoteIDs := data.SnapshotIDs(remote)
	localIDs := data.SnapshotIDs(local)

	var deleted []string
	for _, snapshot := range local {
		if _, ok := remoteIDs[snapshot.ID]; ok {
			continue
		}

		e.log.Info("Deleting snapshot %s, missing from restic", snapshot.ID)
		if err := backend.DeleteSnapshot(ctx, snapshot.ID); err != nil {
			return nil, deleted, fmt.Errorf("failed to delete snapshot '%s': %w", snapshot.ID, err)
		}
		deleted = append(deleted, snapshot.ID)
	}

	missing := make([]*data.Snapshot, 0)
	seen := make(map[string]struct{}, len(remote))
	for _, snapshot := range remote {
		if _, ok := localIDs[snapshot.ID]; ok {
			continue
		}
		// A catalog listing the same id twice still needs one ingestion
		if _, ok := seen[snapshot.ID]; ok {
			continue
		}

		seen[snapshot.ID] = struct{}{}
		missing = append(missing, snapshot)
	}

	return missing, deleted, nil
}

// Ingest indexes a single snapshot. Either all of its records become
// visible or none do.
func (e *Engine) Ingest(ctx context.Context, snapshot *data.Snapshot) (*IngestResult, error) {
	e.writer.Lock()
	defer e.writer.Unlock()

	backend, err := e.index()
	if err != nil {
		return nil, err
	}

	return e.ingest(ctx, backend, snapshot)
}

// ingest MUST be called while holding the writer lock.
func (e *Engine) ingest(ctx context.Context, backend index.Backend, snapshot *data.Snapshot) (*IngestResult, error) {
	start := time.Now()

	tx, err := backend.Begin(ctx, snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot '%s': %w", snapshot.ID, err)
	}

	result := &IngestResult{
		SnapshotID:    snapshot.ID,
		TransactionID: tx.ID(),
	}

	if err := e.fill(ctx, tx, result); err != nil {
		if abortErr := tx.Abort(context.WithoutCancel(ctx)); abortErr != nil {
			e.log.Warn("Failed to abort transaction %s: %v", tx.ID(), abortErr)
		}
		return nil, fmt.Errorf("failed to ingest snapshot '%s': %w", snapshot.ID, err)
	}

	if err := tx.Finish(ctx); err != nil {
		return nil, fmt.Errorf("failed to finish snapshot '%s': %w", snapshot.ID, err)
	}

	result.Duration = time.Since(start)
	e.log.Debug("Indexed snapshot %s with %d files (%d excluded, %s read) in transaction %s",
		snapshot.ID, result.Files, result.Excluded, humanize.Bytes(uint64(result.BytesRead)), tx.ID())

	return result, nil
}

// fill streams the snapshot listing into the transaction.
func (e *Engine) fill(ctx context.Context, tx index.Transaction, result *IngestResult) error {
	listing, err := e.source.Ls(ctx, result.SnapshotID)
	if err != nil {
		return err
	}
	defer listing.Close()

	interval := int64(e.options.ProgressInterval)
	for listing.Next() {
		file := listing.Record()
		result.BytesRead = listing.BytesRead()

		if e.excluded(file.Path) {
			result.Excluded++
			continue
		}

		if err := tx.Insert(ctx, file); err != nil {
			return err
		}

		result.Files++
		if result.Files%interval == 0 {
			e.log.Info("Snapshot %s: %s files, %s read", result.SnapshotID,
				humanize.Comma(result.Files), humanize.Bytes(uint64(result.BytesRead)))
		}
	}

	if err := listing.Err(); err != nil {
		return err
	}

	result.BytesRead = listing.BytesRead()

	// A cancelled context kills the listing, which may end it early without error
	return ctx.Err()
}

package snapdu

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mwantia/snapdu/data"
	"github.com/mwantia/snapdu/index"
)

// excludeSetting stores the patterns the indexed snapshots were filtered with.
const excludeSetting = "exclude"

func normalizePattern(pattern string) string {
	return strings.TrimPrefix(pattern, "/")
}

// excluded checks the path and each of its ancestors against the exclude patterns.
func (e *Engine) excluded(path string) bool {
	if len(e.options.Exclude) == 0 {
		return false
	}

	for parent, name := range data.Components(path) {
		candidate := strings.TrimPrefix(data.JoinPath(parent, name), "/")
		for _, pattern := range e.options.Exclude {
			// Patterns were validated when the option was applied
			if matched, _ := doublestar.Match(normalizePattern(pattern), candidate); matched {
				return true
			}
		}
	}

	return false
}

// excludeFingerprint renders patterns in a canonical, order independent form.
func excludeFingerprint(patterns []string) string {
	normalized := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		normalized = append(normalized, normalizePattern(pattern))
	}

	slices.Sort(normalized)
	return strings.Join(slices.Compact(normalized), "\n")
}

// applyExclude drops every indexed snapshot when the index was built with
// other exclude patterns, so the next sync ingests them again under the
// current ones. Snapshots are deleted before the new patterns are stored.
func (e *Engine) applyExclude(ctx context.Context, backend index.Backend) error {
	current := excludeFingerprint(e.options.Exclude)

	stored, err := backend.Setting(ctx, excludeSetting)
	if err != nil {
		return fmt.Errorf("failed to read exclude patterns of index: %w", err)
	}
	if stored == current {
		return nil
	}

	snapshots, err := backend.Snapshots(ctx)
	if err != nil {
		return fmt.Errorf("failed to list local snapshots: %w", err)
	}

	if len(snapshots) > 0 {
		e.log.Warn("Exclude patterns changed from '%s' to '%s', dropping %d indexed snapshots",
			strings.ReplaceAll(stored, "\n", ", "), strings.ReplaceAll(current, "\n", ", "), len(snapshots))
	}

	for _, snapshot := range snapshots {
		if err := backend.DeleteSnapshot(ctx, snapshot.ID); err != nil {
			return fmt.Errorf("failed to delete snapshot '%s': %w", snapshot.ID, err)
		}
	}

	if err := backend.PutSetting(ctx, excludeSetting, current); err != nil {
		return fmt.Errorf("failed to store exclude patterns: %w", err)
	}

	return nil
}

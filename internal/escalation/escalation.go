// Package escalation records unrecoverable pipeline failures for human
// follow-up. Entries are never retried or resolved automatically.
package escalation

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/careaudit-cli/internal/document"
	"github.com/sells-group/careaudit-cli/internal/model"
	"github.com/sells-group/careaudit-cli/internal/store"
)

// maxReasonLength bounds the stored failure reason, in characters.
const maxReasonLength = 1000

// Queue appends to and reads the manual review log.
type Queue struct {
	store store.Store
}

// New creates a Queue backed by s.
func New(s store.Store) *Queue {
	return &Queue{store: s}
}

// Escalate appends a review entry for f. attempts is the terminal attempt
// count; when zero it is taken from a FetchError in err's chain, or 1.
func (q *Queue) Escalate(ctx context.Context, f *model.Facility, stage model.ReviewStage, cause error, attempts int) (*model.ReviewEntry, error) {
	if cause == nil {
		return nil, eris.New("escalation: nil cause")
	}

	e := &model.ReviewEntry{
		FacilityID:   f.ID,
		FacilityName: f.Name,
		Jurisdiction: f.Jurisdiction,
		Locator:      f.ReportURL,
		Stage:        stage,
		Reason:       reason(cause),
		Attempts:     attempts,
	}

	var fe *document.FetchError
	if errors.As(cause, &fe) {
		if fe.Locator != "" {
			e.Locator = fe.Locator
		}
		if e.Attempts == 0 {
			e.Attempts = fe.Attempts
		}
	}
	if e.Attempts <= 0 {
		e.Attempts = 1
	}

	if err := q.store.AddReviewEntry(ctx, e); err != nil {
		return nil, eris.Wrapf(err, "escalation: facility %s", f.ID)
	}

	zap.L().Warn("escalated to manual review",
		zap.String("facility_id", f.ID),
		zap.String("facility", f.Name),
		zap.String("stage", string(stage)),
		zap.Int("attempts", e.Attempts),
		zap.String("reason", e.Reason),
	)
	return e, nil
}

// List returns review entries matching filter, newest first.
func (q *Queue) List(ctx context.Context, filter store.ReviewFilter) ([]model.ReviewEntry, error) {
	entries, err := q.store.ListReviewEntries(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "escalation: list")
	}
	return entries, nil
}

// Resolve marks an unresolved entry as handled. Resolving an unknown or
// already resolved entry returns store.ErrNotFound.
func (q *Queue) Resolve(ctx context.Context, id, by, note string) error {
	by = strings.TrimSpace(by)
	if by == "" {
		return eris.New("escalation: resolver name is required")
	}
	if err := q.store.ResolveReviewEntry(ctx, id, by, note); err != nil {
		return eris.Wrapf(err, "escalation: resolve %s", id)
	}
	zap.L().Info("review entry resolved", zap.String("id", id), zap.String("by", by))
	return nil
}

func reason(err error) string {
	return model.TruncateRunes(err.Error(), maxReasonLength)
}

// Package audit renders the per-alert audit trail for presentation. The
// stored trail is lossless; this package compacts it for the incident
// timeline, folding runs of identical adjacent events into one entry with a
// repetition suffix so a flapping automation does not drown out the human
// actions around it.
package audit

import (
	"fmt"
	"iter"
	"time"

	"github.com/alertdesk/alertdesk/internal/db/models"
)

// Entry is one rendered row of a compacted audit trail.
type Entry struct {
	UserID      string             `json:"user_id"`
	Action      string             `json:"action"`
	Description string             `json:"description"`
	Mentions    models.MentionList `json:"mentions,omitempty"`
	Count       int                `json:"count"`
	Timestamp   time.Time          `json:"timestamp"`
}

// sameGroup reports whether two events fold into one rendered entry.
// Timestamps are deliberately excluded: a repeated event is the same event
// regardless of when it fired.
func sameGroup(a, b *models.AlertAuditEvent) bool {
	return a.UserID == b.UserID && a.Action == b.Action && a.Description == b.Description
}

func render(e *models.AlertAuditEvent, count int) Entry {
	entry := Entry{
		UserID:      e.UserID,
		Action:      e.Action,
		Description: e.Description,
		Mentions:    e.Mentions,
		Count:       count,
		Timestamp:   e.Timestamp,
	}
	if count > 1 {
		entry.Description = fmt.Sprintf("%s x%d", e.Description, count)
	}
	return entry
}

// Compact folds runs of adjacent equal events (same user, action, and
// description) into single entries, suffixing the description with " x{n}"
// when a run is longer than one. Order is preserved and non-adjacent equal
// events are never merged: A B A stays three entries, because an interleaved
// trail means the repetitions were interrupted and the timeline must show
// that.
//
// The returned sequence is lazy and restartable; ranging over it twice
// produces the same entries. The final run is always flushed.
func Compact(events []*models.AlertAuditEvent) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		var current *models.AlertAuditEvent
		count := 0

		for _, e := range events {
			if current != nil && sameGroup(current, e) {
				count++
				// Keep the first event of the run: the rendered timestamp is
				// when the repetition started.
				continue
			}
			if current != nil {
				if !yield(render(current, count)) {
					return
				}
			}
			current = e
			count = 1
		}
		if current != nil {
			yield(render(current, count))
		}
	}
}

// CompactAll materializes Compact into a slice.
func CompactAll(events []*models.AlertAuditEvent) []Entry {
	var out []Entry
	for entry := range Compact(events) {
		out = append(out, entry)
	}
	return out
}

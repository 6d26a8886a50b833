package audit

import (
	"fmt"
	"testing"
	"time"

	"github.com/alertdesk/alertdesk/internal/db/models"
)

func event(userID, action, description string, at time.Time) *models.AlertAuditEvent {
	return &models.AlertAuditEvent{
		TenantID:    "tenant-1",
		Fingerprint: "fp-1",
		UserID:      userID,
		Action:      action,
		Description: description,
		Timestamp:   at,
	}
}

func TestCompact_FoldsAdjacentRuns(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	events := []*models.AlertAuditEvent{
		event("bot", "notified", "posted to slack", base),
		event("bot", "notified", "posted to slack", base.Add(time.Minute)),
		event("bot", "notified", "posted to slack", base.Add(2*time.Minute)),
		event("alice", "acknowledged", "", base.Add(3*time.Minute)),
	}

	entries := CompactAll(events)
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].Description != "posted to slack x3" {
		t.Errorf("description = %q, want %q", entries[0].Description, "posted to slack x3")
	}
	if entries[0].Count != 3 {
		t.Errorf("count = %d, want 3", entries[0].Count)
	}
	if !entries[0].Timestamp.Equal(base) {
		t.Errorf("timestamp = %v, want start of run %v", entries[0].Timestamp, base)
	}
	if entries[1].UserID != "alice" || entries[1].Count != 1 {
		t.Errorf("second entry = %+v", entries[1])
	}
}

func TestCompact_CarriesMentions(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	mentioned := event("alice", "comment", "ping the on-call", base)
	mentioned.Mentions = models.MentionList{"bob", "carol"}
	events := []*models.AlertAuditEvent{
		mentioned,
		event("alice", "acknowledged", "", base.Add(time.Minute)),
	}

	entries := CompactAll(events)
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if len(entries[0].Mentions) != 2 || entries[0].Mentions[0] != "bob" || entries[0].Mentions[1] != "carol" {
		t.Errorf("mentions = %v, want [bob carol] in order", entries[0].Mentions)
	}
	if entries[1].Mentions != nil {
		t.Errorf("mentions = %v, want nil for an event without mentions", entries[1].Mentions)
	}
}

func TestCompact_SingleEventKeepsDescription(t *testing.T) {
	events := []*models.AlertAuditEvent{
		event("alice", "comment", "looking into it", time.Now()),
	}

	entries := CompactAll(events)
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}
	if entries[0].Description != "looking into it" {
		t.Errorf("description = %q, single events must not gain a suffix", entries[0].Description)
	}
}

func TestCompact_NeverMergesNonAdjacent(t *testing.T) {
	base := time.Now()
	events := []*models.AlertAuditEvent{
		event("bot", "notified", "posted to slack", base),
		event("alice", "acknowledged", "", base.Add(time.Minute)),
		event("bot", "notified", "posted to slack", base.Add(2*time.Minute)),
	}

	entries := CompactAll(events)
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3 (interleaved events must stay separate)", len(entries))
	}
	for _, e := range entries {
		if e.Count != 1 {
			t.Errorf("entry %+v has count %d, want 1", e, e.Count)
		}
	}
}

func TestCompact_AlwaysFlushesFinalRun(t *testing.T) {
	base := time.Now()
	events := []*models.AlertAuditEvent{
		event("alice", "acknowledged", "", base),
		event("bot", "notified", "posted to slack", base.Add(time.Minute)),
		event("bot", "notified", "posted to slack", base.Add(2*time.Minute)),
	}

	entries := CompactAll(events)
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	last := entries[len(entries)-1]
	if last.Description != "posted to slack x2" {
		t.Errorf("final run = %+v, want folded with x2 suffix", last)
	}
}

func TestCompact_Empty(t *testing.T) {
	if entries := CompactAll(nil); len(entries) != 0 {
		t.Errorf("len = %d, want 0", len(entries))
	}
}

func TestCompact_Restartable(t *testing.T) {
	base := time.Now()
	var events []*models.AlertAuditEvent
	for i := 0; i < 4; i++ {
		events = append(events, event("bot", "notified", "posted", base.Add(time.Duration(i)*time.Minute)))
	}

	seq := Compact(events)

	first := make([]Entry, 0)
	for e := range seq {
		first = append(first, e)
	}
	second := make([]Entry, 0)
	for e := range seq {
		second = append(second, e)
	}

	if fmt.Sprint(first) != fmt.Sprint(second) {
		t.Errorf("sequence not restartable: %v vs %v", first, second)
	}
}

func TestCompact_EarlyBreak(t *testing.T) {
	base := time.Now()
	events := []*models.AlertAuditEvent{
		event("a", "x", "", base),
		event("b", "y", "", base.Add(time.Minute)),
		event("c", "z", "", base.Add(2*time.Minute)),
	}

	var got []Entry
	for e := range Compact(events) {
		got = append(got, e)
		if len(got) == 1 {
			break
		}
	}
	if len(got) != 1 || got[0].UserID != "a" {
		t.Errorf("got = %v, want just the first entry", got)
	}
}

package domain

import (
	"testing"
	"time"
)

func mkEvent(id int64, t EventType, date time.Time) Event {
	return Event{ID: id, Title: "event", EventType: t, Date: NewTimestamp(date)}
}

func TestFilterByType(t *testing.T) {
	events := []Event{
		mkEvent(1, TypeParty, time.Date(2026, 3, 10, 20, 0, 0, 0, time.Local)),
		mkEvent(2, TypeExam, time.Date(2026, 3, 12, 9, 0, 0, 0, time.Local)),
		mkEvent(3, TypeParty, time.Date(2026, 4, 1, 22, 0, 0, 0, time.Local)),
	}

	got := FilterByType(events, TypeParty)
	if len(got) != 2 {
		t.Fatalf("expected 2 party events, got %d", len(got))
	}
	for _, e := range got {
		if e.EventType != TypeParty {
			t.Errorf("event %d has type %s, want PARTY", e.ID, e.EventType)
		}
	}
}

func TestFilterByMonth(t *testing.T) {
	events := []Event{
		mkEvent(1, TypeExam, time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)),
		mkEvent(2, TypeExam, time.Date(2026, 4, 10, 9, 0, 0, 0, time.Local)),
		mkEvent(3, TypeOther, time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)),
	}

	got := FilterByMonth(events, 2026, time.March)
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected only event 1 in 2026-03, got %v", got)
	}
}

func TestFilterCompositionOrderIndependent(t *testing.T) {
	events := []Event{
		mkEvent(1, TypeParty, time.Date(2026, 3, 10, 20, 0, 0, 0, time.Local)),
		mkEvent(2, TypeExam, time.Date(2026, 3, 12, 9, 0, 0, 0, time.Local)),
		mkEvent(3, TypeParty, time.Date(2026, 4, 1, 22, 0, 0, 0, time.Local)),
		mkEvent(4, TypeParty, time.Date(2026, 3, 28, 21, 0, 0, 0, time.Local)),
	}

	typeThenMonth := FilterByMonth(FilterByType(events, TypeParty), 2026, time.March)
	monthThenType := FilterByType(FilterByMonth(events, 2026, time.March), TypeParty)

	if len(typeThenMonth) != len(monthThenType) {
		t.Fatalf("filter order changed result size: %d vs %d", len(typeThenMonth), len(monthThenType))
	}
	for i := range typeThenMonth {
		if typeThenMonth[i].ID != monthThenType[i].ID {
			t.Errorf("filter order changed result: %v vs %v", typeThenMonth, monthThenType)
		}
	}
	if len(typeThenMonth) != 2 {
		t.Fatalf("expected 2 march parties, got %d", len(typeThenMonth))
	}
}

func TestFilterEmptyInput(t *testing.T) {
	if got := FilterByType(nil, TypeParty); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
	if got := FilterByMonth([]Event{}, 2026, time.January); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

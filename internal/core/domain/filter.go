package domain

import "time"

// FilterByType returns the events whose type equals t. A pure projection
// over an already-fetched list; it never triggers a fetch.
func FilterByType(events []Event, t EventType) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

// FilterByMonth returns the events whose date falls inside the given
// month and year. Composes with FilterByType in either order.
func FilterByMonth(events []Event, year int, month time.Month) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if e.Date.Year() == year && e.Date.Month() == month {
			out = append(out, e)
		}
	}
	return out
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/eventosacademicos/campus-agenda/internal/core/domain"
	"github.com/eventosacademicos/campus-agenda/internal/core/ports"
	"github.com/eventosacademicos/campus-agenda/internal/core/service"
)

const eventsUsage = `usage: agenda events <list|show|create|update|delete|members> [flags]`

func (a *app) cmdEvents(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, eventsUsage)
		return fmt.Errorf("missing events subcommand")
	}
	switch args[0] {
	case "list":
		return a.eventsList(ctx, args[1:])
	case "show":
		return a.eventsShow(ctx, args[1:])
	case "create":
		return a.eventsCreate(ctx, args[1:])
	case "update":
		return a.eventsUpdate(ctx, args[1:])
	case "delete":
		return a.eventsDelete(ctx, args[1:])
	case "members":
		return a.eventsMembers(ctx, args[1:])
	default:
		fmt.Fprintln(os.Stderr, eventsUsage)
		return fmt.Errorf("unknown events subcommand %q", args[0])
	}
}

func (a *app) eventsList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("events list", flag.ContinueOnError)
	typeFlag := fs.String("type", "", "filter by event type (EXAM, WORK, PARTY, MEETING, OTHER; ALL clears)")
	monthFlag := fs.String("month", "", "filter by month, YYYY-MM (ALL clears)")
	all := fs.Bool("all", false, "every visible event instead of the user's own")
	academic := fs.Bool("academic", false, "academic events only (exams and assignments)")
	party := fs.Bool("party", false, "party events only")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Filters persist between runs like the browser's stored selections;
	// logout wipes them with the rest of the session.
	prefs := a.loadPrefs()
	typeFilter, monthFilter := resolveFilters(prefs, *typeFlag, *monthFlag)
	a.savePrefs(ports.Preferences{EventTypeFilter: typeFilter, SelectedMonth: monthFilter})

	var (
		events []domain.Event
		err    error
	)
	switch {
	case *all:
		events, err = a.events.AllEvents(ctx)
	case *academic:
		events, err = a.events.AcademicEvents(ctx)
	case *party:
		events, err = a.events.PartyEvents(ctx)
	default:
		events, err = a.events.ListUserEvents(ctx)
	}
	if err != nil {
		return err
	}

	events, err = applyFilters(events, typeFilter, monthFilter)
	if err != nil {
		return err
	}
	renderEvents(os.Stdout, events)
	return nil
}

func (a *app) eventsShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("events show", flag.ContinueOnError)
	id := fs.Int64("id", 0, "event id")
	reload := fs.Bool("reload", false, "bypass the cache and fetch fresh")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return fmt.Errorf("-id is required")
	}

	var (
		ev  *domain.Event
		err error
	)
	if *reload {
		ev, err = a.events.ReloadEvent(ctx, *id)
	} else {
		ev, err = a.events.GetEvent(ctx, *id)
	}
	if err != nil {
		return err
	}
	renderEventDetail(os.Stdout, ev)
	return nil
}

func (a *app) eventsCreate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("events create", flag.ContinueOnError)
	title := fs.String("title", "", "event title")
	desc := fs.String("description", "", "event description")
	typeFlag := fs.String("type", "", "event type (EXAM, WORK, PARTY, MEETING, OTHER)")
	dateFlag := fs.String("date", "", `event date, "2006-01-02 15:04"`)
	membersFlag := fs.String("members", "", "comma-separated user ids to invite")
	if err := fs.Parse(args); err != nil {
		return err
	}

	in, err := buildEventInput(*title, *desc, *typeFlag, *dateFlag, *membersFlag)
	if err != nil {
		return err
	}

	created, err := a.events.CreateEvent(ctx, in, &service.EventCallbacks{
		OnSuccess: func(ev *domain.Event) {
			fmt.Printf("created event %d: %s\n", ev.ID, ev.Title)
		},
	})
	if err != nil {
		return err
	}
	renderEventDetail(os.Stdout, created)
	return nil
}

func (a *app) eventsUpdate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("events update", flag.ContinueOnError)
	id := fs.Int64("id", 0, "event id")
	title := fs.String("title", "", "event title")
	desc := fs.String("description", "", "event description")
	typeFlag := fs.String("type", "", "event type")
	dateFlag := fs.String("date", "", `event date, "2006-01-02 15:04"`)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return fmt.Errorf("-id is required")
	}

	in, err := buildEventInput(*title, *desc, *typeFlag, *dateFlag, "")
	if err != nil {
		return err
	}
	updated, err := a.events.UpdateEvent(ctx, *id, in)
	if err != nil {
		return err
	}
	renderEventDetail(os.Stdout, updated)
	return nil
}

func (a *app) eventsDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("events delete", flag.ContinueOnError)
	id := fs.Int64("id", 0, "event id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return fmt.Errorf("-id is required")
	}
	if err := a.events.DeleteEvent(ctx, *id); err != nil {
		return err
	}
	fmt.Printf("deleted event %d\n", *id)
	return nil
}

func (a *app) eventsMembers(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("events members", flag.ContinueOnError)
	id := fs.Int64("id", 0, "event id")
	set := fs.String("set", "", "comma-separated user ids: reconcile membership to exactly this set")
	add := fs.Int64("add", 0, "user id to add")
	remove := fs.Int64("remove", 0, "user id to remove")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return fmt.Errorf("-id is required")
	}

	switch {
	case *set != "":
		desired, err := parseIDList(*set)
		if err != nil {
			return err
		}
		ev, err := a.events.SaveMemberships(ctx, *id, desired)
		if err != nil {
			return err
		}
		renderEventDetail(os.Stdout, ev)
		return nil
	case *add != 0:
		ev, err := a.events.AddMember(ctx, *id, *add)
		if err != nil {
			return err
		}
		renderEventDetail(os.Stdout, ev)
		return nil
	case *remove != 0:
		if err := a.events.RemoveMember(ctx, *id, *remove); err != nil {
			return err
		}
		fmt.Printf("removed user %d from event %d\n", *remove, *id)
		return nil
	default:
		members, err := a.events.Members(ctx, *id)
		if err != nil {
			return err
		}
		renderMembers(os.Stdout, members)
		return nil
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (a *app) loadPrefs() ports.Preferences {
	st, err := a.store.Load()
	if err != nil {
		return ports.Preferences{}
	}
	return st.Preferences
}

func (a *app) savePrefs(p ports.Preferences) {
	if err := a.store.SavePreferences(p); err != nil {
		a.log.Warn().Err(err).Msg("saving preferences failed")
	}
}

// resolveFilters merges flags over stored preferences; "ALL" clears.
func resolveFilters(prefs ports.Preferences, typeFlag, monthFlag string) (string, string) {
	typeFilter := prefs.EventTypeFilter
	if typeFlag != "" {
		typeFilter = strings.ToUpper(typeFlag)
	}
	if typeFilter == "ALL" {
		typeFilter = ""
	}
	monthFilter := prefs.SelectedMonth
	if monthFlag != "" {
		monthFilter = monthFlag
	}
	if strings.EqualFold(monthFilter, "ALL") {
		monthFilter = ""
	}
	return typeFilter, monthFilter
}

// applyFilters is a pure projection over the fetched list; order of the
// two filters does not matter.
func applyFilters(events []domain.Event, typeFilter, monthFilter string) ([]domain.Event, error) {
	if typeFilter != "" {
		t := domain.EventType(typeFilter)
		if !t.Valid() {
			return nil, fmt.Errorf("unknown event type %q", typeFilter)
		}
		events = domain.FilterByType(events, t)
	}
	if monthFilter != "" {
		m, err := time.Parse("2006-01", monthFilter)
		if err != nil {
			return nil, fmt.Errorf("invalid month %q, want YYYY-MM", monthFilter)
		}
		events = domain.FilterByMonth(events, m.Year(), m.Month())
	}
	return events, nil
}

func buildEventInput(title, desc, typeFlag, dateFlag, membersFlag string) (ports.EventInput, error) {
	in := ports.EventInput{
		Title:       title,
		Description: desc,
		EventType:   domain.EventType(strings.ToUpper(typeFlag)),
		MemberIDs:   []int64{},
	}
	if dateFlag != "" {
		t, err := parseDate(dateFlag)
		if err != nil {
			return in, err
		}
		in.Date = domain.NewTimestamp(t)
	}
	if membersFlag != "" {
		ids, err := parseIDList(membersFlag)
		if err != nil {
			return in, err
		}
		in.MemberIDs = ids
	}
	return in, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func parseIDList(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

func renderEvents(out *os.File, events []domain.Event) {
	if len(events) == 0 {
		fmt.Fprintln(out, "no events")
		return
	}
	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tTYPE\tTITLE\tORGANIZER\tMEMBERS")
	for _, e := range events {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n",
			e.ID, e.Date.Format("2006-01-02 15:04"), e.EventType, e.Title, e.Organizer.Username, len(e.Members))
	}
	_ = w.Flush()
}

func renderEventDetail(out *os.File, e *domain.Event) {
	fmt.Fprintf(out, "event %d: %s\n", e.ID, e.Title)
	fmt.Fprintf(out, "  type:      %s\n", e.EventType)
	fmt.Fprintf(out, "  date:      %s\n", e.Date.Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "  organizer: %s (%d)\n", e.Organizer.Username, e.Organizer.ID)
	if e.Description != "" {
		fmt.Fprintf(out, "  notes:     %s\n", e.Description)
	}
	fmt.Fprintf(out, "  members (%d):\n", len(e.Members))
	for _, m := range e.Members {
		fmt.Fprintf(out, "    %s (%d) joined %s\n", m.User.Username, m.User.ID, m.JoinedAt.Format("2006-01-02"))
	}
}

func renderMembers(out *os.File, members []domain.EventMember) {
	if len(members) == 0 {
		fmt.Fprintln(out, "no members")
		return
	}
	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER ID\tUSERNAME\tJOINED")
	for _, m := range members {
		fmt.Fprintf(w, "%d\t%s\t%s\n", m.User.ID, m.User.Username, m.JoinedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

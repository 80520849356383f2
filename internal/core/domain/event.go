package domain

// EventType classifies an event on the calendar.
type EventType string

const (
	TypeExam    EventType = "EXAM"
	TypeWork    EventType = "WORK"
	TypeParty   EventType = "PARTY"
	TypeMeeting EventType = "MEETING"
	TypeOther   EventType = "OTHER"
)

// EventTypes lists every known event type in display order.
var EventTypes = []EventType{TypeExam, TypeWork, TypeParty, TypeMeeting, TypeOther}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case TypeExam, TypeWork, TypeParty, TypeMeeting, TypeOther:
		return true
	}
	return false
}

// Academic reports whether the type belongs to the academic subset
// (exams and assignment deadlines, which only teachers may create).
func (t EventType) Academic() bool {
	return t == TypeExam || t == TypeWork
}

// EventRef is the compact event shape embedded in memberships.
type EventRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Event is a calendar entry. The organizer is implicitly a member and is
// the only actor the backend permits to edit or delete the event.
type Event struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	EventType   EventType     `json:"eventType"`
	Date        Timestamp     `json:"date"`
	Organizer   UserRef       `json:"organizer"`
	Members     []EventMember `json:"members"`
}

// MemberIDs returns the user ids of the current member list, in order.
func (e *Event) MemberIDs() []int64 {
	ids := make([]int64, 0, len(e.Members))
	for _, m := range e.Members {
		ids = append(ids, m.User.ID)
	}
	return ids
}

// OrganizedBy reports whether the given user created the event.
func (e *Event) OrganizedBy(userID int64) bool {
	return e.Organizer.ID == userID
}

// EventMember links a user to an event. Created when the user is added,
// destroyed when removed.
type EventMember struct {
	ID       int64     `json:"id"`
	User     UserRef   `json:"user"`
	Event    EventRef  `json:"event"`
	JoinedAt Timestamp `json:"joinedAt"`
}

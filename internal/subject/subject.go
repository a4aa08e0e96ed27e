// Package subject holds the registered participant record, its dated activity logs
// and the stores that persist it.
package subject

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the category of a dated action.
type Kind string

const (
	KindAttendance Kind = "attendance"
	KindMeal       Kind = "meal"
	KindExcursion  Kind = "excursion"
)

// Kinds lists every known kind.
var Kinds = []Kind{KindAttendance, KindMeal, KindExcursion}

// ParseKind validates s as a Kind.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindAttendance, KindMeal, KindExcursion:
		return k, true
	}
	return "", false
}

// Scoped reports whether uniqueness for k is further scoped by a sub type.
func (k Kind) Scoped() bool { return k == KindMeal }

// Status is the admin verification state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Terminal reports whether no further transition is defined out of s.
func (s Status) Terminal() bool { return s == StatusAccepted || s == StatusRejected }

// Entry is one dated action in a subject's log.
type Entry struct {
	ID         uuid.UUID `json:"id"`
	SubType    string    `json:"sub_type,omitempty"`
	Day        string    `json:"day"`
	OccurredAt time.Time `json:"occurred_at"`
	Status     bool      `json:"status"`
}

// Verification is the admission record of a subject.
type Verification struct {
	Status       Status     `json:"status"`
	Verified     bool       `json:"verified"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
	RequestedAt  time.Time  `json:"requested_at"`
	AdminEmail   string     `json:"admin_email,omitempty"`
	AdminRemarks string     `json:"admin_remarks,omitempty"`
}

// Arrival is one check-in at the registration desk.
type Arrival struct {
	CheckedIn bool       `json:"checked_in"`
	At        *time.Time `json:"at,omitempty"`
}

func (a Arrival) clone() Arrival {
	if a.At != nil {
		at := *a.At
		a.At = &at
	}
	return a
}

// CheckIn holds the arrivals of a subject and of the person accompanying them.
type CheckIn struct {
	Participant Arrival `json:"participant"`
	Accompany   Arrival `json:"accompany"`
}

// Name is a person's full name.
type Name struct {
	First  string `json:"first"`
	Middle string `json:"middle,omitempty"`
	Last   string `json:"last"`
}

// Full joins the non-empty name parts with single spaces.
func (n Name) Full() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{n.First, n.Middle, n.Last} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Subject is a registered participant.
type Subject struct {
	ID           uuid.UUID `json:"id"`
	UniqueNumber int64     `json:"unique_number"`

	Title        string `json:"title,omitempty"`
	Name         Name   `json:"name"`
	Email        string `json:"email"`
	Mobile       string `json:"mobile,omitempty"`
	Institution  string `json:"institution,omitempty"`
	JobPosition  string `json:"job_position,omitempty"`
	Gender       string `json:"gender"`
	Biography    string `json:"biography,omitempty"`
	PictureURL   string `json:"picture_url,omitempty"`
	PasswordHash string `json:"-"`

	ConferenceKitReceived bool `json:"conference_kit_received"`
	ExcursionAttended     bool `json:"excursion_attended"`
	HasAccompanyingPerson bool `json:"has_accompanying_person"`

	CheckIn CheckIn `json:"check_in"`

	Attendance []Entry `json:"attendance"`
	Meals      []Entry `json:"meals"`
	Excursions []Entry `json:"excursions"`

	Verification Verification `json:"verification"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns a pending subject with a fresh ID.
func New(name Name, email string, now time.Time) *Subject {
	return &Subject{
		ID:     uuid.New(),
		Name:   name,
		Email:  email,
		Gender: "male",
		Verification: Verification{
			Status:      StatusPending,
			RequestedAt: now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Log returns the log of kind k.
func (s *Subject) Log(k Kind) []Entry {
	switch k {
	case KindAttendance:
		return s.Attendance
	case KindMeal:
		return s.Meals
	case KindExcursion:
		return s.Excursions
	}
	return nil
}

func (s *Subject) setLog(k Kind, log []Entry) {
	switch k {
	case KindAttendance:
		s.Attendance = log
	case KindMeal:
		s.Meals = log
	case KindExcursion:
		s.Excursions = log
	}
}

// Append adds e to the log of kind k.
func (s *Subject) Append(k Kind, e Entry) {
	s.setLog(k, append(s.Log(k), e))
}

// Find returns the index of the entry of kind k recorded on day, or -1.
// subType is only compared for scoped kinds.
func (s *Subject) Find(k Kind, subType, day string) int {
	for i, e := range s.Log(k) {
		if e.Day != day {
			continue
		}
		if k.Scoped() && e.SubType != subType {
			continue
		}
		return i
	}
	return -1
}

// Latest returns the index of the most recent entry of kind k, or -1.
// For scoped kinds only entries with subType are considered.
func (s *Subject) Latest(k Kind, subType string) int {
	idx := -1
	for i, e := range s.Log(k) {
		if k.Scoped() && e.SubType != subType {
			continue
		}
		if idx == -1 || !e.OccurredAt.Before(s.Log(k)[idx].OccurredAt) {
			idx = i
		}
	}
	return idx
}

// MarkArrival checks in the participant and, when asked, the accompanying person.
// An arrival already recorded keeps its first time. The accompanying person is only
// checked in when the subject has one; skipped reports a requested check-in that was not.
func (s *Subject) MarkArrival(participant, accompany bool, now time.Time) (skipped bool) {
	mark := func(a *Arrival) {
		if a.CheckedIn {
			return
		}
		at := now
		a.CheckedIn = true
		a.At = &at
	}
	if participant {
		mark(&s.CheckIn.Participant)
	}
	if accompany {
		if !s.HasAccompanyingPerson {
			return true
		}
		mark(&s.CheckIn.Accompany)
	}
	return false
}

// Clone returns a deep copy of s.
func (s *Subject) Clone() *Subject {
	c := *s
	c.Attendance = append([]Entry(nil), s.Attendance...)
	c.Meals = append([]Entry(nil), s.Meals...)
	c.Excursions = append([]Entry(nil), s.Excursions...)
	if s.Verification.VerifiedAt != nil {
		at := *s.Verification.VerifiedAt
		c.Verification.VerifiedAt = &at
	}
	c.CheckIn.Participant = s.CheckIn.Participant.clone()
	c.CheckIn.Accompany = s.CheckIn.Accompany.clone()
	return &c
}

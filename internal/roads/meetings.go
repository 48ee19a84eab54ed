package roads

import (
	"regexp"
	"sort"
	"time"
)

var clockRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

// Meeting is a scheduled lot meeting. HasMinutes mirrors the existence of its PV.
type Meeting struct {
	ID              int64     `json:"id"`
	LotID           int64     `json:"lot_id"`
	Title           string    `json:"title"`
	Date            Date      `json:"date"`
	Time            string    `json:"time"`
	Location        string    `json:"location"`
	Participants    []string  `json:"participants"`
	Agenda          string    `json:"agenda"`
	InvitationsSent bool      `json:"invitations_sent"`
	HasMinutes      bool      `json:"has_minutes"`
	CreatedBy       int64     `json:"created_by"`
	Creator         string    `json:"creator,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Minutes is the PV of a meeting; a meeting has at most one.
type Minutes struct {
	ID        int64     `json:"id"`
	MeetingID int64     `json:"meeting_id"`
	Content   string    `json:"content"`
	Decisions string    `json:"decisions"`
	NextSteps string    `json:"next_steps"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MeetingInput struct {
	LotID        int64    `json:"-"`
	Title        string   `json:"title"`
	Date         Date     `json:"date"`
	Time         string   `json:"time"`
	Location     string   `json:"location"`
	Participants []string `json:"participants"`
	Agenda       string   `json:"agenda"`
	CreatedBy    int64    `json:"-"`
}

func (in *MeetingInput) Normalize() error {
	in.Title = clean(in.Title)
	in.Time = clean(in.Time)
	in.Location = clean(in.Location)
	in.Agenda = clean(in.Agenda)
	in.Participants = cleanParticipants(in.Participants)
	if in.LotID <= 0 {
		return Invalid("lot id is required")
	}
	if in.Title == "" {
		return Invalid("title is required")
	}
	if in.Date.IsZero() {
		return Invalid("date is required")
	}
	if in.Time != "" && !clockRe.MatchString(in.Time) {
		return Invalid("time must be HH:MM")
	}
	return nil
}

type MeetingPatch struct {
	Title        *string   `json:"title"`
	Date         *Date     `json:"date"`
	Time         *string   `json:"time"`
	Location     *string   `json:"location"`
	Participants *[]string `json:"participants"`
	Agenda       *string   `json:"agenda"`
}

func (p *MeetingPatch) Normalize() error {
	p.Title = cleanPtr(p.Title)
	p.Time = cleanPtr(p.Time)
	p.Location = cleanPtr(p.Location)
	p.Agenda = cleanPtr(p.Agenda)
	if p.Title != nil && *p.Title == "" {
		return Invalid("title cannot be empty")
	}
	if p.Date != nil && p.Date.IsZero() {
		return Invalid("date cannot be empty")
	}
	if p.Time != nil && *p.Time != "" && !clockRe.MatchString(*p.Time) {
		return Invalid("time must be HH:MM")
	}
	if p.Participants != nil {
		list := cleanParticipants(*p.Participants)
		p.Participants = &list
	}
	return nil
}

// Apply copies the set fields of the patch onto m.
func (p MeetingPatch) Apply(m *Meeting) {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Date != nil {
		m.Date = *p.Date
	}
	if p.Time != nil {
		m.Time = *p.Time
	}
	if p.Location != nil {
		m.Location = *p.Location
	}
	if p.Participants != nil {
		m.Participants = append([]string(nil), (*p.Participants)...)
	}
	if p.Agenda != nil {
		m.Agenda = *p.Agenda
	}
}

type MinutesInput struct {
	Content   string
	Decisions string
	NextSteps string
	Author    int64
}

func (in *MinutesInput) Normalize() error {
	in.Content = clean(in.Content)
	in.Decisions = clean(in.Decisions)
	in.NextSteps = clean(in.NextSteps)
	if in.Content == "" {
		return Invalid("content is required")
	}
	return nil
}

// ParticipantCount is how often a participant attended the lot's meetings.
type ParticipantCount struct {
	Name     string `json:"name"`
	Meetings int    `json:"meetings"`
}

// RankParticipants counts participants across meetings, most frequent first.
func RankParticipants(meetings []Meeting) []ParticipantCount {
	counts := map[string]int{}
	for _, m := range meetings {
		seen := map[string]bool{}
		for _, p := range m.Participants {
			if seen[p] {
				continue
			}
			seen[p] = true
			counts[p]++
		}
	}
	out := make([]ParticipantCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, ParticipantCount{Name: name, Meetings: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Meetings != out[j].Meetings {
			return out[i].Meetings > out[j].Meetings
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func cleanParticipants(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, p := range in {
		p = clean(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

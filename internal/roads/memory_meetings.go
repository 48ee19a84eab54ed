package roads

import (
	"context"
	"sort"
)

func (s *InMemory) meetingView(m *Meeting) Meeting {
	out := *m
	out.Participants = append([]string{}, m.Participants...)
	_, out.HasMinutes = s.minutes[m.ID]
	out.Creator = s.username(m.CreatedBy)
	return out
}

func (s *InMemory) CreateMeeting(ctx context.Context, in MeetingInput) (Meeting, error) {
	if err := in.Normalize(); err != nil {
		return Meeting{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lots[in.LotID]; !ok {
		return Meeting{}, NotFound("lot")
	}
	if _, ok := s.users[in.CreatedBy]; !ok {
		return Meeting{}, NotFound("user")
	}
	m := &Meeting{
		ID:           s.next("meetings"),
		LotID:        in.LotID,
		Title:        in.Title,
		Date:         in.Date,
		Time:         in.Time,
		Location:     in.Location,
		Participants: in.Participants,
		Agenda:       in.Agenda,
		CreatedBy:    in.CreatedBy,
		CreatedAt:    s.stamp(),
	}
	s.meetings[m.ID] = m
	return s.meetingView(m), nil
}

// ListMeetings returns the lot's meetings by date and time. upcomingOnly
// keeps meetings dated today or later.
func (s *InMemory) ListMeetings(ctx context.Context, lotID int64, upcomingOnly bool) ([]Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	today := NewDate(s.now())
	out := []Meeting{}
	for _, m := range s.meetings {
		if m.LotID != lotID {
			continue
		}
		if upcomingOnly && m.Date.Before(today.Time) {
			continue
		}
		out = append(out, s.meetingView(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *InMemory) GetMeeting(ctx context.Context, id int64) (Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[id]
	if !ok {
		return Meeting{}, NotFound("meeting")
	}
	return s.meetingView(m), nil
}

func (s *InMemory) UpdateMeeting(ctx context.Context, id int64, p MeetingPatch) (Meeting, error) {
	if err := p.Normalize(); err != nil {
		return Meeting{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return Meeting{}, NotFound("meeting")
	}
	p.Apply(m)
	return s.meetingView(m), nil
}

func (s *InMemory) DeleteMeeting(ctx context.Context, id int64) (Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return Meeting{}, NotFound("meeting")
	}
	out := s.meetingView(m)
	delete(s.minutes, id)
	delete(s.meetings, id)
	return out, nil
}

func (s *InMemory) SendInvitations(ctx context.Context, id int64) (Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return Meeting{}, NotFound("meeting")
	}
	m.InvitationsSent = true
	return s.meetingView(m), nil
}

func (s *InMemory) SaveMinutes(ctx context.Context, meetingID int64, in MinutesInput) (Minutes, bool, error) {
	if err := in.Normalize(); err != nil {
		return Minutes{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[meetingID]; !ok {
		return Minutes{}, false, NotFound("meeting")
	}
	now := s.stamp()
	if pv, ok := s.minutes[meetingID]; ok {
		pv.Content, pv.Decisions, pv.NextSteps = in.Content, in.Decisions, in.NextSteps
		pv.UpdatedAt = now
		return *pv, false, nil
	}
	if _, ok := s.users[in.Author]; !ok {
		return Minutes{}, false, NotFound("user")
	}
	pv := &Minutes{
		ID:        s.next("meeting_minutes"),
		MeetingID: meetingID,
		Content:   in.Content,
		Decisions: in.Decisions,
		NextSteps: in.NextSteps,
		CreatedBy: in.Author,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.minutes[meetingID] = pv
	return *pv, true, nil
}

func (s *InMemory) GetMinutes(ctx context.Context, meetingID int64) (Minutes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.meetings[meetingID]; !ok {
		return Minutes{}, NotFound("meeting")
	}
	pv, ok := s.minutes[meetingID]
	if !ok {
		return Minutes{}, NotFound("minutes")
	}
	return *pv, nil
}

func (s *InMemory) UsualParticipants(ctx context.Context, lotID int64) ([]ParticipantCount, error) {
	meetings, err := s.ListMeetings(ctx, lotID, false)
	if err != nil {
		return nil, err
	}
	return RankParticipants(meetings), nil
}

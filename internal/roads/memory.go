package roads

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemory implements Store with in-process concurrency safety. It mirrors
// the relational constraints of the PostgreSQL store (foreign keys, cascades,
// unique usernames) so both behave the same behind the API.
type InMemory struct {
	mu  sync.RWMutex
	now func() time.Time
	seq map[string]int64

	users         map[int64]*User
	lots          map[int64]*Lot
	types         map[int64]*DocumentType
	sections      map[int64]*Section
	geo           map[int64]Geodata
	inspections   map[int64][]Inspection
	documents     map[int64]*Document
	versions      map[int64][]Version
	meetings      map[int64]*Meeting
	minutes       map[int64]*Minutes
	messages      []Message
	notifications map[int64]*Notification
	actions       []UserAction
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		now:           time.Now,
		seq:           map[string]int64{},
		users:         map[int64]*User{},
		lots:          map[int64]*Lot{},
		types:         map[int64]*DocumentType{},
		sections:      map[int64]*Section{},
		geo:           map[int64]Geodata{},
		inspections:   map[int64][]Inspection{},
		documents:     map[int64]*Document{},
		versions:      map[int64][]Version{},
		meetings:      map[int64]*Meeting{},
		minutes:       map[int64]*Minutes{},
		notifications: map[int64]*Notification{},
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *InMemory) WithClock(fn func() time.Time) *InMemory {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = fn
	return s
}

func (s *InMemory) Ping(context.Context) error { return nil }

func (s *InMemory) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

func (s *InMemory) stamp() time.Time { return s.now().UTC() }

// --- lots & types ---

func (s *InMemory) ListLots(ctx context.Context) ([]Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Lot, 0, len(s.lots))
	for _, l := range s.lots {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemory) GetLot(ctx context.Context, id int64) (Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lots[id]
	if !ok {
		return Lot{}, NotFound("lot")
	}
	return *l, nil
}

func (s *InMemory) CreateLot(ctx context.Context, in LotInput) (Lot, error) {
	if err := in.Normalize(); err != nil {
		return Lot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lots {
		if strings.EqualFold(l.Name, in.Name) {
			return Lot{}, Conflict("lot name already exists")
		}
	}
	l := &Lot{ID: s.next("lots"), Name: in.Name, Description: in.Description, Region: in.Region, CreatedAt: s.stamp()}
	s.lots[l.ID] = l
	return *l, nil
}

func (s *InMemory) ListTypes(ctx context.Context) ([]DocumentType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DocumentType, 0, len(s.types))
	for _, t := range s.types {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemory) CreateType(ctx context.Context, in TypeInput) (DocumentType, error) {
	if err := in.Normalize(); err != nil {
		return DocumentType{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.typeNameTaken(in.Name, 0) {
		return DocumentType{}, Conflict("type name already exists")
	}
	t := &DocumentType{ID: s.next("types"), Name: in.Name, Description: in.Description, CreatedAt: s.stamp()}
	s.types[t.ID] = t
	return *t, nil
}

func (s *InMemory) UpdateType(ctx context.Context, id int64, in TypeInput) (DocumentType, error) {
	if err := in.Normalize(); err != nil {
		return DocumentType{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.types[id]
	if !ok {
		return DocumentType{}, NotFound("document type")
	}
	if s.typeNameTaken(in.Name, id) {
		return DocumentType{}, Conflict("type name already exists")
	}
	t.Name, t.Description = in.Name, in.Description
	return *t, nil
}

func (s *InMemory) DeleteType(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.types[id]; !ok {
		return NotFound("document type")
	}
	for _, d := range s.documents {
		if d.TypeID != nil && *d.TypeID == id {
			return Conflict("document type is in use")
		}
	}
	delete(s.types, id)
	return nil
}

func (s *InMemory) typeNameTaken(name string, except int64) bool {
	for _, t := range s.types {
		if t.ID != except && strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

// --- users ---

func (s *InMemory) CreateUser(ctx context.Context, u NewUser) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAccountUnique(u.Username, u.Email, 0); err != nil {
		return User{}, err
	}
	if u.LotID != nil {
		if _, ok := s.lots[*u.LotID]; !ok {
			return User{}, NotFound("lot")
		}
	}
	now := s.stamp()
	rec := &User{
		ID:           s.next("users"),
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		LotID:        copyID(u.LotID),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[rec.ID] = rec
	return *rec, nil
}

func (s *InMemory) GetUser(ctx context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, NotFound("user")
	}
	return *u, nil
}

func (s *InMemory) FindUserByLogin(ctx context.Context, login string) (User, error) {
	login = strings.TrimSpace(login)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == login || strings.EqualFold(u.Email, login) {
			return *u, nil
		}
	}
	return User{}, NotFound("user")
}

func (s *InMemory) ListUsers(ctx context.Context, f UserFilter) ([]User, error) {
	role := strings.ToLower(strings.TrimSpace(f.Role))
	search := strings.ToLower(strings.TrimSpace(f.Search))
	if role == "all" || role == "tous" {
		role = ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []User{}
	for _, u := range s.users {
		if role != "" && u.Role != role {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Username), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *InMemory) UpdateUser(ctx context.Context, id int64, p UserPatch) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[id]
	if !ok {
		return User{}, NotFound("user")
	}
	next := *cur
	if err := p.Apply(&next); err != nil {
		return User{}, err
	}
	if err := s.checkAccountUnique(next.Username, next.Email, id); err != nil {
		return User{}, err
	}
	if next.LotID != nil {
		if _, ok := s.lots[*next.LotID]; !ok {
			return User{}, NotFound("lot")
		}
	}
	next.UpdatedAt = s.stamp()
	*cur = next
	return next, nil
}

func (s *InMemory) DeleteUser(ctx context.Context, id int64) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, NotFound("user")
	}
	for _, d := range s.documents {
		if d.CreatorID == id {
			return User{}, Conflict("user owns documents")
		}
	}
	for _, vs := range s.versions {
		for _, v := range vs {
			if v.CreatedBy == id {
				return User{}, Conflict("user authored document versions")
			}
		}
	}
	for _, m := range s.meetings {
		if m.CreatedBy == id {
			return User{}, Conflict("user organised meetings")
		}
	}
	for _, m := range s.minutes {
		if m.CreatedBy == id {
			return User{}, Conflict("user wrote meeting minutes")
		}
	}
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.SenderID != id && m.RecipientID != id {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	for nid, n := range s.notifications {
		if n.UserID == id {
			delete(s.notifications, nid)
		}
	}
	for i := range s.actions {
		if s.actions[i].UserID != nil && *s.actions[i].UserID == id {
			s.actions[i].UserID = nil
		}
	}
	for _, sec := range s.sections {
		if sec.CreatedBy != nil && *sec.CreatedBy == id {
			sec.CreatedBy = nil
		}
	}
	delete(s.users, id)
	return *u, nil
}

func (s *InMemory) SetPassword(ctx context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return NotFound("user")
	}
	u.PasswordHash = hash
	u.UpdatedAt = s.stamp()
	return nil
}

func (s *InMemory) checkAccountUnique(username, email string, except int64) error {
	for _, u := range s.users {
		if u.ID == except {
			continue
		}
		if u.Username == username {
			return Conflict("username already taken")
		}
		if strings.EqualFold(u.Email, email) {
			return Conflict("email already registered")
		}
	}
	return nil
}

func (s *InMemory) username(id int64) string {
	if u, ok := s.users[id]; ok {
		return u.Username
	}
	return ""
}

// --- audit & dashboard ---

func (s *InMemory) RecordAction(ctx context.Context, a UserAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.next("user_actions")
	a.CreatedAt = s.stamp()
	a.Username = ""
	a.UserID = copyID(a.UserID)
	s.actions = append(s.actions, a)
	return nil
}

func (s *InMemory) RecentActions(ctx context.Context, limit int) ([]UserAction, error) {
	if limit <= 0 {
		limit = 10
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]UserAction, 0, limit)
	for i := len(s.actions) - 1; i >= 0 && len(out) < limit; i-- {
		a := s.actions[i]
		if a.UserID != nil {
			a.Username = s.username(*a.UserID)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *InMemory) DashboardStats(ctx context.Context) (DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := DashboardStats{
		TotalUsers:     len(s.users),
		TotalSections:  len(s.sections),
		TotalDocuments: len(s.documents),
		TotalLots:      len(s.lots),
	}
	for _, u := range s.users {
		if u.IsActive {
			st.ActiveUsers++
		}
	}
	since := s.stamp().Add(-RecentActionWindow)
	for _, a := range s.actions {
		if !a.CreatedAt.Before(since) {
			st.RecentActions++
		}
	}
	return st, nil
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func copyPoint(p *Point) *Point {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

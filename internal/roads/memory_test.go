package roads

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"roadwatch.mg/internal/query"
)

type fixture struct {
	store *InMemory
	user  User
	lot   Lot
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	s := NewInMemory()
	u, err := s.CreateUser(ctx, NewUser{Username: "rado", Email: "rado@example.mg", PasswordHash: "x", Role: "admin"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	l, err := s.CreateLot(ctx, LotInput{Name: "Lot 1", Region: "Analamanga"})
	if err != nil {
		t.Fatalf("create lot: %v", err)
	}
	return fixture{store: s, user: u, lot: l}
}

func (f fixture) document(t *testing.T) Document {
	t.Helper()
	d, err := f.store.CreateDocument(context.Background(), DocumentInput{
		Title:     "Rapport",
		LotID:     &f.lot.ID,
		File:      File{Ref: "01HZZZZZZZZZZZZZZZZZZZZZZZ.pdf", Name: "rapport.pdf"},
		CreatorID: f.user.ID,
	})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	return d
}

func TestConcurrentVersionsAreDense(t *testing.T) {
	f := newFixture(t)
	doc := f.document(t)

	const n = 32
	var wg sync.WaitGroup
	numbers := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := f.store.CreateVersion(context.Background(), doc.ID, VersionInput{
				File:               File{Ref: fmt.Sprintf("ref-%d", i), Name: "v.pdf"},
				ChangesDescription: "update",
				CreatedBy:          f.user.ID,
			})
			numbers[i], errs[i] = v.VersionNumber, err
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("version %d: %v", i, err)
		}
	}
	sort.Ints(numbers)
	for i, got := range numbers {
		if got != i+1 {
			t.Fatalf("numbers = %v, want 1..%d", numbers, n)
		}
	}
}

func TestVersionsListedNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.document(t)
	if doc.State() != "draft" {
		t.Fatalf("new document state = %s", doc.State())
	}
	for i := 0; i < 2; i++ {
		if _, err := f.store.CreateVersion(ctx, doc.ID, VersionInput{File: File{Ref: "r", Name: "v.pdf"}, ChangesDescription: "fix", CreatedBy: f.user.ID}); err != nil {
			t.Fatalf("create version: %v", err)
		}
	}
	detail, err := f.store.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if len(detail.Versions) != 2 || detail.Versions[0].VersionNumber != 2 || detail.Versions[1].VersionNumber != 1 {
		t.Fatalf("versions = %+v, want [2 1]", detail.Versions)
	}
	if detail.State() != "versioned" || detail.LatestVersion != 2 {
		t.Fatalf("state=%s latest=%d", detail.State(), detail.LatestVersion)
	}
}

func TestCreateVersionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.document(t)

	_, err := f.store.CreateVersion(ctx, doc.ID, VersionInput{File: File{Ref: "r"}, CreatedBy: f.user.ID})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("empty description err = %v", err)
	}
	_, err = f.store.CreateVersion(ctx, doc.ID, VersionInput{ChangesDescription: "x", CreatedBy: f.user.ID})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("missing file err = %v", err)
	}
	_, err = f.store.CreateVersion(ctx, 999, VersionInput{File: File{Ref: "r"}, ChangesDescription: "x", CreatedBy: f.user.ID})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown document err = %v", err)
	}
}

func TestGetVersionOfOtherDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.document(t), f.document(t)
	v, err := f.store.CreateVersion(ctx, a.ID, VersionInput{File: File{Ref: "r"}, ChangesDescription: "x", CreatedBy: f.user.ID})
	if err != nil {
		t.Fatalf("create version: %v", err)
	}
	if _, err := f.store.GetVersion(ctx, b.ID, v.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-document version err = %v", err)
	}
	if got, err := f.store.GetVersion(ctx, a.ID, v.ID); err != nil || got.VersionNumber != 1 {
		t.Fatalf("get version = %+v, %v", got, err)
	}
}

func TestDeleteDocumentCascadesVersions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.document(t)
	for i := 0; i < 3; i++ {
		if _, err := f.store.CreateVersion(ctx, doc.ID, VersionInput{File: File{Ref: fmt.Sprintf("v%d", i)}, ChangesDescription: "x", CreatedBy: f.user.ID}); err != nil {
			t.Fatalf("create version: %v", err)
		}
	}
	removed, err := f.store.DeleteDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(removed.FileRefs) != 4 {
		t.Fatalf("file refs = %v, want baseline + 3 versions", removed.FileRefs)
	}
	if _, err := f.store.GetDocument(ctx, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete err = %v", err)
	}
	if len(f.store.versions[doc.ID]) != 0 {
		t.Fatalf("versions survived document deletion")
	}
}

func TestSectionFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mk := func(name, status, region string) {
		if _, err := f.store.CreateSection(ctx, SectionInput{Name: name, Status: status, Region: region, LotID: &f.lot.ID}); err != nil {
			t.Fatalf("create section: %v", err)
		}
	}
	mk("RN7 PK10", StatusBon, "Analamanga")
	mk("RN7 PK20", StatusBon, "Analamanga")
	mk("RN2 PK5", StatusMauvais, "Analamanga")
	mk("RN4 PK1", StatusBon, "Boeny")

	get := func(vals map[string]string) func(string) string {
		return func(k string) string { return vals[k] }
	}
	page := query.NewPage(1, 100)

	res, err := f.store.ListSections(ctx, SectionFilterFromQuery(get(map[string]string{"status": "bon", "region": "Analamanga"}), page))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Pagination.Total != 2 || len(res.Sections) != 2 {
		t.Fatalf("bon/Analamanga = %+v", res.Pagination)
	}
	for _, s := range res.Sections {
		if s.Status != StatusBon || s.Region != "Analamanga" || s.Lot != "Lot 1" {
			t.Fatalf("unexpected row %+v", s)
		}
		if s.Inspections == nil {
			t.Fatalf("inspections must never be nil")
		}
	}

	res, _ = f.store.ListSections(ctx, SectionFilterFromQuery(get(map[string]string{"status": "tous", "region": "all"}), page))
	if res.Pagination.Total != 4 {
		t.Fatalf("placeholder filters total = %d, want 4", res.Pagination.Total)
	}

	res, _ = f.store.ListSections(ctx, SectionFilterFromQuery(get(map[string]string{"lot": "Lot 1", "status": "mauvais"}), page))
	if res.Pagination.Total != 1 || res.Sections[0].Name != "RN2 PK5" {
		t.Fatalf("lot+status = %+v", res.Sections)
	}
}

func TestSectionDateRangeUsesLastInspection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.store.CreateSection(ctx, SectionInput{Name: "A"})
	b, _ := f.store.CreateSection(ctx, SectionInput{Name: "B"})
	_, _ = f.store.CreateSection(ctx, SectionInput{Name: "never inspected"})
	march := NewDate(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	june := NewDate(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if _, err := f.store.AddInspection(ctx, a.ID, InspectionInput{Type: "routine", Date: march, Status: StatusBon}); err != nil {
		t.Fatalf("inspection: %v", err)
	}
	if _, err := f.store.AddInspection(ctx, b.ID, InspectionInput{Type: "routine", Date: june}); err != nil {
		t.Fatalf("inspection: %v", err)
	}
	filter := SectionFilter{StartDate: query.ParseDate("2024-03-01"), EndDate: query.ParseDate("2024-04-01"), Page: query.NewPage(1, 10)}
	res, err := f.store.ListSections(ctx, filter)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Pagination.Total != 1 || res.Sections[0].ID != a.ID {
		t.Fatalf("date range = %+v", res.Sections)
	}
	if res.Sections[0].Status != StatusBon || len(res.Sections[0].Inspections) != 1 {
		t.Fatalf("inspection did not update section: %+v", res.Sections[0])
	}

	filter.StartDate = query.ParseDate("not-a-date")
	filter.EndDate = time.Time{}
	res, _ = f.store.ListSections(ctx, filter)
	if res.Pagination.Total != 3 {
		t.Fatalf("malformed date must be ignored, total = %d", res.Pagination.Total)
	}
}

func TestSectionPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 1; i <= 25; i++ {
		if _, err := f.store.CreateSection(ctx, SectionInput{Name: fmt.Sprintf("S%02d", i)}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	res, err := f.store.ListSections(ctx, SectionFilter{Page: query.NewPage(2, 10)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := query.Pagination{Page: 2, Limit: 10, Total: 25, Pages: 3}
	if res.Pagination != want {
		t.Fatalf("pagination = %+v, want %+v", res.Pagination, want)
	}
	if len(res.Sections) != 10 || res.Sections[0].Name != "S11" || res.Sections[9].Name != "S20" {
		t.Fatalf("page 2 rows = %s..%s (%d)", res.Sections[0].Name, res.Sections[len(res.Sections)-1].Name, len(res.Sections))
	}
	res, _ = f.store.ListSections(ctx, SectionFilter{Page: query.NewPage(5, 10)})
	if len(res.Sections) != 0 || res.Pagination.Total != 25 {
		t.Fatalf("past the end = %d rows, total %d", len(res.Sections), res.Pagination.Total)
	}
}

func TestDeleteSectionDetachesDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sec, _ := f.store.CreateSection(ctx, SectionInput{Name: "RN7"})
	doc, err := f.store.CreateDocument(ctx, DocumentInput{Title: "plan", SectionID: &sec.ID, File: File{Ref: "r"}, CreatorID: f.user.ID})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	detail, _ := f.store.GetSection(ctx, sec.ID)
	if len(detail.Documents) != 1 {
		t.Fatalf("section documents = %+v", detail.Documents)
	}
	if _, err := f.store.DeleteSection(ctx, sec.ID); err != nil {
		t.Fatalf("delete section: %v", err)
	}
	got, err := f.store.GetDocument(ctx, doc.ID)
	if err != nil || got.SectionID != nil {
		t.Fatalf("document after section delete = %+v, %v", got.Document, err)
	}
}

func TestSectionViewsDoNotAliasStoredState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	length := 12.5
	sec, err := f.store.CreateSection(ctx, SectionInput{
		Name:        "RN2",
		LengthKM:    &length,
		Coordinates: &Point{Longitude: 47.5, Latitude: -18.9},
		CreatedBy:   f.user.ID,
	})
	if err != nil {
		t.Fatalf("create section: %v", err)
	}
	length = 99
	*sec.LengthKM = 77
	sec.Coordinates.Latitude = 0
	*sec.CreatedBy = 42

	detail, err := f.store.GetSection(ctx, sec.ID)
	if err != nil {
		t.Fatalf("get section: %v", err)
	}
	got := detail.Section
	if got.LengthKM == nil || *got.LengthKM != 12.5 {
		t.Fatalf("length changed through a returned pointer: %v", got.LengthKM)
	}
	if got.Coordinates == nil || got.Coordinates.Latitude != -18.9 {
		t.Fatalf("coordinates changed through a returned pointer: %+v", got.Coordinates)
	}
	if got.CreatedBy == nil || *got.CreatedBy != f.user.ID {
		t.Fatalf("creator changed through a returned pointer: %v", got.CreatedBy)
	}
}

func TestMapStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	f.store.WithClock(func() time.Time { return now })
	l5, l10 := 5.0, 10.0
	p50 := 50.0
	a, _ := f.store.CreateSection(ctx, SectionInput{Name: "a", Status: StatusBon, Region: "Analamanga", LotID: &f.lot.ID, LengthKM: &l5, Progress: &p50})
	_, _ = f.store.CreateSection(ctx, SectionInput{Name: "b", Status: StatusCritique, Region: "Boeny", LengthKM: &l10})
	_, _ = f.store.AddInspection(ctx, a.ID, InspectionInput{Type: "routine", Date: NewDate(now.AddDate(0, 0, -3))})

	st, err := f.store.MapStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	ov := st.Overview
	if ov.TotalSections != 2 || ov.TotalLength != 15 || ov.GoodCondition != 1 || ov.CriticalCondition != 1 {
		t.Fatalf("overview = %+v", ov)
	}
	if ov.RecentlyInspected != 1 || ov.AverageProgress != 25 {
		t.Fatalf("overview = %+v", ov)
	}
	if len(st.Regions) != 2 || len(st.Lots) != 1 || st.Lots[0].LotName != "Lot 1" || st.Lots[0].AvgProgress != 50 {
		t.Fatalf("aggregates = %+v %+v", st.Regions, st.Lots)
	}
}

func TestMinutesUpsertAndCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, err := f.store.CreateMeeting(ctx, MeetingInput{LotID: f.lot.ID, Title: "Chantier", Date: NewDate(time.Now()), Time: "09:30", CreatedBy: f.user.ID})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	if m.HasMinutes || m.InvitationsSent {
		t.Fatalf("fresh meeting flags = %+v", m)
	}
	if _, err := f.store.GetMinutes(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing PV err = %v", err)
	}
	_, created, err := f.store.SaveMinutes(ctx, m.ID, MinutesInput{Content: "v1", Author: f.user.ID})
	if err != nil || !created {
		t.Fatalf("first save created=%v err=%v", created, err)
	}
	pv, created, err := f.store.SaveMinutes(ctx, m.ID, MinutesInput{Content: "v2", Author: f.user.ID})
	if err != nil || created || pv.Content != "v2" {
		t.Fatalf("second save = %+v created=%v err=%v", pv, created, err)
	}
	if _, _, err := f.store.SaveMinutes(ctx, m.ID, MinutesInput{Author: f.user.ID}); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty content err = %v", err)
	}
	got, _ := f.store.GetMeeting(ctx, m.ID)
	if !got.HasMinutes {
		t.Fatalf("has_minutes not set")
	}
	for i := 0; i < 2; i++ {
		got, err = f.store.SendInvitations(ctx, m.ID)
		if err != nil || !got.InvitationsSent {
			t.Fatalf("send invitations #%d = %+v, %v", i, got, err)
		}
	}
	if _, err := f.store.SendInvitations(ctx, 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown meeting err = %v", err)
	}
	if _, err := f.store.DeleteMeeting(ctx, m.ID); err != nil {
		t.Fatalf("delete meeting: %v", err)
	}
	if len(f.store.minutes) != 0 {
		t.Fatalf("minutes survived meeting deletion")
	}
}

func TestUpcomingMeetingsAndParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	f.store.WithClock(func() time.Time { return now })
	mk := func(days int, people ...string) {
		_, err := f.store.CreateMeeting(ctx, MeetingInput{LotID: f.lot.ID, Title: "m", Date: NewDate(now.AddDate(0, 0, days)), Participants: people, CreatedBy: f.user.ID})
		if err != nil {
			t.Fatalf("create meeting: %v", err)
		}
	}
	mk(-7, "Hery", "Soa")
	mk(0, "Hery")
	mk(3, "Hery", "Naina", "Hery")

	all, _ := f.store.ListMeetings(ctx, f.lot.ID, false)
	upcoming, _ := f.store.ListMeetings(ctx, f.lot.ID, true)
	if len(all) != 3 || len(upcoming) != 2 {
		t.Fatalf("all=%d upcoming=%d", len(all), len(upcoming))
	}
	ranked, err := f.store.UsualParticipants(ctx, f.lot.ID)
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(ranked) != 3 || ranked[0] != (ParticipantCount{Name: "Hery", Meetings: 3}) {
		t.Fatalf("ranked = %+v", ranked)
	}
}

func TestNotificationReadIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, err := f.store.CreateNotification(ctx, NotificationInput{LotID: f.lot.ID, UserID: f.user.ID, Message: "inspection due"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n.Read || n.Type != "info" || n.Urgency != UrgencyNormal {
		t.Fatalf("defaults = %+v", n)
	}
	for i := 0; i < 2; i++ {
		got, err := f.store.MarkNotificationRead(ctx, n.ID)
		if err != nil || !got.Read {
			t.Fatalf("mark read #%d = %+v, %v", i, got, err)
		}
	}
	unread, _ := f.store.ListNotifications(ctx, f.lot.ID, f.user.ID, true)
	if len(unread) != 0 {
		t.Fatalf("unread = %+v", unread)
	}
	if _, err := f.store.MarkNotificationRead(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown notification err = %v", err)
	}
}

func TestFanOutToStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var ids []int64
	for _, name := range []string{"a", "b", "c"} {
		u, err := f.store.CreateUser(ctx, NewUser{Username: name, Email: name + "@example.mg", Role: "user"})
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		ids = append(ids, u.ID)
	}
	res, err := FanOut(ctx, f.store, MessageInput{LotID: f.lot.ID, SenderID: f.user.ID, RecipientIDs: ids, Subject: "RN7", Content: "Point d'avancement"})
	if err != nil {
		t.Fatalf("fan out: %v", err)
	}
	if len(res.Messages) != 3 || len(res.Failed) != 0 {
		t.Fatalf("result = %+v", res)
	}
	seen := map[int64]bool{}
	for _, m := range res.Messages {
		if m.Content != "Point d'avancement" || m.SenderID != f.user.ID || m.Urgency != UrgencyNormal {
			t.Fatalf("message = %+v", m)
		}
		seen[m.RecipientID] = true
	}
	if len(seen) != 3 {
		t.Fatalf("recipients = %v", seen)
	}
	inbox, _ := f.store.ListMessages(ctx, f.lot.ID, ids[1])
	if len(inbox) != 1 {
		t.Fatalf("inbox = %+v", inbox)
	}
	sent, _ := f.store.ListMessages(ctx, f.lot.ID, f.user.ID)
	if len(sent) != 3 {
		t.Fatalf("sender view = %d messages", len(sent))
	}
}

func TestDeleteTypeInUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	typ, err := f.store.CreateType(ctx, TypeInput{Name: "Rapport"})
	if err != nil {
		t.Fatalf("create type: %v", err)
	}
	if _, err := f.store.CreateType(ctx, TypeInput{Name: "rapport"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate type err = %v", err)
	}
	if _, err := f.store.CreateDocument(ctx, DocumentInput{Title: "d", TypeID: &typ.ID, File: File{Ref: "r"}, CreatorID: f.user.ID}); err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := f.store.DeleteType(ctx, typ.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("delete in-use type err = %v", err)
	}
}

func TestUserUniquenessAndDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.store.CreateUser(ctx, NewUser{Username: "rado", Email: "other@example.mg"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate username err = %v", err)
	}
	if _, err := f.store.CreateUser(ctx, NewUser{Username: "other", Email: "RADO@example.mg"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate email err = %v", err)
	}
	if got, err := f.store.FindUserByLogin(ctx, "rado@example.mg"); err != nil || got.ID != f.user.ID {
		t.Fatalf("login by email = %+v, %v", got, err)
	}
	uid := f.user.ID
	for i := 0; i < 12; i++ {
		if err := f.store.RecordAction(ctx, UserAction{UserID: &uid, ActionType: "login"}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	recent, _ := f.store.RecentActions(ctx, 10)
	if len(recent) != 10 || recent[0].Username != "rado" || recent[0].ID != 12 {
		t.Fatalf("recent = %+v", recent)
	}
	st, _ := f.store.DashboardStats(ctx)
	want := DashboardStats{TotalUsers: 1, ActiveUsers: 1, TotalLots: 1, RecentActions: 12}
	if st != want {
		t.Fatalf("stats = %+v, want %+v", st, want)
	}
}

package query

import (
	"math"
	"net/url"
	"reflect"
	"testing"
	"time"
)

func TestWhereEmptyWhenNoFilters(t *testing.T) {
	var b Builder
	b.Eq("sr.status", "").Eq("l.name", "tous").Eq("sr.region", "  ").Gte("sr.last_inspection", time.Time{})
	clause, args := b.Where(0)
	if clause != "" || args != nil {
		t.Fatalf("expected empty clause, got %q %v", clause, args)
	}
}

func TestWhereNumbersPlaceholdersAfterOffset(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var b Builder
	b.Eq("sr.status", "bon").
		Eq("sr.region", "Analamanga").
		Gte("sr.last_inspection", from).
		Contains("d.title", "50%_off")

	clause, args := b.Where(1)
	want := "where sr.status = $2 and sr.region = $3 and sr.last_inspection >= $4 and d.title ilike $5"
	if clause != want {
		t.Fatalf("clause=%q\nwant   %q", clause, want)
	}
	wantArgs := []any{"bon", "Analamanga", from, `%50\%\_off%`}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Fatalf("args=%v want %v", args, wantArgs)
	}
}

func TestValuesNeverInterpolated(t *testing.T) {
	var b Builder
	b.Eq("sr.name", "x'; drop table road_sections; --")
	clause, args := b.Where(0)
	if clause != "where sr.name = $1" {
		t.Fatalf("unexpected clause %q", clause)
	}
	if len(args) != 1 {
		t.Fatalf("expected 1 arg, got %d", len(args))
	}
}

func TestParsePage(t *testing.T) {
	cases := []struct {
		query string
		want  Page
	}{
		{"", Page{Page: 1, Limit: 100}},
		{"page=2&limit=10", Page{Page: 2, Limit: 10}},
		{"page=abc&limit=xyz", Page{Page: 1, Limit: 100}},
		{"page=-3&limit=0", Page{Page: 1, Limit: 100}},
		{"limit=5000", Page{Page: 1, Limit: MaxLimit}},
		{"page=9223372036854775807&limit=10", Page{Page: 1, Limit: 10}},
	}
	for _, tc := range cases {
		v, _ := url.ParseQuery(tc.query)
		if got := ParsePage(v); got != tc.want {
			t.Fatalf("ParsePage(%q)=%+v want %+v", tc.query, got, tc.want)
		}
	}
}

func TestPagesIsCeil(t *testing.T) {
	for limit := 1; limit <= 12; limit++ {
		for total := 0; total <= 60; total++ {
			want := 0
			for covered := 0; covered < total; covered += limit {
				want++
			}
			if got := Pages(total, limit); got != want {
				t.Fatalf("Pages(%d,%d)=%d want %d", total, limit, got, want)
			}
		}
	}
}

func TestSecondPageWindow(t *testing.T) {
	p := NewPage(2, 10)
	if p.Offset() != 10 {
		t.Fatalf("offset=%d", p.Offset())
	}
	start, end := p.Window(25)
	if start != 10 || end != 20 {
		t.Fatalf("window=[%d,%d)", start, end)
	}
	res := p.Result(25)
	if res.Total != 25 || res.Pages != 3 {
		t.Fatalf("unexpected pagination %+v", res)
	}
	start, end = NewPage(9, 10).Window(25)
	if start != 25 || end != 25 {
		t.Fatalf("out of range window=[%d,%d)", start, end)
	}
}

func TestHugePageKeepsOffsetInRange(t *testing.T) {
	p := Page{Page: math.MaxInt, Limit: 10}
	if p.Offset() != 0 {
		t.Fatalf("offset=%d", p.Offset())
	}
	start, end := p.Window(25)
	if start < 0 || end < start || end > 25 {
		t.Fatalf("window=[%d,%d)", start, end)
	}
	if got := NewPage(math.MaxInt/10+2, 10); got.Offset() < 0 {
		t.Fatalf("NewPage offset=%d", got.Offset())
	}
}

func TestMatchAgreesWithPredicates(t *testing.T) {
	inspected := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	row := map[string]any{
		"sr.status":          "bon",
		"sr.region":          "Analamanga",
		"sr.last_inspection": inspected,
		"sr.lot_id":          int64(4),
	}
	lookup := func(f string) (any, bool) { v, ok := row[f]; return v, ok }

	var hit Builder
	hit.Eq("sr.status", "bon").Eq("sr.region", "Analamanga").
		Gte("sr.last_inspection", ParseDate("2024-03-01")).
		Lte("sr.last_inspection", ParseDate("2024-03-10")).
		EqInt("sr.lot_id", 4, true)
	if !Match(hit.Predicates(), lookup) {
		t.Fatal("expected row to match")
	}

	var miss Builder
	miss.Eq("sr.status", "mauvais")
	if Match(miss.Predicates(), lookup) {
		t.Fatal("expected mismatch on status")
	}

	var nullField Builder
	nullField.Eq("l.name", "Lot 1")
	if Match(nullField.Predicates(), lookup) {
		t.Fatal("unknown field must not match")
	}
}

func TestParseDateIgnoresGarbage(t *testing.T) {
	if !ParseDate("not-a-date").IsZero() {
		t.Fatal("expected zero time")
	}
	if got := ParseDate("2024-05-06"); got.Year() != 2024 || got.Month() != time.May || got.Day() != 6 {
		t.Fatalf("unexpected date %v", got)
	}
}

package query

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/store"
)

type fixture struct {
	svc    *journal.Service
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	svc, err := journal.NewService(st, 0)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{svc: svc, engine: NewEngine(st)}
}

func (f *fixture) add(t *testing.T, body string, created time.Time, tags ...string) int64 {
	t.Helper()
	id, err := f.svc.Create(context.Background(), journal.Draft{Body: body, Created: created, Tags: tags})
	if err != nil {
		t.Fatalf("Create(%q): %v", body, err)
	}
	return id
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.Local)
}

func TestBodySubstringCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, "alpha", at(2024, 1, 1, 10, 0))
	beta := f.add(t, "beta", at(2024, 1, 1, 10, 5))
	f.add(t, "gamma", at(2024, 1, 1, 10, 10))

	got, err := f.engine.Run(ctx, Body{Query: "TA"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []int64{beta}; !reflect.DeepEqual(got, want) {
		t.Errorf("result = %v, want %v", got, want)
	}
}

func TestBodyEmptyQueryMatchesEmptyBodies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	blank := f.add(t, "", at(2024, 1, 1, 0, 0))
	f.add(t, "text", at(2024, 1, 2, 0, 0))

	got, err := f.engine.Run(ctx, Body{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []int64{blank}; !reflect.DeepEqual(got, want) {
		t.Errorf("result = %v, want %v", got, want)
	}
}

func TestTagModes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.add(t, "a", at(2024, 1, 1, 0, 0), "red", "blue")
	b := f.add(t, "b", at(2024, 1, 2, 0, 0), "red")
	c := f.add(t, "c", at(2024, 1, 3, 0, 0))

	tests := []struct {
		name string
		pred Tags
		want []int64
	}{
		{"any_of red", Tags{Mode: AnyOf, Labels: []string{"red"}}, []int64{a, b}},
		{"at_least red+blue", Tags{Mode: AtLeast, Labels: []string{"red", "blue"}}, []int64{a}},
		{"only red", Tags{Mode: Only, Labels: []string{"red"}}, []int64{b}},
		{"untagged", Tags{Mode: Untagged}, []int64{c}},
		{"sentinel forces untagged", Tags{Mode: AnyOf, Labels: []string{UntaggedLabel}}, []int64{c}},
		{"case sensitive", Tags{Mode: AnyOf, Labels: []string{"Red"}}, []int64{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.engine.Run(ctx, tc.pred)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("result = %v, want %v", got, tc.want)
			}
		})
	}
}

// Only(T) must equal AtLeast(T) restricted to entries with |tags| = |T|.
func TestOnlyEquivalence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, "rb", at(2024, 1, 1, 0, 0), "red", "blue")
	f.add(t, "r", at(2024, 1, 2, 0, 0), "red")
	f.add(t, "rbg", at(2024, 1, 3, 0, 0), "red", "blue", "green")
	f.add(t, "g", at(2024, 1, 4, 0, 0), "green")

	labels := []string{"red", "blue"}
	only, err := f.engine.Run(ctx, Tags{Mode: Only, Labels: labels})
	if err != nil {
		t.Fatal(err)
	}
	atLeast, err := f.engine.Run(ctx, Tags{Mode: AtLeast, Labels: labels})
	if err != nil {
		t.Fatal(err)
	}

	var filtered []int64
	for _, id := range atLeast {
		e, err := f.svc.Get(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if len(e.Tags) == len(labels) {
			filtered = append(filtered, id)
		}
	}
	if !reflect.DeepEqual(only, filtered) {
		t.Errorf("Only = %v, AtLeast∩size = %v", only, filtered)
	}
}

func TestDateContinuous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := f.add(t, "in", at(2023, 6, 15, 14, 30))
	f.add(t, "before", at(2022, 12, 31, 23, 59))
	f.add(t, "after", at(2024, 1, 1, 0, 0))

	got, err := f.engine.Run(ctx, Date{
		Mode: Continuous,
		Lo:   at(2023, 1, 1, 0, 0),
		Hi:   at(2023, 12, 31, 23, 59),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []int64{in}; !reflect.DeepEqual(got, want) {
		t.Errorf("result = %v, want %v", got, want)
	}
}

func TestDateContinuousInclusiveEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lo := f.add(t, "lo", at(2023, 1, 1, 0, 0))
	hi := f.add(t, "hi", at(2023, 12, 31, 23, 59))

	got, err := f.engine.Run(ctx, Date{
		Mode: Continuous,
		Lo:   at(2023, 1, 1, 0, 0),
		Hi:   at(2023, 12, 31, 23, 59),
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := []int64{lo, hi}; !reflect.DeepEqual(got, want) {
		t.Errorf("result = %v, want %v", got, want)
	}
}

func TestDateIntervals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	june := f.add(t, "june", at(2023, 6, 15, 14, 30))
	aug := f.add(t, "aug", at(2023, 8, 1, 9, 0))

	got, err := f.engine.Run(ctx, Date{Mode: Intervals, Month: &Span{7, 12}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []int64{aug}; !reflect.DeepEqual(got, want) {
		t.Errorf("month [7,12] = %v, want %v", got, want)
	}

	// 2023-06-15 is a Thursday (weekday 3 with Monday origin).
	got, err = f.engine.Run(ctx, Date{Mode: Intervals, Weekday: &Span{3, 3}})
	if err != nil {
		t.Fatal(err)
	}
	if want := []int64{june}; !reflect.DeepEqual(got, want) {
		t.Errorf("weekday [3,3] = %v, want %v", got, want)
	}

	// Omitted fields leave everything in.
	got, err = f.engine.Run(ctx, Date{Mode: Intervals})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("open intervals matched %v", got)
	}
}

func TestDateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Run(ctx, Date{Mode: Intervals, Month: &Span{0, 13}})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("month [0,13] err = %v, want ErrInvalidArgument", err)
	}
	_, err = f.engine.Run(ctx, Date{Mode: Intervals, Hour: &Span{5, 2}})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("hour [5,2] err = %v, want ErrInvalidArgument", err)
	}
	_, err = f.engine.Run(ctx, Date{Mode: Continuous, Lo: at(2024, 1, 1, 0, 0), Hi: at(2023, 1, 1, 0, 0)})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("reversed endpoints err = %v, want ErrInvalidArgument", err)
	}
}

func TestEndpointClampsDay(t *testing.T) {
	got := Endpoint(2023, time.February, 31, 0, 0)
	if got.Day() != 28 || got.Month() != time.February {
		t.Errorf("Endpoint = %v, want clamped to Feb 28", got)
	}
}

func TestRelationAndAttachmentPredicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	plain := f.add(t, "plain", at(2024, 1, 1, 0, 0))
	parent := f.add(t, "parent", at(2024, 1, 2, 0, 0))
	child := f.add(t, "child", at(2024, 1, 3, 0, 0))
	if err := f.svc.Link(ctx, child, parent); err != nil {
		t.Fatal(err)
	}
	withAtt, err := f.svc.Create(ctx, journal.Draft{
		Body:        "att",
		Created:     at(2024, 1, 4, 0, 0),
		Attachments: []journal.Source{journal.BytesSource{Filename: "x", Data: []byte("x")}},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		pred Predicate
		want []int64
	}{
		{"has attachments", HasAttachments{}, []int64{withAtt}},
		{"has parent", HasParent{}, []int64{child}},
		{"has children", HasChildren{}, []int64{parent}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.engine.Run(ctx, tc.pred)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("result = %v, want %v", got, tc.want)
			}
		})
	}
	_ = plain
}

func TestNoPredicatesReturnsAllOrdered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Insert out of chronological order.
	late := f.add(t, "late", at(2024, 6, 1, 0, 0))
	early := f.add(t, "early", at(2024, 1, 1, 0, 0))
	mid := f.add(t, "mid", at(2024, 3, 1, 0, 0))

	got, err := f.engine.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []int64{early, mid, late}; !reflect.DeepEqual(got, want) {
		t.Errorf("result = %v, want %v", got, want)
	}
}

func TestOrderingTieBreakOnID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	same := at(2024, 1, 1, 12, 0)
	first := f.add(t, "first", same)
	second := f.add(t, "second", same)

	got, err := f.engine.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int64{first, second}; !reflect.DeepEqual(got, want) {
		t.Errorf("result = %v, want %v", got, want)
	}
}

// Adding a predicate can only shrink the result; removing one can only grow it.
func TestPredicateMonotonicity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, "walk in the park", at(2024, 1, 1, 0, 0), "outdoors")
	f.add(t, "park maintenance", at(2024, 2, 1, 0, 0))
	f.add(t, "dinner", at(2024, 3, 1, 0, 0), "food")

	base, err := f.engine.Run(ctx, Body{Query: "park"})
	if err != nil {
		t.Fatal(err)
	}
	narrowed, err := f.engine.Run(ctx, Body{Query: "park"}, Tags{Mode: AnyOf, Labels: []string{"outdoors"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(narrowed) > len(base) {
		t.Fatalf("narrowed %v larger than base %v", narrowed, base)
	}
	baseSet := map[int64]bool{}
	for _, id := range base {
		baseSet[id] = true
	}
	for _, id := range narrowed {
		if !baseSet[id] {
			t.Errorf("id %d in narrowed result but not in base", id)
		}
	}
}

func TestAggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, "a", at(2021, 5, 1, 8, 0), "zebra", "apple")
	f.add(t, "b", at(2023, 7, 2, 9, 30), "apple", "mango")

	tags, err := f.engine.AllTags(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"apple", "mango", "zebra"}; !reflect.DeepEqual(tags, want) {
		t.Errorf("AllTags = %v, want %v", tags, want)
	}

	dates, err := f.engine.AllDates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(dates) != 2 || !dates[0].Before(dates[1]) {
		t.Errorf("AllDates = %v", dates)
	}

	lo, hi, ok, err := f.engine.YearRange(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || lo != 2021 || hi != 2023 {
		t.Errorf("YearRange = (%d, %d, %v)", lo, hi, ok)
	}

	n, err := f.engine.EntryCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("EntryCount = %d", n)
	}

	inRange, err := f.engine.TagsInDateRange(ctx, Date{
		Mode: Continuous,
		Lo:   at(2023, 1, 1, 0, 0),
		Hi:   at(2023, 12, 31, 23, 59),
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"apple", "mango"}; !reflect.DeepEqual(inRange, want) {
		t.Errorf("TagsInDateRange = %v, want %v", inRange, want)
	}
}

func TestAggregatesOnEmptyStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, _, ok, err := f.engine.YearRange(ctx); err != nil || ok {
		t.Errorf("YearRange on empty store = ok=%v err=%v", ok, err)
	}
	n, err := f.engine.EntryCount(ctx)
	if err != nil || n != 0 {
		t.Errorf("EntryCount = (%d, %v)", n, err)
	}
	ids, err := f.engine.Run(ctx)
	if err != nil || len(ids) != 0 {
		t.Errorf("Run on empty store = (%v, %v)", ids, err)
	}
}

func TestModeParsing(t *testing.T) {
	for _, name := range []string{"any_of", "at_least", "only", "untagged"} {
		m, err := ParseTagMode(name)
		if err != nil {
			t.Errorf("ParseTagMode(%q): %v", name, err)
		}
		if m.String() != name {
			t.Errorf("round trip %q -> %q", name, m.String())
		}
	}
	if _, err := ParseTagMode("bogus"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("bogus tag mode err = %v", err)
	}
	for _, name := range []string{"continuous", "intervals"} {
		m, err := ParseDateMode(name)
		if err != nil {
			t.Errorf("ParseDateMode(%q): %v", name, err)
		}
		if m.String() != name {
			t.Errorf("round trip %q -> %q", name, m.String())
		}
	}
	if _, err := ParseDateMode("bogus"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("bogus date mode err = %v", err)
	}
}

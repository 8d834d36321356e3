package election

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/powerbackus/powerback-sub000/internal/domain"
)

type fakeClient struct {
	dates Dates
	err   error
	calls int
}

func (f *fakeClient) FetchElectionDates(ctx context.Context, jurisdiction string, year int) (Dates, error) {
	f.calls++
	if f.err != nil {
		return Dates{}, f.err
	}
	return f.dates, nil
}

var ncDates = Dates{
	Primary: time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC),
	General: time.Date(2026, time.November, 3, 0, 0, 0, 0, time.UTC),
}

func TestResolveUsesLiveSourceAndCachesIt(t *testing.T) {
	client := &fakeClient{dates: ncDates}
	r := NewResolver(client, zerolog.Nop(), time.Second)
	asOf := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	b, err := r.ResolveResetBoundary(context.Background(), "NC", asOf)
	if err != nil {
		t.Fatalf("ResolveResetBoundary: %v", err)
	}
	if b.Source != SourceLive {
		t.Fatalf("source = %s, want live", b.Source)
	}
	if !b.Primary.Equal(ncDates.Primary) || !b.General.Equal(ncDates.General) {
		t.Fatalf("unexpected dates: %+v", b)
	}
	if b.CycleYear != 2026 {
		t.Fatalf("cycle year = %d, want 2026", b.CycleYear)
	}

	// Source starts failing; the cached snapshot must answer and say so.
	client.err = ErrUnavailable
	b, err = r.ResolveResetBoundary(context.Background(), "NC", asOf)
	if err != nil {
		t.Fatalf("ResolveResetBoundary after source failure: %v", err)
	}
	if b.Source != SourceCache {
		t.Fatalf("source = %s, want cache", b.Source)
	}
	if !b.Primary.Equal(ncDates.Primary) {
		t.Fatalf("cache returned different dates: %+v", b)
	}
}

func TestResolveFallsBackToDefaultTable(t *testing.T) {
	r := NewResolver(&fakeClient{err: ErrUnavailable}, zerolog.Nop(), time.Second)
	asOf := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	b, err := r.ResolveResetBoundary(context.Background(), "NC", asOf)
	if err != nil {
		t.Fatalf("ResolveResetBoundary: %v", err)
	}
	if b.Source != SourceDefault {
		t.Fatalf("source = %s, want default", b.Source)
	}
	if b.Primary.Month() != time.March || b.Primary.Day() != 5 {
		t.Fatalf("default NC primary = %v", b.Primary)
	}
}

func TestResolveFailsClosedWithoutAnyTier(t *testing.T) {
	r := NewResolver(&fakeClient{err: ErrUnavailable}, zerolog.Nop(), time.Second)
	asOf := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	_, err := r.ResolveResetBoundary(context.Background(), "ZZ", asOf)
	if !errors.Is(err, domain.ErrLimitUndetermined) {
		t.Fatalf("error = %v, want ErrLimitUndetermined", err)
	}
}

func TestResolveHonorsLiveTimeout(t *testing.T) {
	slow := &slowClient{delay: 200 * time.Millisecond, dates: ncDates}
	r := NewResolver(slow, zerolog.Nop(), 10*time.Millisecond)
	r.Seed("NC", 2026, ncDates)
	asOf := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	start := time.Now()
	b, err := r.ResolveResetBoundary(context.Background(), "NC", asOf)
	if err != nil {
		t.Fatalf("ResolveResetBoundary: %v", err)
	}
	if b.Source != SourceCache {
		t.Fatalf("source = %s, want cache after timeout", b.Source)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Fatalf("lookup blocked for %v; timeout not enforced", elapsed)
	}
}

type slowClient struct {
	delay time.Duration
	dates Dates
}

func (s *slowClient) FetchElectionDates(ctx context.Context, jurisdiction string, year int) (Dates, error) {
	select {
	case <-time.After(s.delay):
		return s.dates, nil
	case <-ctx.Done():
		return Dates{}, ctx.Err()
	}
}

func TestCycleYearForRoundsUpToEven(t *testing.T) {
	if got := CycleYearFor(time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)); got != 2026 {
		t.Fatalf("CycleYearFor(2025) = %d, want 2026", got)
	}
	if got := CycleYearFor(time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC)); got != 2026 {
		t.Fatalf("CycleYearFor(2026) = %d, want 2026", got)
	}
}

func TestWindowIndexPartitionsCycle(t *testing.T) {
	b := Boundary{Primary: ncDates.Primary, General: ncDates.General}

	feb := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	apr := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	dec := time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC)

	if b.WindowIndex(feb) != 0 {
		t.Fatalf("pre-primary window index = %d, want 0", b.WindowIndex(feb))
	}
	if b.WindowIndex(apr) != 1 {
		t.Fatalf("post-primary window index = %d, want 1", b.WindowIndex(apr))
	}
	if b.WindowIndex(dec) != 2 {
		t.Fatalf("post-general window index = %d, want 2", b.WindowIndex(dec))
	}
	if b.SameWindow(feb, apr) {
		t.Fatalf("contributions straddling the primary must not share a window")
	}
	// The primary date itself closes the first window.
	if b.WindowIndex(ncDates.Primary) != 0 {
		t.Fatalf("primary day belongs to the pre-primary window")
	}
}

func TestYearWindowUsesFixedOffsetNotProcessLocale(t *testing.T) {
	zone := ReferenceZone(-5)

	// 03:00 UTC on Jan 1 is still Dec 31 at UTC-5, so it belongs to the
	// prior calendar-year window regardless of the process's local zone.
	asOf := time.Date(2026, time.January, 1, 3, 0, 0, 0, time.UTC)
	start, end := YearWindow(asOf, zone)

	if start.Year() != 2025 {
		t.Fatalf("window start year = %d, want 2025", start.Year())
	}
	if !asOf.Before(end) || asOf.Before(start) {
		t.Fatalf("asOf %v outside window [%v, %v)", asOf, start, end)
	}

	// Five hours later it has crossed the reference-zone midnight.
	later := time.Date(2026, time.January, 1, 8, 0, 0, 0, time.UTC)
	start2, _ := YearWindow(later, zone)
	if start2.Year() != 2026 {
		t.Fatalf("window start year = %d, want 2026", start2.Year())
	}
}

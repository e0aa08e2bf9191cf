package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/harborline/gatehouse/internal/audit"
)

type stubRepo struct {
	entries    []audit.Entry
	gotFilters audit.TimelineFilters
	gotLimit   int
	gotOffset  int
}

func (s *stubRepo) Timeline(_ context.Context, filters audit.TimelineFilters, limit, offset int) ([]audit.Entry, error) {
	s.gotFilters = filters
	s.gotLimit = limit
	s.gotOffset = offset
	if offset >= len(s.entries) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.entries) {
		end = len(s.entries)
	}
	return s.entries[offset:end], nil
}

func (s *stubRepo) Purge(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func makeEntries(n int) []audit.Entry {
	entries := make([]audit.Entry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, audit.NewEntry(audit.Params{
			UserID:       "user-1",
			Action:       audit.ActionProductUpdate,
			ResourceType: "product",
			Success:      true,
		}))
	}
	return entries
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubRepo{entries: makeEntries(25)}
	svc := audit.NewService(repo)

	res, err := svc.Timeline(context.Background(), audit.TimelineFilters{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(res.Entries) != 10 {
		t.Fatalf("expected a full page, got %d", len(res.Entries))
	}
	if !res.Paging.HasNext || res.Paging.NextPage != 2 {
		t.Fatalf("expected next page, got %+v", res.Paging)
	}
	if repo.gotLimit != 11 {
		t.Fatalf("expected limit+1 probe, got %d", repo.gotLimit)
	}

	res, err = svc.Timeline(context.Background(), audit.TimelineFilters{Page: 3, PageSize: 10})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(res.Entries) != 5 {
		t.Fatalf("expected 5 on last page, got %d", len(res.Entries))
	}
	if res.Paging.HasNext {
		t.Fatal("last page must not advertise a next page")
	}
	if res.Paging.PrevPage != 2 {
		t.Fatalf("expected prev page 2, got %d", res.Paging.PrevPage)
	}
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{entries: makeEntries(5)}
	svc := audit.NewService(repo)

	if _, err := svc.Timeline(context.Background(), audit.TimelineFilters{PageSize: 500}); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.gotLimit != 51 {
		t.Fatalf("page size must clamp to 50, probe limit=%d", repo.gotLimit)
	}

	if _, err := svc.Timeline(context.Background(), audit.TimelineFilters{Page: -2}); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.gotOffset != 0 {
		t.Fatalf("negative page must clamp to 1, offset=%d", repo.gotOffset)
	}
}

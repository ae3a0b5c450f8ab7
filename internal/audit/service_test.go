package audit

import (
	"context"
	"strings"
	"testing"
	"time"
)

type stubTimelineRepo struct {
	rows       []TimelineRow
	lastOffset int
	lastLimit  int
}

func (s *stubTimelineRepo) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.lastOffset, s.lastLimit = offset, limit
	if limit > 0 && len(s.rows) > limit {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

func row(at, action, entityID string) TimelineRow {
	ts, _ := time.Parse(time.RFC3339, at)
	return TimelineRow{At: ts, Actor: "7d1f7a8e-3b59-4d0e-9d52-0d6f2f1f6a10", Action: action, Entity: "product", EntityID: entityID, Meta: `{}`}
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: []TimelineRow{
		row("2024-03-10T10:00:00Z", "product.update", "p1"),
		row("2024-03-09T09:00:00Z", "product.create", "p1"),
		row("2024-03-08T08:00:00Z", "product.create", "p2"),
	}}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if !result.Paging.HasNext || result.Paging.NextPage != 2 {
		t.Fatalf("expected a next page, got %+v", result.Paging)
	}
	if repo.lastLimit != 3 || repo.lastOffset != 0 {
		t.Fatalf("expected offset 0 limit 3, got %d %d", repo.lastOffset, repo.lastLimit)
	}
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	result, err := NewService(repo).Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 500})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if result.Paging.PageSize != maxPageSize || repo.lastOffset != 2*maxPageSize {
		t.Fatalf("unexpected paging %+v offset %d", result.Paging, repo.lastOffset)
	}
	if result.Rows == nil || result.Paging.PrevPage != 2 {
		t.Fatalf("expected empty rows and prev page 2, got %+v", result)
	}
}

func TestServiceExportReturnsAllRows(t *testing.T) {
	repo := &stubTimelineRepo{rows: []TimelineRow{
		row("2024-03-10T10:00:00Z", "profile.update", "u1"),
		row("2024-03-09T09:00:00Z", "product.create", "p1"),
	}}
	rows, err := NewService(repo).Export(context.Background(), TimelineFilters{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(rows) != 2 || repo.lastLimit != 0 {
		t.Fatalf("expected 2 unlimited rows, got %d (limit %d)", len(rows), repo.lastLimit)
	}
}

func TestWriteCSV(t *testing.T) {
	out, err := WriteCSV([]TimelineRow{row("2024-03-10T10:00:00Z", "product.create", "p1")})
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", out)
	}
	if lines[0] != "at,actor,action,entity,entity_id,meta" {
		t.Fatalf("unexpected header %q", lines[0])
	}
}

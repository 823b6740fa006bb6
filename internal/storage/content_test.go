package storage

import (
	"context"
	"testing"
	"time"
)

func TestNormalizeSlug(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"  My First Post  ", "my-first-post"},
		{"Go 1.22 发布", "go-122-"},
		{"already-clean", "already-clean"},
		{"!!!", ""},
	}
	for _, c := range cases {
		if got := NormalizeSlug(c.in); got != c.want {
			t.Errorf("NormalizeSlug(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestReplaceScheduleFillsDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	explicit := int64(5)
	inputs := []ScheduleItemInput{
		{Title: "写代码", Time: "09:00"},
		{ID: "fixed", Title: "开会", Time: "14:00", SortOrder: &explicit},
	}
	if err := store.ReplaceSchedule(ctx, inputs, now); err != nil {
		t.Fatalf("ReplaceSchedule: %v", err)
	}

	items, err := store.ScheduleItems(ctx)
	if err != nil {
		t.Fatalf("ScheduleItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Title != "写代码" || items[0].SortOrder != 0 || items[0].ID == "" {
		t.Fatalf("unexpected first item %+v", items[0])
	}
	if items[1].ID != "fixed" || items[1].SortOrder != 5 {
		t.Fatalf("unexpected second item %+v", items[1])
	}

	// A second replace drops the old rows.
	if err := store.ReplaceSchedule(ctx, inputs[:1], now.Add(time.Second)); err != nil {
		t.Fatalf("ReplaceSchedule again: %v", err)
	}
	items, err = store.ScheduleItems(ctx)
	if err != nil {
		t.Fatalf("ScheduleItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("replace must swap the whole set, got %d items", len(items))
	}
}

func TestReplaceBlogAndLookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	inputs := []BlogPostInput{
		{
			Slug:    "My First Post",
			Title:   "第一篇",
			Date:    "2026-08-01",
			Content: []string{"第一段", "第二段"},
		},
	}
	if err := store.ReplaceBlog(ctx, inputs, now); err != nil {
		t.Fatalf("ReplaceBlog: %v", err)
	}

	summaries, err := store.BlogSummaries(ctx)
	if err != nil {
		t.Fatalf("BlogSummaries: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected one summary, got %d", len(summaries))
	}
	if summaries[0].Slug != "my-first-post" {
		t.Fatalf("slug should be normalized, got %q", summaries[0].Slug)
	}
	if summaries[0].Excerpt != "第一段" {
		t.Fatalf("excerpt should fall back to the first paragraph, got %q", summaries[0].Excerpt)
	}

	post, found, err := store.BlogPost(ctx, "my-first-post")
	if err != nil {
		t.Fatalf("BlogPost: %v", err)
	}
	if !found {
		t.Fatal("normalized slug should resolve")
	}
	if len(post.Content) != 2 || post.Content[1] != "第二段" {
		t.Fatalf("unexpected content %+v", post.Content)
	}

	if _, found, err := store.BlogPost(ctx, "missing"); err != nil || found {
		t.Fatalf("unknown slug should be found=false without error, got found=%v err=%v", found, err)
	}
}

func TestRecordVisitDedupesPerDay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := store.RecordVisit(ctx, "v-alpha", now.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("RecordVisit: %v", err)
		}
	}
	if err := store.RecordVisit(ctx, "v-beta", now); err != nil {
		t.Fatalf("RecordVisit: %v", err)
	}
	// Same visitor the next day counts again.
	if err := store.RecordVisit(ctx, "v-alpha", now.Add(24*time.Hour)); err != nil {
		t.Fatalf("RecordVisit: %v", err)
	}

	stats, err := store.VisitorStats(ctx, now)
	if err != nil {
		t.Fatalf("VisitorStats: %v", err)
	}
	if stats.Today != 2 {
		t.Fatalf("expected 2 visits today, got %d", stats.Today)
	}
	if stats.Month != 3 {
		t.Fatalf("expected 3 visits this month, got %d", stats.Month)
	}
	if stats.Total != 3 {
		t.Fatalf("expected 3 visits total, got %d", stats.Total)
	}

	if err := store.RecordVisit(ctx, "   ", now); err == nil {
		t.Fatal("blank visitor id must be rejected")
	}
}

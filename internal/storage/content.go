package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	meowstatus "github.com/meowhuan/meowstatus"
)

// ScheduleItemInput is one incoming schedule row; missing ids and sort orders
// are filled in from the batch position.
type ScheduleItemInput struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title"`
	Time      string `json:"time"`
	Note      string `json:"note,omitempty"`
	Location  string `json:"location,omitempty"`
	Tag       string `json:"tag,omitempty"`
	SortOrder *int64 `json:"sort_order,omitempty"`
}

// BlogPostInput is one incoming blog post; slugs are normalized and the excerpt
// falls back to the first paragraph.
type BlogPostInput struct {
	Slug      string   `json:"slug,omitempty"`
	Title     string   `json:"title"`
	Date      string   `json:"date"`
	Tag       string   `json:"tag,omitempty"`
	Excerpt   string   `json:"excerpt,omitempty"`
	Content   []string `json:"content"`
	SortOrder *int64   `json:"sort_order,omitempty"`
}

// ScheduleItems lists the schedule ordered for display.
func (s *Store) ScheduleItems(ctx context.Context) ([]meowstatus.ScheduleItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, time, note, location, tag, sort_order, updated_at
         FROM schedule_items
         ORDER BY sort_order ASC, updated_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "query schedule failed")
	}
	defer rows.Close()

	items := make([]meowstatus.ScheduleItem, 0, 8)
	for rows.Next() {
		var (
			item     meowstatus.ScheduleItem
			note     sql.NullString
			location sql.NullString
			tag      sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.Title, &item.Time, &note, &location, &tag, &item.SortOrder, &item.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan schedule item failed")
		}
		item.Note = note.String
		item.Location = location.String
		item.Tag = tag.String
		items = append(items, item)
	}
	return items, errors.Wrap(rows.Err(), "iterate schedule failed")
}

// ReplaceSchedule swaps in the full schedule atomically.
func (s *Store) ReplaceSchedule(ctx context.Context, inputs []ScheduleItemInput, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin schedule transaction failed")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_items`); err != nil {
		return errors.Wrap(err, "clear schedule failed")
	}
	for idx, input := range inputs {
		id := strings.TrimSpace(input.ID)
		if id == "" {
			id = fmt.Sprintf("schedule-%d-%d", now.Unix(), idx)
		}
		sortOrder := int64(idx)
		if input.SortOrder != nil {
			sortOrder = *input.SortOrder
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schedule_items (id, title, time, note, location, tag, sort_order, updated_at)
             VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8)`,
			id, input.Title, input.Time,
			nullString(input.Note), nullString(input.Location), nullString(input.Tag),
			sortOrder, now.Unix(),
		); err != nil {
			return errors.Wrap(err, "insert schedule item failed")
		}
	}
	return errors.Wrap(tx.Commit(), "commit schedule failed")
}

// BlogSummaries lists posts without their content.
func (s *Store) BlogSummaries(ctx context.Context) ([]meowstatus.BlogPostSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slug, title, date, tag, excerpt, sort_order, updated_at
         FROM blog_posts
         ORDER BY sort_order ASC, date DESC, updated_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "query blog posts failed")
	}
	defer rows.Close()

	posts := make([]meowstatus.BlogPostSummary, 0, 8)
	for rows.Next() {
		var (
			post meowstatus.BlogPostSummary
			tag  sql.NullString
		)
		if err := rows.Scan(&post.Slug, &post.Title, &post.Date, &tag, &post.Excerpt, &post.SortOrder, &post.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan blog summary failed")
		}
		post.Tag = tag.String
		posts = append(posts, post)
	}
	return posts, errors.Wrap(rows.Err(), "iterate blog posts failed")
}

// BlogPost loads one post with its paragraphs. found is false for unknown slugs.
func (s *Store) BlogPost(ctx context.Context, slug string) (meowstatus.BlogPost, bool, error) {
	var (
		post        meowstatus.BlogPost
		tag         sql.NullString
		contentJSON string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT slug, title, date, tag, excerpt, content_json, sort_order, updated_at
         FROM blog_posts WHERE slug = ?1 LIMIT 1`, slug,
	).Scan(&post.Slug, &post.Title, &post.Date, &tag, &post.Excerpt, &contentJSON, &post.SortOrder, &post.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return post, false, nil
	}
	if err != nil {
		return post, false, errors.Wrap(err, "query blog post failed")
	}
	post.Tag = tag.String
	if err := json.Unmarshal([]byte(contentJSON), &post.Content); err != nil {
		post.Content = nil
	}
	return post, true, nil
}

// ReplaceBlog swaps in the full post list atomically.
func (s *Store) ReplaceBlog(ctx context.Context, inputs []BlogPostInput, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin blog transaction failed")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM blog_posts`); err != nil {
		return errors.Wrap(err, "clear blog posts failed")
	}
	for idx, input := range inputs {
		slug := NormalizeSlug(input.Slug)
		if slug == "" {
			slug = fmt.Sprintf("post-%d-%d", now.Unix(), idx)
		}
		sortOrder := int64(idx)
		if input.SortOrder != nil {
			sortOrder = *input.SortOrder
		}
		excerpt := strings.TrimSpace(input.Excerpt)
		if excerpt == "" && len(input.Content) > 0 {
			excerpt = input.Content[0]
		}
		contentJSON, err := json.Marshal(input.Content)
		if err != nil {
			return errors.Wrap(err, "encode blog content failed")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO blog_posts (slug, title, date, tag, excerpt, content_json, sort_order, updated_at)
             VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8)`,
			slug, input.Title, input.Date, nullString(input.Tag),
			excerpt, string(contentJSON), sortOrder, now.Unix(),
		); err != nil {
			return errors.Wrap(err, "insert blog post failed")
		}
	}
	return errors.Wrap(tx.Commit(), "commit blog posts failed")
}

// NormalizeSlug lowercases, hyphenates spaces, and strips everything outside
// [a-z0-9-]. An empty result is left for the caller to replace.
func NormalizeSlug(slug string) string {
	slug = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(slug)), " ", "-")
	var b strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RecordVisit stores at most one visit per visitor per UTC day.
func (s *Store) RecordVisit(ctx context.Context, visitorID string, now time.Time) error {
	visitorID = strings.TrimSpace(visitorID)
	if visitorID == "" {
		return errors.New("visitor id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO visitor_visits (visitor_id, visit_date, created_at)
         VALUES (?1, ?2, ?3)`,
		visitorID, now.UTC().Format("2006-01-02"), now.Unix(),
	)
	return errors.Wrap(err, "record visit failed")
}

// VisitorStats aggregates the visit counters for today, this month, and all time.
func (s *Store) VisitorStats(ctx context.Context, now time.Time) (meowstatus.VisitorStats, error) {
	stats := meowstatus.VisitorStats{UpdatedAt: now.Unix()}
	today := now.UTC().Format("2006-01-02")
	monthPrefix := now.UTC().Format("2006-01") + "-%"

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM visitor_visits WHERE visit_date = ?1`, today,
	).Scan(&stats.Today); err != nil {
		return stats, errors.Wrap(err, "count today visits failed")
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM visitor_visits WHERE visit_date LIKE ?1`, monthPrefix,
	).Scan(&stats.Month); err != nil {
		return stats, errors.Wrap(err, "count month visits failed")
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM visitor_visits`,
	).Scan(&stats.Total); err != nil {
		return stats, errors.Wrap(err, "count total visits failed")
	}
	return stats, nil
}

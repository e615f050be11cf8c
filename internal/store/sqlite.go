package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wolffm/dispatch/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool, so
	// the poll workers never hit "database is locked".
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Watchlist ---

func (s *SQLiteStore) ListWatchlist(ctx context.Context) ([]*models.WatchlistEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, repo, slug, added_at FROM watchlist ORDER BY added_at`)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	defer rows.Close()

	var entries []*models.WatchlistEntry
	for rows.Next() {
		e := &models.WatchlistEntry{}
		if err := rows.Scan(&e.ID, &e.Owner, &e.Repo, &e.Slug, &e.AddedAt); err != nil {
			return nil, fmt.Errorf("scan watchlist entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AddWatchlistEntry inserts owner/repo if the pair is not already tracked.
// Uniqueness is on (owner, repo), never the display slug, which is not
// reversible when either side contains a hyphen. The bool result reports
// whether a new entry was created.
func (s *SQLiteStore) AddWatchlistEntry(ctx context.Context, owner, repo string) (*models.WatchlistEntry, bool, error) {
	existing := &models.WatchlistEntry{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner, repo, slug, added_at FROM watchlist WHERE owner = ? AND repo = ?`, owner, repo,
	).Scan(&existing.ID, &existing.Owner, &existing.Repo, &existing.Slug, &existing.AddedAt)
	if err == nil {
		return existing, false, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("check watchlist entry: %w", err)
	}

	e := &models.WatchlistEntry{
		ID:      newULID(),
		Owner:   owner,
		Repo:    repo,
		Slug:    models.WatchlistSlug(owner, repo),
		AddedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO watchlist (id, owner, repo, slug, added_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Owner, e.Repo, e.Slug, e.AddedAt)
	if err != nil {
		return nil, false, fmt.Errorf("add watchlist entry: %w", err)
	}
	return e, true, nil
}

func (s *SQLiteStore) RemoveWatchlistEntry(ctx context.Context, owner, repo string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM watchlist WHERE owner = ? AND repo = ?`, owner, repo)
	if err != nil {
		return false, fmt.Errorf("remove watchlist entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove watchlist entry: %w", err)
	}
	return n > 0, nil
}

// --- Selected issues ---

func (s *SQLiteStore) ListSelectedIssues(ctx context.Context) ([]*models.SelectedIssue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT origin_slug, issue_number, issue_title, issue_url, selected_at
		FROM selected_issues ORDER BY selected_at`)
	if err != nil {
		return nil, fmt.Errorf("list selected issues: %w", err)
	}
	defer rows.Close()

	var selections []*models.SelectedIssue
	for rows.Next() {
		sel := &models.SelectedIssue{}
		if err := rows.Scan(&sel.OriginSlug, &sel.IssueNumber, &sel.IssueTitle, &sel.IssueURL, &sel.SelectedAt); err != nil {
			return nil, fmt.Errorf("scan selected issue: %w", err)
		}
		selections = append(selections, sel)
	}
	return selections, rows.Err()
}

func (s *SQLiteStore) FindSelectedIssue(ctx context.Context, originSlug string, issueNumber int) (*models.SelectedIssue, error) {
	sel := &models.SelectedIssue{}
	err := s.db.QueryRowContext(ctx,
		`SELECT origin_slug, issue_number, issue_title, issue_url, selected_at
		FROM selected_issues WHERE origin_slug = ? AND issue_number = ?`,
		originSlug, issueNumber,
	).Scan(&sel.OriginSlug, &sel.IssueNumber, &sel.IssueTitle, &sel.IssueURL, &sel.SelectedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find selected issue: %w", err)
	}
	return sel, nil
}

func (s *SQLiteStore) SelectIssue(ctx context.Context, sel *models.SelectedIssue) error {
	if sel.SelectedAt.IsZero() {
		sel.SelectedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO selected_issues (id, origin_slug, issue_number, issue_title, issue_url, selected_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		newULID(), sel.OriginSlug, sel.IssueNumber, sel.IssueTitle, sel.IssueURL, sel.SelectedAt)
	if err != nil {
		return fmt.Errorf("select issue: %w", err)
	}
	return nil
}

// --- Assignments ---

func (s *SQLiteStore) ListAssignments(ctx context.Context) ([]*models.Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT origin_slug, repo, issue_number, fork_issue_number, fork_issue_url, assigned_at
		FROM assignments ORDER BY assigned_at`)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*models.Assignment
	for rows.Next() {
		a := &models.Assignment{}
		if err := rows.Scan(&a.OriginSlug, &a.Repo, &a.IssueNumber, &a.ForkIssueNumber, &a.ForkIssueURL, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (s *SQLiteStore) FindAssignment(ctx context.Context, originSlug string, issueNumber int) (*models.Assignment, error) {
	a := &models.Assignment{}
	err := s.db.QueryRowContext(ctx,
		`SELECT origin_slug, repo, issue_number, fork_issue_number, fork_issue_url, assigned_at
		FROM assignments WHERE origin_slug = ? AND issue_number = ?`,
		originSlug, issueNumber,
	).Scan(&a.OriginSlug, &a.Repo, &a.IssueNumber, &a.ForkIssueNumber, &a.ForkIssueURL, &a.AssignedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assignments (id, origin_slug, repo, issue_number, fork_issue_number, fork_issue_url, assigned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		newULID(), a.OriginSlug, a.Repo, a.IssueNumber, a.ForkIssueNumber, a.ForkIssueURL, a.AssignedAt)
	if err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// --- Ready-to-submit queue ---

func (s *SQLiteStore) ListReadyToSubmit(ctx context.Context) ([]*models.ReadyToSubmitItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT origin_slug, repo, branch, title, base_branch, merged_at
		FROM ready_to_submit ORDER BY merged_at`)
	if err != nil {
		return nil, fmt.Errorf("list ready to submit: %w", err)
	}
	defer rows.Close()

	var items []*models.ReadyToSubmitItem
	for rows.Next() {
		item := &models.ReadyToSubmitItem{}
		if err := rows.Scan(&item.OriginSlug, &item.Repo, &item.Branch, &item.Title, &item.BaseBranch, &item.MergedAt); err != nil {
			return nil, fmt.Errorf("scan ready to submit: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SaveReadyToSubmit upserts on (origin_slug, branch) so re-merging the same
// branch refreshes the queued item instead of duplicating it.
func (s *SQLiteStore) SaveReadyToSubmit(ctx context.Context, item *models.ReadyToSubmitItem) error {
	if item.MergedAt.IsZero() {
		item.MergedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ready_to_submit (id, origin_slug, repo, branch, title, base_branch, merged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (origin_slug, branch) DO UPDATE SET
			title = excluded.title,
			base_branch = excluded.base_branch,
			merged_at = excluded.merged_at`,
		newULID(), item.OriginSlug, item.Repo, item.Branch, item.Title, item.BaseBranch, item.MergedAt)
	if err != nil {
		return fmt.Errorf("save ready to submit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveReadyToSubmit(ctx context.Context, originSlug, branch string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ready_to_submit WHERE origin_slug = ? AND branch = ?`, originSlug, branch)
	if err != nil {
		return false, fmt.Errorf("remove ready to submit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove ready to submit: %w", err)
	}
	return n > 0, nil
}

// --- Submitted PRs ---

func (s *SQLiteStore) ListSubmittedPRs(ctx context.Context) ([]*models.SubmittedPR, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT origin_slug, pr_url, pr_number, title, state, review_decision, merged_at, closed_at, last_polled_at, submitted_at
		FROM submitted_prs ORDER BY submitted_at`)
	if err != nil {
		return nil, fmt.Errorf("list submitted PRs: %w", err)
	}
	defer rows.Close()

	var prs []*models.SubmittedPR
	for rows.Next() {
		pr := &models.SubmittedPR{}
		var state string
		if err := rows.Scan(&pr.OriginSlug, &pr.PRURL, &pr.PRNumber, &pr.Title, &state, &pr.ReviewDecision, &pr.MergedAt, &pr.ClosedAt, &pr.LastPolledAt, &pr.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan submitted PR: %w", err)
		}
		pr.State = models.PRState(state)
		prs = append(prs, pr)
	}
	return prs, rows.Err()
}

// SaveSubmittedPR upserts on pr_url.
func (s *SQLiteStore) SaveSubmittedPR(ctx context.Context, pr *models.SubmittedPR) error {
	if pr.SubmittedAt.IsZero() {
		pr.SubmittedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submitted_prs (id, origin_slug, pr_url, pr_number, title, state, review_decision, merged_at, closed_at, last_polled_at, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (pr_url) DO UPDATE SET
			state = excluded.state,
			review_decision = excluded.review_decision,
			merged_at = excluded.merged_at,
			closed_at = excluded.closed_at,
			last_polled_at = excluded.last_polled_at`,
		newULID(), pr.OriginSlug, pr.PRURL, pr.PRNumber, pr.Title, string(pr.State),
		pr.ReviewDecision, pr.MergedAt, pr.ClosedAt, pr.LastPolledAt, pr.SubmittedAt)
	if err != nil {
		return fmt.Errorf("save submitted PR: %w", err)
	}
	return nil
}

// ReplaceSubmittedPRs swaps the full submitted-PR set in one transaction, so
// a poll pass either lands completely or not at all.
func (s *SQLiteStore) ReplaceSubmittedPRs(ctx context.Context, prs []*models.SubmittedPR) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace submitted PRs: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM submitted_prs`); err != nil {
		return fmt.Errorf("clear submitted PRs: %w", err)
	}
	for _, pr := range prs {
		if pr.SubmittedAt.IsZero() {
			pr.SubmittedAt = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO submitted_prs (id, origin_slug, pr_url, pr_number, title, state, review_decision, merged_at, closed_at, last_polled_at, submitted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			newULID(), pr.OriginSlug, pr.PRURL, pr.PRNumber, pr.Title, string(pr.State),
			pr.ReviewDecision, pr.MergedAt, pr.ClosedAt, pr.LastPolledAt, pr.SubmittedAt)
		if err != nil {
			return fmt.Errorf("insert submitted PR %s: %w", pr.PRURL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace submitted PRs: %w", err)
	}
	return nil
}

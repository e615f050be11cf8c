package store

import (
	"context"

	"github.com/wolffm/dispatch/internal/models"
)

// Store defines the persistence interface for dispatch's pipeline state.
// All writes are durable before the corresponding operation reports success.
type Store interface {
	// Watchlist
	ListWatchlist(ctx context.Context) ([]*models.WatchlistEntry, error)
	AddWatchlistEntry(ctx context.Context, owner, repo string) (*models.WatchlistEntry, bool, error)
	RemoveWatchlistEntry(ctx context.Context, owner, repo string) (bool, error)

	// Selected issues
	ListSelectedIssues(ctx context.Context) ([]*models.SelectedIssue, error)
	FindSelectedIssue(ctx context.Context, originSlug string, issueNumber int) (*models.SelectedIssue, error)
	SelectIssue(ctx context.Context, sel *models.SelectedIssue) error

	// Assignments (append-only)
	ListAssignments(ctx context.Context) ([]*models.Assignment, error)
	FindAssignment(ctx context.Context, originSlug string, issueNumber int) (*models.Assignment, error)
	CreateAssignment(ctx context.Context, a *models.Assignment) error

	// Ready-to-submit queue
	ListReadyToSubmit(ctx context.Context) ([]*models.ReadyToSubmitItem, error)
	SaveReadyToSubmit(ctx context.Context, item *models.ReadyToSubmitItem) error
	RemoveReadyToSubmit(ctx context.Context, originSlug, branch string) (bool, error)

	// Submitted PRs
	ListSubmittedPRs(ctx context.Context) ([]*models.SubmittedPR, error)
	SaveSubmittedPR(ctx context.Context, pr *models.SubmittedPR) error
	ReplaceSubmittedPRs(ctx context.Context, prs []*models.SubmittedPR) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/undermod/gitback/internal/domain/model"
	"github.com/undermod/gitback/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.FeedbackStore = (*FeedbackRepo)(nil)

// FeedbackRepo is the SQLite implementation of the FeedbackStore port.
type FeedbackRepo struct {
	db *DB
}

// NewFeedbackRepo creates a FeedbackRepo backed by the given DB.
func NewFeedbackRepo(db *DB) *FeedbackRepo {
	return &FeedbackRepo{db: db}
}

const feedbackColumns = `f.id, f.repository_id, f.user_name, f.user_email, f.title, f.content,
	f.type, f.status, f.github_issue_url, f.created_at, f.updated_at`

// Create inserts a new feedback row.
func (r *FeedbackRepo) Create(ctx context.Context, fb model.Feedback) error {
	const query = `INSERT INTO feedback
		(id, repository_id, user_name, user_email, title, content, type, status, github_issue_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = now
	}
	if fb.UpdatedAt.IsZero() {
		fb.UpdatedAt = now
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		fb.ID, fb.RepositoryID, fb.UserName, fb.UserEmail, fb.Title, fb.Content,
		string(fb.Type), string(fb.Status), nullString(fb.GitHubIssueURL),
		formatTime(fb.CreatedAt), formatTime(fb.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create feedback %q: %w", fb.Title, err)
	}

	return nil
}

// GetByID retrieves one feedback row. Returns ErrFeedbackNotFound when absent.
func (r *FeedbackRepo) GetByID(ctx context.Context, id string) (*model.Feedback, error) {
	query := `SELECT ` + feedbackColumns + ` FROM feedback f WHERE f.id = ?`

	fb, err := scanFeedback(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrFeedbackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get feedback %s: %w", id, err)
	}

	return fb, nil
}

// List returns feedback scoped to the user's repositories. The query
// matches submitter name/email, parent repository name and title via LIKE,
// or exactly a type/status value when it equals one case-insensitively.
func (r *FeedbackRepo) List(ctx context.Context, userID, query string, page, pageSize int) (*driven.FeedbackPage, error) {
	where := `WHERE r.user_id = ?`
	args := []any{userID}

	if query != "" {
		clauses := `f.user_name LIKE ? OR f.user_email LIKE ? OR r.name LIKE ? OR f.title LIKE ?`
		p := likePattern(query)
		args = append(args, p, p, p, p)

		if t, ok := model.ParseFeedbackType(query); ok {
			clauses += ` OR f.type = ?`
			args = append(args, string(t))
		}
		if st, ok := model.ParseFeedbackStatus(query); ok {
			clauses += ` OR f.status = ?`
			args = append(args, string(st))
		}

		where += ` AND (` + clauses + `)`
	}

	from := ` FROM feedback f JOIN user_selected_repositories r ON r.id = f.repository_id `

	var total int
	if err := r.db.Reader.QueryRowContext(ctx, `SELECT COUNT(*)`+from+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count feedback: %w", err)
	}

	if page < 1 {
		page = 1
	}
	listQuery := `SELECT ` + feedbackColumns + `, ` + repoColumnsAliased + from + where +
		` ORDER BY f.updated_at DESC LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Reader.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	items := []driven.FeedbackWithRepo{}
	for rows.Next() {
		item, err := scanFeedbackWithRepo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}

	return &driven.FeedbackPage{
		Items:      items,
		TotalCount: total,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

// Update rewrites the editable fields of a feedback row. The issue URL is
// deliberately untouched: MarkSubmitted is its only writer.
func (r *FeedbackRepo) Update(ctx context.Context, fb model.Feedback) error {
	const query = `UPDATE feedback
		SET repository_id = ?, user_name = ?, user_email = ?, title = ?, content = ?, type = ?, status = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query,
		fb.RepositoryID, fb.UserName, fb.UserEmail, fb.Title, fb.Content,
		string(fb.Type), string(fb.Status), formatTime(time.Now()), fb.ID,
	)
	if err != nil {
		return fmt.Errorf("update feedback %s: %w", fb.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update feedback %s: %w", fb.ID, driven.ErrFeedbackNotFound)
	}

	return nil
}

// Delete removes a feedback row; its image rows cascade.
func (r *FeedbackRepo) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM feedback WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete feedback %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete feedback %s: %w", id, driven.ErrFeedbackNotFound)
	}

	return nil
}

// MarkSubmitted transitions PENDING → SUBMITTED and records the issue URL.
// The WHERE clause makes SUBMITTED terminal: a row that already left
// PENDING is reported as ErrFeedbackAlreadySubmitted.
func (r *FeedbackRepo) MarkSubmitted(ctx context.Context, id, issueURL string) error {
	const query = `UPDATE feedback SET status = ?, github_issue_url = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	result, err := r.db.Writer.ExecContext(ctx, query,
		string(model.FeedbackStatusSubmitted), issueURL, formatTime(time.Now()),
		id, string(model.FeedbackStatusPending),
	)
	if err != nil {
		return fmt.Errorf("mark feedback %s submitted: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		// Distinguish a missing row from an illegal transition.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("mark feedback %s submitted: %w", id, driven.ErrFeedbackAlreadySubmitted)
	}

	return nil
}

// CountByStatus returns feedback counts per status over the user's
// repositories. Statuses with no rows are absent from the map.
func (r *FeedbackRepo) CountByStatus(ctx context.Context, userID string) (map[model.FeedbackStatus]int, error) {
	const query = `SELECT f.status, COUNT(*)
		FROM feedback f
		JOIN user_selected_repositories r ON r.id = f.repository_id
		WHERE r.user_id = ?
		GROUP BY f.status`

	rows, err := r.db.Reader.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("count feedback by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.FeedbackStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[model.FeedbackStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	return counts, nil
}

// MonthlyCounts buckets the user's feedback by creation month, oldest
// first. Months without feedback are absent; the caller fills gaps.
func (r *FeedbackRepo) MonthlyCounts(ctx context.Context, userID string, since time.Time) ([]driven.MonthCount, error) {
	const query = `SELECT strftime('%Y-%m', f.created_at) AS month, COUNT(*)
		FROM feedback f
		JOIN user_selected_repositories r ON r.id = f.repository_id
		WHERE r.user_id = ? AND f.created_at >= ?
		GROUP BY month
		ORDER BY month`

	rows, err := r.db.Reader.QueryContext(ctx, query, userID, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("monthly feedback counts: %w", err)
	}
	defer rows.Close()

	var counts []driven.MonthCount
	for rows.Next() {
		var mc driven.MonthCount
		if err := rows.Scan(&mc.Month, &mc.Count); err != nil {
			return nil, fmt.Errorf("scan month count: %w", err)
		}
		counts = append(counts, mc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate month counts: %w", err)
	}

	return counts, nil
}

// Latest returns the n most recently updated feedback rows with their
// parent repositories.
func (r *FeedbackRepo) Latest(ctx context.Context, userID string, n int) ([]driven.FeedbackWithRepo, error) {
	query := `SELECT ` + feedbackColumns + `, ` + repoColumnsAliased + `
		FROM feedback f
		JOIN user_selected_repositories r ON r.id = f.repository_id
		WHERE r.user_id = ?
		ORDER BY f.updated_at DESC LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, userID, n)
	if err != nil {
		return nil, fmt.Errorf("latest feedback: %w", err)
	}
	defer rows.Close()

	items := []driven.FeedbackWithRepo{}
	for rows.Next() {
		item, err := scanFeedbackWithRepo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}

	return items, nil
}

// repoColumnsAliased selects the joined parent repository columns with the
// r. prefix used by the feedback queries.
const repoColumnsAliased = `r.id, r.user_id, r.github_repo_id, r.name, r.full_name, r.description,
	r.html_url, r.private, r.language, r.stargazers_count, r.forks_count,
	r.github_updated_at, r.created_at, r.updated_at`

func scanFeedback(s scanner) (*model.Feedback, error) {
	var (
		fb                 model.Feedback
		issueURL           sql.NullString
		createdAt, updated string
	)

	err := s.Scan(&fb.ID, &fb.RepositoryID, &fb.UserName, &fb.UserEmail,
		&fb.Title, &fb.Content, (*string)(&fb.Type), (*string)(&fb.Status),
		&issueURL, &createdAt, &updated)
	if err != nil {
		return nil, err
	}

	fb.GitHubIssueURL = issueURL.String

	if fb.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if fb.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &fb, nil
}

func scanFeedbackWithRepo(s scanner) (*driven.FeedbackWithRepo, error) {
	var (
		item               driven.FeedbackWithRepo
		issueURL           sql.NullString
		fbCreated, fbUpd   string
		private            int
		ghUpdated          sql.NullString
		repoCreated, rpUpd string
	)

	fb := &item.Feedback
	repo := &item.Repository

	err := s.Scan(
		&fb.ID, &fb.RepositoryID, &fb.UserName, &fb.UserEmail, &fb.Title, &fb.Content,
		(*string)(&fb.Type), (*string)(&fb.Status), &issueURL, &fbCreated, &fbUpd,
		&repo.ID, &repo.UserID, &repo.GitHubRepoID, &repo.Name, &repo.FullName,
		&repo.Description, &repo.HTMLURL, &private, &repo.Language,
		&repo.StargazersCount, &repo.ForksCount, &ghUpdated, &repoCreated, &rpUpd,
	)
	if err != nil {
		return nil, err
	}

	fb.GitHubIssueURL = issueURL.String
	repo.Private = private != 0

	if fb.CreatedAt, err = parseTime(fbCreated); err != nil {
		return nil, fmt.Errorf("parse feedback created_at: %w", err)
	}
	if fb.UpdatedAt, err = parseTime(fbUpd); err != nil {
		return nil, fmt.Errorf("parse feedback updated_at: %w", err)
	}
	if ghUpdated.Valid {
		if repo.GitHubUpdatedAt, err = parseTime(ghUpdated.String); err != nil {
			return nil, fmt.Errorf("parse github_updated_at: %w", err)
		}
	}
	if repo.CreatedAt, err = parseTime(repoCreated); err != nil {
		return nil, fmt.Errorf("parse repository created_at: %w", err)
	}
	if repo.UpdatedAt, err = parseTime(rpUpd); err != nil {
		return nil, fmt.Errorf("parse repository updated_at: %w", err)
	}

	return &item, nil
}

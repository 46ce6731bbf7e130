package application

import (
	"context"
	"time"

	"github.com/undermod/gitback/internal/domain/model"
	"github.com/undermod/gitback/internal/domain/port/driven"
)

// trendMonths is the width of the dashboard trend window, current month
// included.
const trendMonths = 12

// DashboardCards are the headline counters for the owner dashboard.
type DashboardCards struct {
	Repositories  int `json:"repositories"`
	TotalFeedback int `json:"total_feedback"`
	Pending       int `json:"pending"`
	Submitted     int `json:"submitted"`
	Rejected      int `json:"rejected"`
}

// DashboardService aggregates read-only views over the user's repositories
// and feedback. All queries are scoped to the authenticated user.
type DashboardService struct {
	repos     driven.RepoStore
	feedbacks driven.FeedbackStore
	now       func() time.Time
}

func NewDashboardService(repos driven.RepoStore, feedbacks driven.FeedbackStore) *DashboardService {
	return &DashboardService{repos: repos, feedbacks: feedbacks, now: time.Now}
}

// Cards returns the repository count and feedback counts by status.
func (s *DashboardService) Cards(ctx context.Context, userID string) (*DashboardCards, error) {
	repoCount, err := s.repos.Count(ctx, userID)
	if err != nil {
		return nil, err
	}

	byStatus, err := s.feedbacks.CountByStatus(ctx, userID)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}

	return &DashboardCards{
		Repositories:  repoCount,
		TotalFeedback: total,
		Pending:       byStatus[model.FeedbackStatusPending],
		Submitted:     byStatus[model.FeedbackStatusSubmitted],
		Rejected:      byStatus[model.FeedbackStatusRejected],
	}, nil
}

// Trend returns feedback counts per month for the trailing 12 months,
// oldest first, with empty months filled in as zero.
func (s *DashboardService) Trend(ctx context.Context, userID string) ([]driven.MonthCount, error) {
	now := s.now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(trendMonths - 1), 0)

	counts, err := s.feedbacks.MonthlyCounts(ctx, userID, start)
	if err != nil {
		return nil, err
	}

	return fillMonthGaps(counts, start, trendMonths), nil
}

// Latest returns the 5 most recently updated feedback items with their
// parent repositories.
func (s *DashboardService) Latest(ctx context.Context, userID string) ([]driven.FeedbackWithRepo, error) {
	return s.feedbacks.Latest(ctx, userID, 5)
}

// fillMonthGaps expands sparse month counts into a dense window of months
// starting at start.
func fillMonthGaps(counts []driven.MonthCount, start time.Time, months int) []driven.MonthCount {
	byMonth := make(map[string]int, len(counts))
	for _, c := range counts {
		byMonth[c.Month] = c.Count
	}

	filled := make([]driven.MonthCount, 0, months)
	for i := 0; i < months; i++ {
		month := start.AddDate(0, i, 0).Format("2006-01")
		filled = append(filled, driven.MonthCount{Month: month, Count: byMonth[month]})
	}

	return filled
}

package application

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/undermod/gitback/internal/domain/model"
	"github.com/undermod/gitback/internal/domain/port/driven"
)

// --- In-memory fakes for the driven ports ---

type fakeUserStore struct {
	users map[string]model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]model.User)}
}

func (f *fakeUserStore) Create(_ context.Context, user model.User) error {
	for _, u := range f.users {
		if u.Email == user.Email {
			return driven.ErrEmailTaken
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, driven.ErrUserNotFound
	}
	return &u, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, driven.ErrUserNotFound
}

func (f *fakeUserStore) GetByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	for _, u := range f.users {
		if u.GitHubID == githubID {
			return &u, nil
		}
	}
	return nil, driven.ErrUserNotFound
}

func (f *fakeUserStore) LinkGitHub(_ context.Context, userID string, githubID int64, login, token string) error {
	u, ok := f.users[userID]
	if !ok {
		return driven.ErrUserNotFound
	}
	u.GitHubID = githubID
	u.GitHubLogin = login
	u.GitHubToken = token
	f.users[userID] = u
	return nil
}

type fakeRepoStore struct {
	repos map[string]model.SelectedRepository
}

func newFakeRepoStore() *fakeRepoStore {
	return &fakeRepoStore{repos: make(map[string]model.SelectedRepository)}
}

func (f *fakeRepoStore) Add(_ context.Context, repo model.SelectedRepository) error {
	for _, r := range f.repos {
		if r.UserID == repo.UserID && r.GitHubRepoID == repo.GitHubRepoID {
			return driven.ErrRepoAlreadySelected
		}
	}
	f.repos[repo.ID] = repo
	return nil
}

func (f *fakeRepoStore) GetByID(_ context.Context, userID, id string) (*model.SelectedRepository, error) {
	r, ok := f.repos[id]
	if !ok || r.UserID != userID {
		return nil, driven.ErrRepoNotFound
	}
	return &r, nil
}

func (f *fakeRepoStore) GetAny(_ context.Context, id string) (*model.SelectedRepository, error) {
	r, ok := f.repos[id]
	if !ok {
		return nil, driven.ErrRepoNotFound
	}
	return &r, nil
}

func (f *fakeRepoStore) List(_ context.Context, userID, query string, page, pageSize int) (*driven.RepoPage, error) {
	var items []model.SelectedRepository
	for _, r := range f.repos {
		if r.UserID == userID {
			items = append(items, r)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return &driven.RepoPage{Items: items, TotalCount: len(items), TotalPages: 1}, nil
}

func (f *fakeRepoStore) Update(_ context.Context, repo model.SelectedRepository) error {
	existing, ok := f.repos[repo.ID]
	if !ok || existing.UserID != repo.UserID {
		return driven.ErrRepoNotFound
	}
	f.repos[repo.ID] = repo
	return nil
}

func (f *fakeRepoStore) Delete(_ context.Context, userID, id string) error {
	r, ok := f.repos[id]
	if !ok || r.UserID != userID {
		return driven.ErrRepoNotFound
	}
	delete(f.repos, id)
	return nil
}

func (f *fakeRepoStore) SelectedGitHubIDs(_ context.Context, userID string) (map[int64]bool, error) {
	ids := make(map[int64]bool)
	for _, r := range f.repos {
		if r.UserID == userID {
			ids[r.GitHubRepoID] = true
		}
	}
	return ids, nil
}

func (f *fakeRepoStore) Count(_ context.Context, userID string) (int, error) {
	n := 0
	for _, r := range f.repos {
		if r.UserID == userID {
			n++
		}
	}
	return n, nil
}

type fakeFeedbackStore struct {
	feedbacks map[string]model.Feedback
	repos     *fakeRepoStore
}

func newFakeFeedbackStore(repos *fakeRepoStore) *fakeFeedbackStore {
	return &fakeFeedbackStore{feedbacks: make(map[string]model.Feedback), repos: repos}
}

func (f *fakeFeedbackStore) Create(_ context.Context, feedback model.Feedback) error {
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now()
	}
	if feedback.UpdatedAt.IsZero() {
		feedback.UpdatedAt = feedback.CreatedAt
	}
	f.feedbacks[feedback.ID] = feedback
	return nil
}

func (f *fakeFeedbackStore) GetByID(_ context.Context, id string) (*model.Feedback, error) {
	fb, ok := f.feedbacks[id]
	if !ok {
		return nil, driven.ErrFeedbackNotFound
	}
	return &fb, nil
}

func (f *fakeFeedbackStore) ownedBy(fb model.Feedback, userID string) bool {
	r, ok := f.repos.repos[fb.RepositoryID]
	return ok && r.UserID == userID
}

func (f *fakeFeedbackStore) List(_ context.Context, userID, query string, page, pageSize int) (*driven.FeedbackPage, error) {
	var items []driven.FeedbackWithRepo
	for _, fb := range f.feedbacks {
		if f.ownedBy(fb, userID) {
			items = append(items, driven.FeedbackWithRepo{
				Feedback:   fb,
				Repository: f.repos.repos[fb.RepositoryID],
			})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Feedback.ID < items[j].Feedback.ID })
	return &driven.FeedbackPage{Items: items, TotalCount: len(items), TotalPages: 1}, nil
}

func (f *fakeFeedbackStore) Update(_ context.Context, feedback model.Feedback) error {
	existing, ok := f.feedbacks[feedback.ID]
	if !ok {
		return driven.ErrFeedbackNotFound
	}
	feedback.GitHubIssueURL = existing.GitHubIssueURL
	f.feedbacks[feedback.ID] = feedback
	return nil
}

func (f *fakeFeedbackStore) Delete(_ context.Context, id string) error {
	if _, ok := f.feedbacks[id]; !ok {
		return driven.ErrFeedbackNotFound
	}
	delete(f.feedbacks, id)
	return nil
}

func (f *fakeFeedbackStore) MarkSubmitted(_ context.Context, id, issueURL string) error {
	fb, ok := f.feedbacks[id]
	if !ok {
		return driven.ErrFeedbackNotFound
	}
	if fb.Status != model.FeedbackStatusPending {
		return driven.ErrFeedbackAlreadySubmitted
	}
	fb.Status = model.FeedbackStatusSubmitted
	fb.GitHubIssueURL = issueURL
	f.feedbacks[id] = fb
	return nil
}

func (f *fakeFeedbackStore) CountByStatus(_ context.Context, userID string) (map[model.FeedbackStatus]int, error) {
	counts := make(map[model.FeedbackStatus]int)
	for _, fb := range f.feedbacks {
		if f.ownedBy(fb, userID) {
			counts[fb.Status]++
		}
	}
	return counts, nil
}

func (f *fakeFeedbackStore) MonthlyCounts(_ context.Context, userID string, since time.Time) ([]driven.MonthCount, error) {
	byMonth := make(map[string]int)
	for _, fb := range f.feedbacks {
		if f.ownedBy(fb, userID) && !fb.CreatedAt.Before(since) {
			byMonth[fb.CreatedAt.Format("2006-01")]++
		}
	}
	var counts []driven.MonthCount
	for month, n := range byMonth {
		counts = append(counts, driven.MonthCount{Month: month, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Month < counts[j].Month })
	return counts, nil
}

func (f *fakeFeedbackStore) Latest(_ context.Context, userID string, n int) ([]driven.FeedbackWithRepo, error) {
	var items []driven.FeedbackWithRepo
	for _, fb := range f.feedbacks {
		if f.ownedBy(fb, userID) {
			items = append(items, driven.FeedbackWithRepo{
				Feedback:   fb,
				Repository: f.repos.repos[fb.RepositoryID],
			})
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Feedback.UpdatedAt.After(items[j].Feedback.UpdatedAt)
	})
	if len(items) > n {
		items = items[:n]
	}
	return items, nil
}

type fakeImageStore struct {
	images    map[string]model.FeedbackImage
	feedbacks *fakeFeedbackStore
}

func newFakeImageStore(feedbacks *fakeFeedbackStore) *fakeImageStore {
	return &fakeImageStore{images: make(map[string]model.FeedbackImage), feedbacks: feedbacks}
}

func (f *fakeImageStore) CreateBatch(_ context.Context, images []model.FeedbackImage) error {
	for _, img := range images {
		f.images[img.ID] = img
	}
	return nil
}

func (f *fakeImageStore) GetByID(_ context.Context, id string) (*model.FeedbackImage, error) {
	img, ok := f.images[id]
	if !ok {
		return nil, driven.ErrImageNotFound
	}
	return &img, nil
}

func (f *fakeImageStore) ListByFeedback(_ context.Context, feedbackID string) ([]model.FeedbackImage, error) {
	var images []model.FeedbackImage
	for _, img := range f.images {
		if img.FeedbackID == feedbackID {
			images = append(images, img)
		}
	}
	sort.Slice(images, func(i, j int) bool { return images[i].URL < images[j].URL })
	return images, nil
}

func (f *fakeImageStore) ListByRepository(_ context.Context, repositoryID string) ([]model.FeedbackImage, error) {
	var images []model.FeedbackImage
	for _, img := range f.images {
		fb, ok := f.feedbacks.feedbacks[img.FeedbackID]
		if ok && fb.RepositoryID == repositoryID {
			images = append(images, img)
		}
	}
	return images, nil
}

func (f *fakeImageStore) Delete(_ context.Context, id string) error {
	if _, ok := f.images[id]; !ok {
		return driven.ErrImageNotFound
	}
	delete(f.images, id)
	return nil
}

// fakeAssetStore records uploads and deletions. failSubstr makes uploads of
// matching filenames fail, to exercise cleanup paths. Safe for concurrent
// use because SaveBatch uploads in parallel.
type fakeAssetStore struct {
	mu         sync.Mutex
	uploaded   []string
	deleted    []string
	failSubstr string
}

func (f *fakeAssetStore) Upload(_ context.Context, r io.Reader, filename string) (string, error) {
	if f.failSubstr != "" && strings.Contains(filename, f.failSubstr) {
		return "", fmt.Errorf("asset host rejected %s", filename)
	}
	io.Copy(io.Discard, r)
	url := "https://cdn.example.com/feedback_images/" + filename
	f.mu.Lock()
	f.uploaded = append(f.uploaded, url)
	f.mu.Unlock()
	return url, nil
}

func (f *fakeAssetStore) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, url)
	f.mu.Unlock()
	return nil
}

// fakeGitHubClient returns canned repository data and records created
// issues.
type fakeGitHubClient struct {
	repos      []model.GitHubRepo
	listErr    error
	getErr     error
	createErr  error
	issueURL   string
	lastOwner  string
	lastRepo   string
	lastIssue  driven.IssueRequest
	tokensSeen []string
}

func (f *fakeGitHubClient) ListUserRepos(_ context.Context, exclude map[int64]bool) ([]model.GitHubRepo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	repos := []model.GitHubRepo{}
	for _, r := range f.repos {
		if !exclude[r.ID] {
			repos = append(repos, r)
		}
	}
	return repos, nil
}

func (f *fakeGitHubClient) GetRepository(_ context.Context, owner, repo string) (*model.GitHubRepo, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, r := range f.repos {
		if r.FullName == owner+"/"+repo {
			return &r, nil
		}
	}
	return nil, driven.ErrGitHubRepoNotFound
}

func (f *fakeGitHubClient) CreateIssue(_ context.Context, owner, repo string, req driven.IssueRequest) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.lastOwner = owner
	f.lastRepo = repo
	f.lastIssue = req
	return f.issueURL, nil
}

func (f *fakeGitHubClient) factory(token string) driven.GitHubClient {
	f.tokensSeen = append(f.tokensSeen, token)
	return f
}

// --- Shared seed helpers ---

func seedLinkedUser(users *fakeUserStore, id string) {
	users.users[id] = model.User{
		ID:          id,
		Name:        "Owner " + id,
		Email:       id + "@example.com",
		GitHubID:    1000,
		GitHubLogin: "owner-" + id,
		GitHubToken: "gho_" + id,
	}
}

func seedSelectedRepo(repos *fakeRepoStore, id, userID string, ghID int64, fullName string) {
	repos.repos[id] = model.SelectedRepository{
		ID:           id,
		UserID:       userID,
		GitHubRepoID: ghID,
		Name:         fullName[strings.Index(fullName, "/")+1:],
		FullName:     fullName,
		HTMLURL:      "https://github.com/" + fullName,
	}
}

// pngBytes is a minimal buffer that sniffs as image/png.
func pngBytes(size int) []byte {
	data := make([]byte, size)
	copy(data, []byte("\x89PNG\r\n\x1a\n"))
	return data
}

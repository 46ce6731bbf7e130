// Package httphandler is the HTTP driving adapter serving the REST API.
package httphandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/undermod/gitback/internal/application"
	"github.com/undermod/gitback/internal/auth"
	"github.com/undermod/gitback/internal/domain/model"
	"github.com/undermod/gitback/internal/domain/port/driven"
)

const (
	oauthStateCookie = "gitback_oauth_state"

	// maxFormMemory bounds multipart intake: the five 5 MB attachments plus
	// form fields.
	maxFormMemory = 26 << 20
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	authSvc      *application.AuthService
	repoSvc      *application.RepoService
	feedbackSvc  *application.FeedbackService
	publishSvc   *application.PublishService
	dashboardSvc *application.DashboardService
	tokens       *auth.TokenService
	oauth        *auth.GitHubProvider
	secureCookie bool
	logger       *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. oauth may be
// nil when GitHub OAuth credentials are not configured.
func NewHandler(
	authSvc *application.AuthService,
	repoSvc *application.RepoService,
	feedbackSvc *application.FeedbackService,
	publishSvc *application.PublishService,
	dashboardSvc *application.DashboardService,
	tokens *auth.TokenService,
	oauth *auth.GitHubProvider,
	secureCookie bool,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		authSvc:      authSvc,
		repoSvc:      repoSvc,
		feedbackSvc:  feedbackSvc,
		publishSvc:   publishSvc,
		dashboardSvc: dashboardSvc,
		tokens:       tokens,
		oauth:        oauth,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/signup", h.Signup)
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("POST /api/v1/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/v1/auth/me", h.requireAuth(h.Me))
	mux.HandleFunc("GET /auth/github/login", h.GitHubLogin)
	mux.HandleFunc("GET /auth/github/callback", h.GitHubCallback)

	mux.HandleFunc("GET /api/v1/github/repos", h.requireAuth(h.ListAvailableRepos))

	mux.HandleFunc("GET /api/v1/repositories", h.requireAuth(h.ListRepos))
	mux.HandleFunc("POST /api/v1/repositories", h.requireAuth(h.AddRepo))
	mux.HandleFunc("GET /api/v1/repositories/{id}", h.requireAuth(h.GetRepo))
	mux.HandleFunc("PUT /api/v1/repositories/{id}", h.requireAuth(h.UpdateRepo))
	mux.HandleFunc("POST /api/v1/repositories/{id}/sync", h.requireAuth(h.SyncRepo))
	mux.HandleFunc("DELETE /api/v1/repositories/{id}", h.requireAuth(h.DeleteRepo))

	// Feedback intake is public: anyone with the repository id may submit.
	mux.HandleFunc("POST /api/v1/public/repositories/{id}/feedback", h.CreateFeedback)

	mux.HandleFunc("GET /api/v1/feedbacks", h.requireAuth(h.ListFeedback))
	mux.HandleFunc("POST /api/v1/feedbacks", h.requireAuth(h.CreateFeedback))
	mux.HandleFunc("GET /api/v1/feedbacks/{id}", h.requireAuth(h.GetFeedback))
	mux.HandleFunc("PUT /api/v1/feedbacks/{id}", h.requireAuth(h.UpdateFeedback))
	mux.HandleFunc("DELETE /api/v1/feedbacks/{id}", h.requireAuth(h.DeleteFeedback))
	mux.HandleFunc("POST /api/v1/feedbacks/{id}/publish", h.requireAuth(h.PublishFeedback))
	mux.HandleFunc("DELETE /api/v1/feedbacks/{id}/images/{imageID}", h.requireAuth(h.DeleteFeedbackImage))

	mux.HandleFunc("GET /api/v1/dashboard/cards", h.requireAuth(h.DashboardCards))
	mux.HandleFunc("GET /api/v1/dashboard/trend", h.requireAuth(h.DashboardTrend))
	mux.HandleFunc("GET /api/v1/dashboard/latest", h.requireAuth(h.DashboardLatest))

	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// --- Auth ---

// Signup creates an account and opens a session.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.authSvc.Signup(r.Context(), application.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeServiceError(w, "signup", err)
		return
	}

	if !h.openSession(w, user.ID) {
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(*user))
}

// Login verifies credentials and opens a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, "login", err)
		return
	}

	if !h.openSession(w, user.ID) {
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(*user))
}

// Logout clears the session cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authSvc.Me(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, "me", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(*user))
}

// GitHubLogin starts the OAuth flow: sets the CSRF state cookie and
// redirects to GitHub's authorization page.
func (h *Handler) GitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		writeError(w, http.StatusServiceUnavailable, "github oauth is not configured")
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/github",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.oauth.AuthURL(state), http.StatusFound)
}

// GitHubCallback completes the OAuth flow. With a live session the GitHub
// identity is linked to that account; without one, it signs the user in,
// creating an account on first contact.
func (h *Handler) GitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		writeError(w, http.StatusServiceUnavailable, "github oauth is not configured")
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		writeError(w, http.StatusBadRequest, "oauth state mismatch")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing oauth code")
		return
	}

	ghUser, token, err := h.oauth.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth exchange failed", "error", err)
		writeError(w, http.StatusBadGateway, "github authorization failed")
		return
	}

	var user *model.User
	if sessionUserID := h.sessionUserID(r); sessionUserID != "" {
		user, err = h.authSvc.LinkGitHub(r.Context(), sessionUserID, ghUser, token)
	} else {
		user, err = h.authSvc.UpsertFromGitHub(r.Context(), ghUser, token)
	}
	if err != nil {
		h.writeServiceError(w, "github callback", err)
		return
	}

	if !h.openSession(w, user.ID) {
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(*user))
}

// sessionUserID returns the user id of a valid session cookie, or "".
func (h *Handler) sessionUserID(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	userID, err := h.tokens.Validate(cookie.Value)
	if err != nil {
		return ""
	}
	return userID
}

// --- Repositories ---

// ListAvailableRepos returns the user's GitHub repositories not yet
// selected.
func (h *Handler) ListAvailableRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.repoSvc.ListAvailable(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, "list available repos", err)
		return
	}

	resp := make([]GitHubRepoResponse, 0, len(repos))
	for _, repo := range repos {
		resp = append(resp, toGitHubRepoResponse(repo))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListRepos returns one page of the user's selected repositories.
func (h *Handler) ListRepos(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)

	result, err := h.repoSvc.List(r.Context(), userIDFromContext(r.Context()), r.URL.Query().Get("search"), page)
	if err != nil {
		h.writeServiceError(w, "list repos", err)
		return
	}

	items := make([]RepoResponse, 0, len(result.Items))
	for _, repo := range result.Items {
		items = append(items, toRepoResponse(repo))
	}

	writeJSON(w, http.StatusOK, RepoPageResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		TotalPages: result.TotalPages,
		Page:       page,
	})
}

// AddRepo selects a repository. A payload carrying a GitHub repo id is used
// as-is; otherwise the full name is resolved against the GitHub API.
func (h *Handler) AddRepo(w http.ResponseWriter, r *http.Request) {
	var req AddRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := userIDFromContext(r.Context())

	var (
		repo *model.SelectedRepository
		err  error
	)
	if req.GitHubRepoID != 0 {
		gh := model.GitHubRepo{
			ID:              req.GitHubRepoID,
			Name:            req.Name,
			FullName:        req.FullName,
			Description:     req.Description,
			HTMLURL:         req.HTMLURL,
			Private:         req.Private,
			Language:        req.Language,
			StargazersCount: req.StargazersCount,
			ForksCount:      req.ForksCount,
		}
		if req.UpdatedAt != "" {
			if gh.UpdatedAt, err = time.Parse(time.RFC3339, req.UpdatedAt); err != nil {
				writeError(w, http.StatusBadRequest, "invalid updated_at timestamp")
				return
			}
		}
		repo, err = h.repoSvc.Add(r.Context(), userID, gh)
	} else {
		repo, err = h.repoSvc.AddByName(r.Context(), userID, req.FullName)
	}
	if err != nil {
		h.writeServiceError(w, "add repo", err)
		return
	}

	writeJSON(w, http.StatusCreated, toRepoResponse(*repo))
}

// GetRepo returns one selected repository.
func (h *Handler) GetRepo(w http.ResponseWriter, r *http.Request) {
	repo, err := h.repoSvc.Get(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, "get repo", err)
		return
	}
	writeJSON(w, http.StatusOK, toRepoResponse(*repo))
}

// UpdateRepo edits a selected repository's attributes.
func (h *Handler) UpdateRepo(w http.ResponseWriter, r *http.Request) {
	var req UpdateRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := userIDFromContext(r.Context())

	existing, err := h.repoSvc.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, "update repo", err)
		return
	}

	existing.Name = req.Name
	existing.FullName = req.FullName
	existing.Description = req.Description
	existing.HTMLURL = req.HTMLURL
	existing.Private = req.Private
	existing.Language = req.Language

	repo, err := h.repoSvc.Update(r.Context(), *existing)
	if err != nil {
		h.writeServiceError(w, "update repo", err)
		return
	}

	writeJSON(w, http.StatusOK, toRepoResponse(*repo))
}

// SyncRepo refreshes a selected repository from GitHub.
func (h *Handler) SyncRepo(w http.ResponseWriter, r *http.Request) {
	repo, err := h.repoSvc.Sync(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, "sync repo", err)
		return
	}
	writeJSON(w, http.StatusOK, toRepoResponse(*repo))
}

// DeleteRepo removes a selected repository and its feedback.
func (h *Handler) DeleteRepo(w http.ResponseWriter, r *http.Request) {
	if err := h.repoSvc.Delete(r.Context(), userIDFromContext(r.Context()), r.PathValue("id")); err != nil {
		h.writeServiceError(w, "delete repo", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Feedback ---

// CreateFeedback accepts a multipart submission with up to five image
// attachments under the "images" field. On the public route the repository
// id comes from the path; on the owner route from the repository_id field.
func (h *Handler) CreateFeedback(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormMemory)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	repoID := r.PathValue("id")
	if repoID == "" {
		repoID = r.FormValue("repository_id")
	}

	in := application.CreateFeedbackInput{
		RepositoryID: repoID,
		UserName:     r.FormValue("user_name"),
		UserEmail:    r.FormValue("user_email"),
		Title:        r.FormValue("title"),
		Content:      r.FormValue("content"),
		Type:         r.FormValue("type"),
	}

	files, ok := readUploads(w, r)
	if !ok {
		return
	}

	detail, err := h.feedbackSvc.Create(r.Context(), in, files)
	if err != nil {
		h.writeServiceError(w, "create feedback", err)
		return
	}

	writeJSON(w, http.StatusCreated, toFeedbackDetailResponse(*detail))
}

// ListFeedback returns one page of feedback across the user's repositories.
func (h *Handler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)

	result, err := h.feedbackSvc.List(r.Context(), userIDFromContext(r.Context()), r.URL.Query().Get("search"), page)
	if err != nil {
		h.writeServiceError(w, "list feedback", err)
		return
	}

	writeJSON(w, http.StatusOK, toFeedbackPageResponse(result, page))
}

// GetFeedback returns one feedback with attachments and rendered content.
func (h *Handler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	detail, err := h.feedbackSvc.Get(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, "get feedback", err)
		return
	}
	writeJSON(w, http.StatusOK, toFeedbackDetailResponse(*detail))
}

// UpdateFeedback edits a feedback during triage. A multipart body may carry
// replacement images; a JSON body edits the fields only.
func (h *Handler) UpdateFeedback(w http.ResponseWriter, r *http.Request) {
	var (
		req   application.UpdateFeedbackInput
		files []application.Upload
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormMemory)
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		req = application.UpdateFeedbackInput{
			Title:   r.FormValue("title"),
			Content: r.FormValue("content"),
			Type:    r.FormValue("type"),
			Status:  r.FormValue("status"),
		}
		var ok bool
		if files, ok = readUploads(w, r); !ok {
			return
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	detail, err := h.feedbackSvc.Update(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"), req, files)
	if err != nil {
		h.writeServiceError(w, "update feedback", err)
		return
	}

	writeJSON(w, http.StatusOK, toFeedbackDetailResponse(*detail))
}

// DeleteFeedback removes a feedback with its attachments.
func (h *Handler) DeleteFeedback(w http.ResponseWriter, r *http.Request) {
	if err := h.feedbackSvc.Delete(r.Context(), userIDFromContext(r.Context()), r.PathValue("id")); err != nil {
		h.writeServiceError(w, "delete feedback", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PublishFeedback converts a feedback into a GitHub issue.
func (h *Handler) PublishFeedback(w http.ResponseWriter, r *http.Request) {
	feedback, err := h.publishSvc.Publish(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, "publish feedback", err)
		return
	}
	writeJSON(w, http.StatusOK, toFeedbackResponse(*feedback))
}

// DeleteFeedbackImage removes one attachment from a feedback.
func (h *Handler) DeleteFeedbackImage(w http.ResponseWriter, r *http.Request) {
	err := h.feedbackSvc.DeleteImage(r.Context(),
		userIDFromContext(r.Context()), r.PathValue("id"), r.PathValue("imageID"))
	if err != nil {
		h.writeServiceError(w, "delete feedback image", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Dashboard ---

// DashboardCards returns the headline counters.
func (h *Handler) DashboardCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.dashboardSvc.Cards(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, "dashboard cards", err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

// DashboardTrend returns the trailing 12-month feedback trend.
func (h *Handler) DashboardTrend(w http.ResponseWriter, r *http.Request) {
	trend, err := h.dashboardSvc.Trend(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, "dashboard trend", err)
		return
	}

	resp := make([]TrendPointResponse, 0, len(trend))
	for _, point := range trend {
		resp = append(resp, TrendPointResponse{Month: point.Month, Count: point.Count})
	}

	writeJSON(w, http.StatusOK, resp)
}

// DashboardLatest returns the 5 most recently updated feedback items.
func (h *Handler) DashboardLatest(w http.ResponseWriter, r *http.Request) {
	latest, err := h.dashboardSvc.Latest(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, "dashboard latest", err)
		return
	}

	resp := make([]FeedbackResponse, 0, len(latest))
	for _, it := range latest {
		fb := toFeedbackResponse(it.Feedback)
		repo := toRepoResponse(it.Repository)
		fb.Repository = &repo
		resp = append(resp, fb)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// --- Helpers ---

// openSession issues a session token cookie. Returns false after writing an
// error response.
func (h *Handler) openSession(w http.ResponseWriter, userID string) bool {
	token, err := h.tokens.Generate(userID)
	if err != nil {
		h.logger.Error("failed to generate session token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	return true
}

// readUploads collects the multipart "images" parts. Returns false after
// writing an error response.
func readUploads(w http.ResponseWriter, r *http.Request) ([]application.Upload, bool) {
	if r.MultipartForm == nil {
		return nil, true
	}

	var files []application.Upload
	for _, header := range r.MultipartForm.File["images"] {
		file, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable attachment")
			return nil, false
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable attachment")
			return nil, false
		}
		files = append(files, application.Upload{Filename: header.Filename, Data: data})
	}
	return files, true
}

// parsePage reads the page query parameter ("page", or "currentPage" as the
// form pagers send it), defaulting to 1.
func parsePage(r *http.Request) int {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		raw = r.URL.Query().Get("currentPage")
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// writeServiceError maps service errors to HTTP responses. Unknown errors
// are logged and become a generic 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, application.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, driven.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, driven.ErrRepoAlreadySelected):
		writeError(w, http.StatusConflict, "repository already selected")
	case errors.Is(err, driven.ErrFeedbackAlreadySubmitted):
		writeError(w, http.StatusConflict, "feedback was already submitted as an issue")
	case errors.Is(err, driven.ErrGitHubRepoNotFound):
		writeError(w, http.StatusNotFound, "no repository with this owner or name was found")
	case errors.Is(err, driven.ErrGitHubUnavailable):
		// Upstream status text and body reach the caller.
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, driven.ErrRepoNotFound):
		writeError(w, http.StatusNotFound, "repository not found")
	case errors.Is(err, driven.ErrFeedbackNotFound):
		writeError(w, http.StatusNotFound, "feedback not found")
	case errors.Is(err, driven.ErrImageNotFound):
		writeError(w, http.StatusNotFound, "image not found")
	case errors.Is(err, driven.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, driven.ErrNoGitHubToken):
		writeError(w, http.StatusBadRequest, "github account not connected")
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

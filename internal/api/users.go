package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"snapdocs/internal/database"
	custom_errors "snapdocs/internal/errors"
	"snapdocs/internal/model"
)

const (
	defaultPullRequestLimit = 50
	maxPullRequestLimit     = 100
)

type upsertUserRequest struct {
	Email string `json:"email"`
}

type installationRequest struct {
	InstallationID int64 `json:"installationId"`
}

type syncStatusResponse struct {
	LastSyncAt pgtype.Timestamptz `json:"lastSyncAt"`
	IsStale    bool               `json:"isStale"`
	SyncQueued bool               `json:"syncQueued"`
}

// loadUser fetches the user named in the path, writing the error response
// itself when it fails.
func (h *Handler) loadUser(w http.ResponseWriter, r *http.Request) (database.User, bool) {
	userID := chi.URLParam(r, "userID")
	user, err := h.db.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(database.NotFound(err), custom_errors.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return database.User{}, false
		}
		h.logger.Error("Failed to get user", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return database.User{}, false
	}
	return user, true
}

// upsertUser records a user on first authenticated request.
// PUT /v1/users/{userID}
func (h *Handler) upsertUser(w http.ResponseWriter, r *http.Request) {
	var req upsertUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		respondWithError(w, http.StatusBadRequest, "Request body must contain an email")
		return
	}

	user, err := h.db.UpsertUser(r.Context(), database.UpsertUserParams{
		ID:    chi.URLParam(r, "userID"),
		Email: req.Email,
	})
	if err != nil {
		h.logger.Error("Failed to upsert user", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// linkInstallation stores the user's installation credential and queues an
// initial repository sync.
// PUT /v1/users/{userID}/installation
func (h *Handler) linkInstallation(w http.ResponseWriter, r *http.Request) {
	var req installationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InstallationID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Request body must contain a positive installationId")
		return
	}
	h.setInstallation(w, r, database.Int8(req.InstallationID))
}

// unlinkInstallation clears the user's installation credential.
// DELETE /v1/users/{userID}/installation
func (h *Handler) unlinkInstallation(w http.ResponseWriter, r *http.Request) {
	h.setInstallation(w, r, pgtype.Int8{})
}

func (h *Handler) setInstallation(w http.ResponseWriter, r *http.Request, installationID pgtype.Int8) {
	userID := chi.URLParam(r, "userID")
	user, err := h.db.SetUserInstallation(r.Context(), database.SetUserInstallationParams{
		ID:             userID,
		InstallationID: installationID,
	})
	if err != nil {
		if errors.Is(database.NotFound(err), custom_errors.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("Failed to set installation", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if installationID.Valid {
		if _, err := h.queue.Enqueue(r.Context(), model.JobSyncRepositories, model.SyncRepositoriesPayload{UserID: userID}); err != nil {
			h.logger.Error("Failed to enqueue initial sync", "user_id", userID, "error", err)
		}
	}
	respondWithJSON(w, http.StatusOK, user)
}

// listRepositories returns the user's mirrored repositories.
// GET /v1/users/{userID}/repositories
func (h *Handler) listRepositories(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	queued := h.syncer.TriggerIfStale(r.Context(), user)

	repos, err := h.db.ListRepositoriesByUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("Failed to list repositories", "user_id", user.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if repos == nil {
		repos = []database.Repository{}
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"repositories": repos, "syncQueued": queued})
}

// listPullRequests returns the user's most recent pull requests.
// GET /v1/users/{userID}/pull-requests?limit=N
func (h *Handler) listPullRequests(w http.ResponseWriter, r *http.Request) {
	limit := defaultPullRequestLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 || n > maxPullRequestLimit {
			respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 100.")
			return
		}
		limit = n
	}

	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	queued := h.syncer.TriggerIfStale(r.Context(), user)

	prs, err := h.db.ListPullRequestsByUser(r.Context(), database.ListPullRequestsByUserParams{
		UserID: user.ID,
		Limit:  int32(limit),
	})
	if err != nil {
		h.logger.Error("Failed to list pull requests", "user_id", user.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if prs == nil {
		prs = []database.ListPullRequestsByUserRow{}
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"pullRequests": prs, "syncQueued": queued})
}

// userStats returns repository, pull request and documentation totals.
// GET /v1/users/{userID}/stats
func (h *Handler) userStats(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	queued := h.syncer.TriggerIfStale(r.Context(), user)

	stats, err := h.db.GetUserStats(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("Failed to get user stats", "user_id", user.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"totalRepos": stats.TotalRepos,
		"totalPrs":   stats.TotalPrs,
		"totalDocs":  stats.TotalDocs,
		"lastSyncAt": user.LastSyncAt,
		"syncQueued": queued,
	})
}

// syncStatus reports when the user last synced.
// GET /v1/users/{userID}/sync-status
func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, syncStatusResponse{
		LastSyncAt: user.LastSyncAt,
		IsStale:    h.syncer.Stale(user),
		SyncQueued: h.syncer.TriggerIfStale(r.Context(), user),
	})
}

// triggerSync queues a repository sync on demand.
// POST /v1/users/{userID}/sync
func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	if !user.InstallationID.Valid {
		respondWithError(w, http.StatusConflict, "User has no linked installation")
		return
	}

	jobID, err := h.queue.Enqueue(r.Context(), model.JobSyncRepositories, model.SyncRepositoriesPayload{UserID: user.ID})
	if err != nil {
		h.logger.Error("Failed to enqueue sync", "user_id", user.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

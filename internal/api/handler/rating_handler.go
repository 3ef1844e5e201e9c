package handler

import (
	"net/http"
	"strconv"

	"codequest/internal/api/middleware"
	"codequest/internal/app/service"
	"codequest/internal/common"

	"github.com/go-chi/chi/v5"
)

type RatingHandler struct {
	ratingService *service.RatingService
}

func NewRatingHandler(rs *service.RatingService) *RatingHandler {
	return &RatingHandler{ratingService: rs}
}

func (h *RatingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listRatings)
	r.Get("/leaderboard/{languageID}", h.leaderboard)

	r.Group(func(authRouter chi.Router) {
		authRouter.Use(middleware.Authenticator)
		authRouter.Get("/user/{userID}/language/{languageID}", h.getUserLanguageRating)
	})
}

func (h *RatingHandler) listRatings(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	languageID := r.URL.Query().Get("language_id")

	var ratings interface{}
	var err error
	switch {
	case userID != "":
		ratings, err = h.ratingService.ListByUser(r.Context(), userID)
	case languageID != "":
		ratings, err = h.ratingService.ListByLanguage(r.Context(), languageID)
	default:
		ratings, err = h.ratingService.List(r.Context())
	}
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, ratings)
}

// getUserLanguageRating creates the rating at the initial score when the
// pair has none yet, so a fresh learner sees a rating instead of a 404.
func (h *RatingHandler) getUserLanguageRating(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	languageID := chi.URLParam(r, "languageID")

	rating, err := h.ratingService.GetOrCreate(r.Context(), userID, languageID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, rating)
}

func (h *RatingHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	languageID := chi.URLParam(r, "languageID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	ratings, err := h.ratingService.Leaderboard(r.Context(), languageID, limit)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, ratings)
}

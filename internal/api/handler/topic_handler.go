package handler

import (
	"encoding/json"
	"net/http"

	"codequest/internal/api/middleware"
	"codequest/internal/app/service"
	"codequest/internal/common"
	"codequest/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type TopicHandler struct {
	topicService    *service.TopicService
	questionService *service.QuestionService
	ratingService   *service.RatingService
}

func NewTopicHandler(ts *service.TopicService, qs *service.QuestionService, rs *service.RatingService) *TopicHandler {
	return &TopicHandler{topicService: ts, questionService: qs, ratingService: rs}
}

func (h *TopicHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listTopics)
	r.Get("/{topicID}", h.getTopic)

	r.Group(func(authRouter chi.Router) {
		authRouter.Use(middleware.Authenticator)
		authRouter.Get("/{topicID}/question", h.getQuestionForTopic)
	})

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(middleware.Authenticator)
		adminRouter.Use(middleware.AdminOnly)
		adminRouter.Post("/", h.createTopic)
	})
}

func (h *TopicHandler) listTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.topicService.List(r.Context(), r.URL.Query().Get("language_id"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, topics)
}

func (h *TopicHandler) getTopic(w http.ResponseWriter, r *http.Request) {
	topic, err := h.topicService.Get(r.Context(), chi.URLParam(r, "topicID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, topic)
}

// getQuestionForTopic hands the caller a practice question for the topic.
// Without an explicit difficulty the caller's rating in the topic's language
// picks one. The question may be ephemeral (empty ID) when freshly generated.
func (h *TopicHandler) getQuestionForTopic(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	topicID := chi.URLParam(r, "topicID")

	difficulty := model.Difficulty(r.URL.Query().Get("difficulty"))
	if difficulty == "" {
		topic, err := h.topicService.Get(r.Context(), topicID)
		if err != nil {
			common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
			return
		}
		rating, err := h.ratingService.GetOrCreate(r.Context(), userID, topic.LanguageID)
		if err != nil {
			common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
			return
		}
		difficulty = service.DifficultyFor(rating.Score)
	}

	question, err := h.questionService.GetOrGenerate(r.Context(), topicID, difficulty)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, question)
}

func (h *TopicHandler) createTopic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		LanguageID  string `json:"language_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	topic, err := h.topicService.Create(r.Context(), req.Name, req.Description, req.LanguageID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, topic)
}

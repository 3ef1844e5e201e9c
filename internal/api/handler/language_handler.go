package handler

import (
	"encoding/json"
	"net/http"

	"codequest/internal/api/middleware"
	"codequest/internal/app/service"
	"codequest/internal/common"

	"github.com/go-chi/chi/v5"
)

type LanguageHandler struct {
	languageService *service.LanguageService
}

func NewLanguageHandler(ls *service.LanguageService) *LanguageHandler {
	return &LanguageHandler{languageService: ls}
}

func (h *LanguageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listLanguages)
	r.Get("/{languageID}", h.getLanguage)

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(middleware.Authenticator)
		adminRouter.Use(middleware.AdminOnly)
		adminRouter.Post("/", h.createLanguage)
	})
}

func (h *LanguageHandler) listLanguages(w http.ResponseWriter, r *http.Request) {
	languages, err := h.languageService.List(r.Context())
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, languages)
}

func (h *LanguageHandler) getLanguage(w http.ResponseWriter, r *http.Request) {
	language, err := h.languageService.Get(r.Context(), chi.URLParam(r, "languageID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, language)
}

func (h *LanguageHandler) createLanguage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	language, err := h.languageService.Create(r.Context(), req.Name, req.Slug)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, language)
}

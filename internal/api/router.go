package api

import (
	"net/http"
	"time"

	"codequest/internal/api/handler"
	"codequest/internal/app/service"
	"codequest/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	authService *service.AuthService,
	languageService *service.LanguageService,
	topicService *service.TopicService,
	questionService *service.QuestionService,
	submissionService *service.SubmissionService,
	ratingService *service.RatingService,
	courseService *service.CourseService,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Verifies a bearer token when present and puts claims in context.
	// Routes that require auth add middleware.Authenticator on top.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		authHandler := handler.NewAuthHandler(authService)
		v1.Group(func(publicAuth chi.Router) {
			authHandler.RegisterRoutes(publicAuth)
		})

		languageHandler := handler.NewLanguageHandler(languageService)
		v1.Route("/languages", languageHandler.RegisterRoutes)

		topicHandler := handler.NewTopicHandler(topicService, questionService, ratingService)
		v1.Route("/topics", topicHandler.RegisterRoutes)

		questionHandler := handler.NewQuestionHandler(questionService)
		v1.Route("/questions", questionHandler.RegisterRoutes)

		submissionHandler := handler.NewSubmissionHandler(submissionService)
		v1.Route("/submissions", submissionHandler.RegisterRoutes)

		ratingHandler := handler.NewRatingHandler(ratingService)
		v1.Route("/ratings", ratingHandler.RegisterRoutes)

		courseHandler := handler.NewCourseHandler(courseService)
		v1.Route("/courses", courseHandler.RegisterRoutes)
	})

	return r
}

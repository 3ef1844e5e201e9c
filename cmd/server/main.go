package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codequest/internal/api"
	"codequest/internal/app/seed"
	"codequest/internal/app/service"
	"codequest/internal/app/worker"
	"codequest/internal/common/logger"
	"codequest/internal/common/security"
	"codequest/internal/domain/repository"
	"codequest/internal/platform/completion"
	"codequest/internal/platform/config"
	"codequest/internal/platform/database"
	"codequest/internal/platform/queue"
)

func main() {
	config.Load()
	log := logger.NewNamedLogger("server")
	defer logger.Sync()
	log.Info("Configuration loaded")

	security.InitJWT()

	database.Connect()
	defer database.Close()
	log.Info("Database connected")

	queue.ConnectRedis()
	defer queue.CloseRedis()
	log.Info("Redis connected")

	completions := completion.NewClient(completion.Options{
		APIKey:  config.AppConfig.OpenAIAPIKey,
		BaseURL: config.AppConfig.OpenAIBaseURL,
		Model:   config.AppConfig.OpenAIModel,
		Timeout: config.AppConfig.CompletionTimeout,
	})

	userRepo := repository.NewPgUserRepository(database.DB)
	languageRepo := repository.NewPgLanguageRepository(database.DB)
	topicRepo := repository.NewPgTopicRepository(database.DB)
	questionRepo := repository.NewPgQuestionRepository(database.DB)
	submissionRepo := repository.NewPgSubmissionRepository(database.DB)
	ratingRepo := repository.NewPgRatingRepository(database.DB)
	jobRepo := repository.NewPgEvaluationJobRepository(database.DB)
	courseRepo := repository.NewPgCourseRepository(database.DB)

	authService := service.NewAuthService(userRepo)
	languageService := service.NewLanguageService(languageRepo)
	topicService := service.NewTopicService(topicRepo, languageRepo)
	questionService := service.NewQuestionService(questionRepo, topicRepo, languageRepo, completions)
	ratingService := service.NewRatingService(ratingRepo)
	jobService := service.NewEvaluationJobService(jobRepo, queue.RDB, config.AppConfig.EvaluationQueueName)
	submissionService := service.NewSubmissionService(submissionRepo, languageRepo, questionService, jobService, database.DB)
	courseService := service.NewCourseService(courseRepo, userRepo)

	evaluationWorker := worker.NewEvaluationWorker(
		queue.RDB,
		jobRepo,
		submissionRepo,
		questionRepo,
		languageRepo,
		ratingService,
		completions,
		config.AppConfig.EvaluationQueueName,
		config.AppConfig.EvaluationDeadLetterName,
		config.AppConfig.EvaluationMaxAttempts,
	)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go evaluationWorker.Start(workerCtx)
	log.Info("Evaluation worker started")

	if config.AppConfig.RunSeeder {
		seeder := seed.NewSeeder(
			languageService,
			topicService,
			questionService,
			questionRepo,
			completions,
			config.AppConfig.SeedTopicsPerLanguage,
		)
		go func() {
			if err := seeder.Run(workerCtx); err != nil {
				log.Errorf("Seeding failed: %v", err)
			}
		}()
	}

	router := api.NewRouter(authService, languageService, topicService, questionService, submissionService, ratingService, courseService)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Infof("Server starting on port %s", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", config.AppConfig.APIPort, err)
		}
	}()

	<-stop

	log.Info("Shutting down server...")
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Info("Server and worker stopped gracefully")
}

package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"codequest/internal/common"
	"codequest/internal/common/logger"
	"codequest/internal/domain/model"
	"codequest/internal/domain/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Elo-like rating constants.
const ratingKFactor = 32.0

var difficultyMultipliers = map[model.Difficulty]float64{
	model.DifficultyEasy:   0.8,
	model.DifficultyMedium: 1.0,
	model.DifficultyHard:   1.5,
}

const DefaultLeaderboardLimit = 10

type RatingService struct {
	ratingRepo repository.RatingRepository
	log        *zap.SugaredLogger
	now        func() time.Time

	// Updates to the same (userID, languageID) pair are serialized so that
	// concurrent submission evaluations cannot lose a read-modify-write.
	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

func NewRatingService(ratingRepo repository.RatingRepository) *RatingService {
	return &RatingService{
		ratingRepo: ratingRepo,
		log:        logger.NewNamedLogger("rating-service"),
		now:        time.Now,
		keyLocks:   make(map[string]*sync.Mutex),
	}
}

func (s *RatingService) lockFor(userID, languageID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "/" + languageID
	lock, ok := s.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.keyLocks[key] = lock
	}
	return lock
}

// GetOrCreate returns the rating for a (user, language) pair, inserting a
// fresh one with the initial score on first access.
func (s *RatingService) GetOrCreate(ctx context.Context, userID, languageID string) (*model.Rating, error) {
	rating, err := s.ratingRepo.FindByUserAndLanguage(ctx, userID, languageID)
	if err == nil {
		return rating, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	rating = &model.Rating{
		ID:          uuid.NewString(),
		UserID:      userID,
		LanguageID:  languageID,
		Score:       model.InitialRatingScore,
		LastUpdated: s.now(),
	}
	if err := s.ratingRepo.Create(ctx, rating); err != nil {
		if errors.Is(err, common.ErrConflict) {
			// Lost a create race; the winner's row is authoritative.
			return s.ratingRepo.FindByUserAndLanguage(ctx, userID, languageID)
		}
		return nil, err
	}
	s.log.Infof("Created new rating for user %s in language %s", userID, languageID)
	return rating, nil
}

// Update applies one attempt outcome to the user's rating for a language and
// returns the persisted result. A success earns round(K*multiplier) points;
// a failure costs half that, with the score clamped at zero.
func (s *RatingService) Update(ctx context.Context, userID, languageID string, difficulty model.Difficulty, success bool, executionTime float64) (*model.Rating, error) {
	lock := s.lockFor(userID, languageID)
	lock.Lock()
	defer lock.Unlock()

	rating, err := s.GetOrCreate(ctx, userID, languageID)
	if err != nil {
		return nil, err
	}

	multiplier, ok := difficultyMultipliers[difficulty]
	if !ok {
		multiplier = 1.0
	}

	rating.TotalAttempts++
	stats := rating.DifficultyBreakdown.Stats(difficulty)
	stats.Attempted++

	if success {
		rating.ProblemsSolved++
		stats.Solved++

		// Running mean over successful attempts only.
		oldSum := rating.AverageTime * float64(rating.ProblemsSolved-1)
		rating.AverageTime = (oldSum + executionTime) / float64(rating.ProblemsSolved)

		change := int(math.Round(ratingKFactor * multiplier))
		rating.Score += change
		s.log.Infof("User %s solved a %s problem, new rating %d (+%d)", userID, difficulty, rating.Score, change)
	} else {
		change := int(math.Round(ratingKFactor * multiplier / 2))
		rating.Score -= change
		if rating.Score < 0 {
			rating.Score = 0
		}
		s.log.Infof("User %s failed a %s problem, new rating %d (-%d)", userID, difficulty, rating.Score, change)
	}

	rating.Accuracy = float64(rating.ProblemsSolved) / float64(rating.TotalAttempts) * 100
	rating.LastUpdated = s.now()

	if err := s.ratingRepo.Update(ctx, rating); err != nil {
		return nil, err
	}
	return rating, nil
}

// DifficultyFor maps a score to the recommended question difficulty.
func DifficultyFor(score int) model.Difficulty {
	switch {
	case score < 1200:
		return model.DifficultyEasy
	case score < 1800:
		return model.DifficultyMedium
	default:
		return model.DifficultyHard
	}
}

// Leaderboard returns the top ratings for a language, descending by score.
func (s *RatingService) Leaderboard(ctx context.Context, languageID string, limit int) ([]model.Rating, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	return s.ratingRepo.ListByLanguage(ctx, languageID, limit)
}

func (s *RatingService) Get(ctx context.Context, id string) (*model.Rating, error) {
	return s.ratingRepo.FindByID(ctx, id)
}

func (s *RatingService) FindForUserAndLanguage(ctx context.Context, userID, languageID string) (*model.Rating, error) {
	return s.ratingRepo.FindByUserAndLanguage(ctx, userID, languageID)
}

func (s *RatingService) ListByUser(ctx context.Context, userID string) ([]model.Rating, error) {
	return s.ratingRepo.ListByUser(ctx, userID)
}

func (s *RatingService) ListByLanguage(ctx context.Context, languageID string) ([]model.Rating, error) {
	return s.ratingRepo.ListByLanguage(ctx, languageID, 0)
}

func (s *RatingService) List(ctx context.Context) ([]model.Rating, error) {
	return s.ratingRepo.List(ctx)
}

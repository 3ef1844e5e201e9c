package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"codequest/internal/common"
	"codequest/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRatingRepo struct {
	ratings      map[string]*model.Rating // keyed by userID+"/"+languageID
	missingUsers map[string]bool
}

func newFakeRatingRepo() *fakeRatingRepo {
	return &fakeRatingRepo{
		ratings:      make(map[string]*model.Rating),
		missingUsers: make(map[string]bool),
	}
}

func (r *fakeRatingRepo) key(userID, languageID string) string {
	return userID + "/" + languageID
}

func (r *fakeRatingRepo) Create(ctx context.Context, rating *model.Rating) error {
	// Mirrors the foreign-key mapping in the Postgres implementation.
	if r.missingUsers[rating.UserID] {
		return common.Errorf("user or language for rating does not exist: %w", common.ErrNotFound)
	}
	k := r.key(rating.UserID, rating.LanguageID)
	if _, exists := r.ratings[k]; exists {
		return common.ErrConflict
	}
	clone := *rating
	r.ratings[k] = &clone
	return nil
}

func (r *fakeRatingRepo) Update(ctx context.Context, rating *model.Rating) error {
	k := r.key(rating.UserID, rating.LanguageID)
	if _, exists := r.ratings[k]; !exists {
		return common.ErrNotFound
	}
	clone := *rating
	r.ratings[k] = &clone
	return nil
}

func (r *fakeRatingRepo) FindByID(ctx context.Context, id string) (*model.Rating, error) {
	for _, rating := range r.ratings {
		if rating.ID == id {
			clone := *rating
			return &clone, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeRatingRepo) FindByUserAndLanguage(ctx context.Context, userID, languageID string) (*model.Rating, error) {
	rating, ok := r.ratings[r.key(userID, languageID)]
	if !ok {
		return nil, common.ErrNotFound
	}
	clone := *rating
	return &clone, nil
}

func (r *fakeRatingRepo) ListByUser(ctx context.Context, userID string) ([]model.Rating, error) {
	var out []model.Rating
	for _, rating := range r.ratings {
		if rating.UserID == userID {
			out = append(out, *rating)
		}
	}
	return out, nil
}

func (r *fakeRatingRepo) ListByLanguage(ctx context.Context, languageID string, limit int) ([]model.Rating, error) {
	var out []model.Rating
	for _, rating := range r.ratings {
		if rating.LanguageID == languageID {
			out = append(out, *rating)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRatingRepo) List(ctx context.Context) ([]model.Rating, error) {
	var out []model.Rating
	for _, rating := range r.ratings {
		out = append(out, *rating)
	}
	return out, nil
}

func newTestRatingService(repo *fakeRatingRepo) *RatingService {
	s := NewRatingService(repo)
	s.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestGetOrCreateStartsAtInitialScore(t *testing.T) {
	repo := newFakeRatingRepo()
	s := newTestRatingService(repo)

	rating, err := s.GetOrCreate(context.Background(), "user-1", "lang-1")
	require.NoError(t, err)
	assert.Equal(t, model.InitialRatingScore, rating.Score)
	assert.Equal(t, 0, rating.TotalAttempts)
	assert.NotEmpty(t, rating.ID)

	again, err := s.GetOrCreate(context.Background(), "user-1", "lang-1")
	require.NoError(t, err)
	assert.Equal(t, rating.ID, again.ID)
}

func TestGetOrCreateUnknownUserIsNotFound(t *testing.T) {
	repo := newFakeRatingRepo()
	repo.missingUsers["ghost"] = true
	s := newTestRatingService(repo)

	_, err := s.GetOrCreate(context.Background(), "ghost", "lang-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestUpdateScoreDeltas(t *testing.T) {
	tests := []struct {
		name       string
		difficulty model.Difficulty
		success    bool
		wantScore  int
	}{
		{"easy success", model.DifficultyEasy, true, 1026},
		{"medium success", model.DifficultyMedium, true, 1032},
		{"hard success", model.DifficultyHard, true, 1048},
		{"easy fail", model.DifficultyEasy, false, 987},
		{"medium fail", model.DifficultyMedium, false, 984},
		{"hard fail", model.DifficultyHard, false, 976},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestRatingService(newFakeRatingRepo())
			rating, err := s.Update(context.Background(), "user-1", "lang-1", tt.difficulty, tt.success, 5.0)
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, rating.Score)
			assert.Equal(t, 1, rating.TotalAttempts)
		})
	}
}

func TestUpdateScoreClampedAtZero(t *testing.T) {
	s := newTestRatingService(newFakeRatingRepo())

	var rating *model.Rating
	var err error
	// 1000 / 24 per hard failure: the 42nd failure would go negative.
	for i := 0; i < 50; i++ {
		rating, err = s.Update(context.Background(), "user-1", "lang-1", model.DifficultyHard, false, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, rating.Score)
	assert.Equal(t, 50, rating.TotalAttempts)
}

func TestUpdateTracksAccuracyAndBreakdown(t *testing.T) {
	s := newTestRatingService(newFakeRatingRepo())
	ctx := context.Background()

	rating, err := s.Update(ctx, "user-1", "lang-1", model.DifficultyHard, true, 5.0)
	require.NoError(t, err)
	assert.Equal(t, 1048, rating.Score)
	assert.Equal(t, 1, rating.ProblemsSolved)
	assert.InDelta(t, 5.0, rating.AverageTime, 1e-9)
	assert.InDelta(t, 100.0, rating.Accuracy, 1e-9)
	assert.Equal(t, 1, rating.DifficultyBreakdown.Hard.Attempted)
	assert.Equal(t, 1, rating.DifficultyBreakdown.Hard.Solved)

	rating, err = s.Update(ctx, "user-1", "lang-1", model.DifficultyHard, false, 0)
	require.NoError(t, err)
	assert.Equal(t, 1024, rating.Score)
	assert.Equal(t, 1, rating.ProblemsSolved)
	assert.Equal(t, 2, rating.TotalAttempts)
	assert.InDelta(t, 50.0, rating.Accuracy, 1e-9)
	assert.Equal(t, 2, rating.DifficultyBreakdown.Hard.Attempted)
	assert.Equal(t, 1, rating.DifficultyBreakdown.Hard.Solved)
	// Failures do not move the successful-run mean.
	assert.InDelta(t, 5.0, rating.AverageTime, 1e-9)
}

func TestUpdateAverageTimeIsRunningMean(t *testing.T) {
	s := newTestRatingService(newFakeRatingRepo())
	ctx := context.Background()

	_, err := s.Update(ctx, "user-1", "lang-1", model.DifficultyEasy, true, 2.0)
	require.NoError(t, err)
	rating, err := s.Update(ctx, "user-1", "lang-1", model.DifficultyEasy, true, 4.0)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, rating.AverageTime, 1e-9)
}

func TestDifficultyForBoundaries(t *testing.T) {
	assert.Equal(t, model.DifficultyEasy, DifficultyFor(0))
	assert.Equal(t, model.DifficultyEasy, DifficultyFor(1199))
	assert.Equal(t, model.DifficultyMedium, DifficultyFor(1200))
	assert.Equal(t, model.DifficultyMedium, DifficultyFor(1799))
	assert.Equal(t, model.DifficultyHard, DifficultyFor(1800))
	assert.Equal(t, model.DifficultyHard, DifficultyFor(2500))
}

func TestLeaderboardDefaultsLimit(t *testing.T) {
	repo := newFakeRatingRepo()
	s := newTestRatingService(repo)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		userID := "user-" + string(rune('a'+i))
		_, err := s.Update(ctx, userID, "lang-1", model.DifficultyEasy, true, 1.0)
		require.NoError(t, err)
	}

	ratings, err := s.Leaderboard(ctx, "lang-1", 0)
	require.NoError(t, err)
	assert.Len(t, ratings, DefaultLeaderboardLimit)
}

package service

import (
	"context"
	"encoding/json"

	"codequest/internal/common"
	"codequest/internal/common/logger"
	"codequest/internal/domain/model"
	"codequest/internal/domain/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CourseService struct {
	courseRepo repository.CourseRepository
	userRepo   repository.UserRepository
	log        *zap.SugaredLogger
}

func NewCourseService(courseRepo repository.CourseRepository, userRepo repository.UserRepository) *CourseService {
	return &CourseService{
		courseRepo: courseRepo,
		userRepo:   userRepo,
		log:        logger.NewNamedLogger("course-service"),
	}
}

type CreateCourseRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Thumbnail   *string  `json:"thumbnail,omitempty"`
	IsPublished bool     `json:"is_published"`
	Duration    *string  `json:"duration,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// UpdateCourseRequest carries a partial update; nil fields keep their current
// value.
type UpdateCourseRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Thumbnail   *string   `json:"thumbnail,omitempty"`
	IsPublished *bool     `json:"is_published,omitempty"`
	Duration    *string   `json:"duration,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

type CreateCourseModuleRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Position    int             `json:"position"`
	IsPublished bool            `json:"is_published"`
	Content     json.RawMessage `json:"content,omitempty"`
}

func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest, instructorID string) (*model.Course, error) {
	if req.Title == "" || req.Description == "" {
		return nil, common.Errorf("course title and description are required: %w", common.ErrBadRequest)
	}
	if _, err := s.userRepo.FindByID(ctx, instructorID); err != nil {
		return nil, common.Errorf("instructor not found: %w", err)
	}

	course := &model.Course{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Description:  req.Description,
		Thumbnail:    req.Thumbnail,
		IsPublished:  req.IsPublished,
		Duration:     req.Duration,
		Tags:         req.Tags,
		InstructorID: instructorID,
	}
	if err := s.courseRepo.Create(ctx, course); err != nil {
		return nil, err
	}
	s.log.Infof("Course %q created by instructor %s", course.Title, instructorID)
	return course, nil
}

func (s *CourseService) Get(ctx context.Context, id string) (*model.Course, error) {
	return s.courseRepo.FindByID(ctx, id)
}

func (s *CourseService) List(ctx context.Context) ([]model.Course, error) {
	return s.courseRepo.List(ctx)
}

// Update applies a partial edit. Only the course's own instructor may edit it.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest, callerID string) (*model.Course, error) {
	course, err := s.courseRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if course.InstructorID != callerID {
		return nil, common.Errorf("only the course instructor may update it: %w", common.ErrForbidden)
	}

	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.Thumbnail != nil {
		course.Thumbnail = req.Thumbnail
	}
	if req.IsPublished != nil {
		course.IsPublished = *req.IsPublished
	}
	if req.Duration != nil {
		course.Duration = req.Duration
	}
	if req.Tags != nil {
		course.Tags = *req.Tags
	}
	if course.Title == "" || course.Description == "" {
		return nil, common.Errorf("course title and description cannot be empty: %w", common.ErrBadRequest)
	}

	if err := s.courseRepo.Update(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) Delete(ctx context.Context, id, callerID string) error {
	course, err := s.courseRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if course.InstructorID != callerID {
		return common.Errorf("only the course instructor may delete it: %w", common.ErrForbidden)
	}
	return s.courseRepo.Delete(ctx, id)
}

// Enroll adds the user to the course. Enrolling twice is a no-op that returns
// the course unchanged.
func (s *CourseService) Enroll(ctx context.Context, courseID, userID string) (*model.Course, error) {
	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	enrolled, err := s.courseRepo.IsEnrolled(ctx, courseID, userID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		return course, nil
	}

	if err := s.courseRepo.Enroll(ctx, courseID, userID); err != nil {
		if isConflict(err) {
			// Lost an enroll race; the membership exists either way.
			return course, nil
		}
		return nil, err
	}
	s.log.Infof("User %s enrolled in course %q", userID, course.Title)
	course.EnrollmentCount++
	return course, nil
}

func (s *CourseService) EnrolledCourses(ctx context.Context, userID string) ([]model.Course, error) {
	return s.courseRepo.ListEnrolledByUser(ctx, userID)
}

// AddModule appends a content module to a course owned by the caller. A zero
// position places the module after the existing ones.
func (s *CourseService) AddModule(ctx context.Context, courseID string, req CreateCourseModuleRequest, callerID string) (*model.CourseModule, error) {
	if req.Title == "" {
		return nil, common.Errorf("module title is required: %w", common.ErrBadRequest)
	}
	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.InstructorID != callerID {
		return nil, common.Errorf("only the course instructor may add modules: %w", common.ErrForbidden)
	}

	position := req.Position
	if position <= 0 {
		position = len(course.Modules) + 1
	}
	module := &model.CourseModule{
		ID:          uuid.NewString(),
		CourseID:    courseID,
		Title:       req.Title,
		Description: req.Description,
		Position:    position,
		IsPublished: req.IsPublished,
		Content:     req.Content,
	}
	if err := s.courseRepo.CreateModule(ctx, module); err != nil {
		return nil, err
	}
	return module, nil
}

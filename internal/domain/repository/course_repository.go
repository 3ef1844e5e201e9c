package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"codequest/internal/common"
	"codequest/internal/domain/model"
)

type CourseRepository interface {
	Create(ctx context.Context, course *model.Course) error
	Update(ctx context.Context, course *model.Course) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*model.Course, error)
	List(ctx context.Context) ([]model.Course, error)
	Enroll(ctx context.Context, courseID, userID string) error
	IsEnrolled(ctx context.Context, courseID, userID string) (bool, error)
	ListEnrolledByUser(ctx context.Context, userID string) ([]model.Course, error)
	CreateModule(ctx context.Context, module *model.CourseModule) error
	ListModules(ctx context.Context, courseID string) ([]model.CourseModule, error)
}

type pgCourseRepository struct {
	db *sql.DB
}

func NewPgCourseRepository(db *sql.DB) CourseRepository {
	return &pgCourseRepository{db: db}
}

const courseColumns = `id, title, description, thumbnail, is_published, enrollment_count, duration, tags, instructor_id, created_at, updated_at`

func (r *pgCourseRepository) Create(ctx context.Context, course *model.Course) error {
	query := `INSERT INTO courses (id, title, description, thumbnail, is_published, duration, tags, instructor_id)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		course.ID, course.Title, course.Description, course.Thumbnail,
		course.IsPublished, course.Duration, encodeTags(course.Tags), course.InstructorID,
	)
	if err != nil {
		if common.IsForeignKeyViolation(err) {
			return fmt.Errorf("instructor for course does not exist: %w", common.ErrNotFound)
		}
		return fmt.Errorf("pgCourseRepository.Create: %w", err)
	}
	return nil
}

func (r *pgCourseRepository) Update(ctx context.Context, course *model.Course) error {
	query := `UPDATE courses SET
	            title = $1, description = $2, thumbnail = $3, is_published = $4,
	            duration = $5, tags = $6, updated_at = now()
	          WHERE id = $7`
	res, err := r.db.ExecContext(ctx, query,
		course.Title, course.Description, course.Thumbnail, course.IsPublished,
		course.Duration, encodeTags(course.Tags), course.ID,
	)
	if err != nil {
		return fmt.Errorf("pgCourseRepository.Update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgCourseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgCourseRepository.Delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgCourseRepository) FindByID(ctx context.Context, id string) (*model.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	course, err := scanCourse(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgCourseRepository.FindByID: %w", err)
	}
	modules, err := r.ListModules(ctx, id)
	if err != nil {
		return nil, err
	}
	course.Modules = modules
	return course, nil
}

func (r *pgCourseRepository) List(ctx context.Context) ([]model.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses ORDER BY created_at DESC`
	return r.queryCourses(ctx, query)
}

// Enroll records the membership and bumps the course counter in one
// transaction. A second enrollment of the same pair is a conflict.
func (r *pgCourseRepository) Enroll(ctx context.Context, courseID, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgCourseRepository.Enroll begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO course_enrollments (course_id, user_id) VALUES ($1, $2)`, courseID, userID)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("user already enrolled in course: %w", common.ErrConflict)
		}
		if common.IsForeignKeyViolation(err) {
			return fmt.Errorf("course or user for enrollment does not exist: %w", common.ErrNotFound)
		}
		return fmt.Errorf("pgCourseRepository.Enroll insert: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE courses SET enrollment_count = enrollment_count + 1 WHERE id = $1`, courseID)
	if err != nil {
		return fmt.Errorf("pgCourseRepository.Enroll count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgCourseRepository.Enroll commit: %w", err)
	}
	return nil
}

func (r *pgCourseRepository) IsEnrolled(ctx context.Context, courseID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM course_enrollments WHERE course_id = $1 AND user_id = $2)`,
		courseID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pgCourseRepository.IsEnrolled: %w", err)
	}
	return exists, nil
}

func (r *pgCourseRepository) ListEnrolledByUser(ctx context.Context, userID string) ([]model.Course, error) {
	query := `SELECT ` + prefixColumns("c", courseColumns) + `
	          FROM courses c
	          JOIN course_enrollments e ON e.course_id = c.id
	          WHERE e.user_id = $1
	          ORDER BY e.enrolled_at DESC`
	return r.queryCourses(ctx, query, userID)
}

func (r *pgCourseRepository) CreateModule(ctx context.Context, module *model.CourseModule) error {
	query := `INSERT INTO course_modules (id, course_id, title, description, position, is_published, content)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	content := module.Content
	if len(content) == 0 {
		content = nil
	}
	_, err := r.db.ExecContext(ctx, query,
		module.ID, module.CourseID, module.Title, module.Description,
		module.Position, module.IsPublished, content,
	)
	if err != nil {
		if common.IsForeignKeyViolation(err) {
			return fmt.Errorf("course for module does not exist: %w", common.ErrNotFound)
		}
		return fmt.Errorf("pgCourseRepository.CreateModule: %w", err)
	}
	return nil
}

func (r *pgCourseRepository) ListModules(ctx context.Context, courseID string) ([]model.CourseModule, error) {
	query := `SELECT id, course_id, title, description, position, is_published, content, created_at
	          FROM course_modules WHERE course_id = $1 ORDER BY position ASC`
	rows, err := r.db.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("pgCourseRepository.ListModules: %w", err)
	}
	defer rows.Close()

	modules := []model.CourseModule{}
	for rows.Next() {
		var m model.CourseModule
		var content []byte
		err := rows.Scan(&m.ID, &m.CourseID, &m.Title, &m.Description, &m.Position, &m.IsPublished, &content, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("pgCourseRepository.ListModules scan: %w", err)
		}
		m.Content = content
		modules = append(modules, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgCourseRepository.ListModules rows.Err: %w", err)
	}
	return modules, nil
}

func scanCourse(row rowScanner) (*model.Course, error) {
	course := &model.Course{}
	var (
		thumbnail sql.NullString
		duration  sql.NullString
		tags      sql.NullString
	)
	err := row.Scan(
		&course.ID, &course.Title, &course.Description, &thumbnail, &course.IsPublished,
		&course.EnrollmentCount, &duration, &tags, &course.InstructorID,
		&course.CreatedAt, &course.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if thumbnail.Valid {
		course.Thumbnail = &thumbnail.String
	}
	if duration.Valid {
		course.Duration = &duration.String
	}
	if tags.Valid && tags.String != "" {
		course.Tags = strings.Split(tags.String, ",")
	}
	return course, nil
}

func (r *pgCourseRepository) queryCourses(ctx context.Context, query string, args ...interface{}) ([]model.Course, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgCourseRepository query: %w", err)
	}
	defer rows.Close()

	courses := []model.Course{}
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("pgCourseRepository scan: %w", err)
		}
		courses = append(courses, *course)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgCourseRepository rows.Err: %w", err)
	}
	return courses, nil
}

// encodeTags stores tags as a comma-separated text column.
func encodeTags(tags []string) string {
	return strings.Join(tags, ",")
}

// prefixColumns qualifies a column list with a table alias for joins.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

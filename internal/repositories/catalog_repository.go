package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrCourseNotFound = errors.New("course not found")

// CatalogCourse is the slice of catalog metadata the chat core consumes.
type CatalogCourse struct {
	CourseCode string `db:"course_code"`
	University string `db:"university"`
	CourseName string `db:"course_name"`
}

// CourseCatalog looks up catalog metadata for course-group joins. The
// catalog itself is maintained elsewhere in the application.
type CourseCatalog interface {
	Lookup(ctx context.Context, courseCode, university string) (CatalogCourse, error)
}

// CatalogRepo is a sqlx implementation of CourseCatalog.
type CatalogRepo struct {
	db *sqlx.DB
}

// NewCatalogRepo constructs a CatalogRepo.
func NewCatalogRepo(db *sqlx.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

// Lookup fetches catalog metadata for a course at a university.
func (r *CatalogRepo) Lookup(ctx context.Context, courseCode, university string) (CatalogCourse, error) {
	var course CatalogCourse
	err := r.db.GetContext(ctx, &course,
		`SELECT course_code, university, course_name FROM catalog_courses
         WHERE course_code=$1 AND university=$2`, courseCode, university)
	if errors.Is(err, sql.ErrNoRows) {
		return CatalogCourse{}, ErrCourseNotFound
	}
	return course, err
}

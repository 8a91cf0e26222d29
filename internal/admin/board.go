// Package admin backs the admin screens: the students board with per-row
// completion badges, form review and the dashboard overview.
package admin

import (
	"context"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"llnd-portal/internal/domain"
	"llnd-portal/internal/portalapi"
)

// Directory is the slice of the portal API the students board reads.
type Directory interface {
	ListStudents(ctx context.Context, f portalapi.StudentFilter) (portalapi.Page[portalapi.Student], error)
	QuizStatus(ctx context.Context, studentID string) (portalapi.QuizStatus, error)
	EnrollmentStatus(ctx context.Context, studentID string) (portalapi.EnrollmentStatus, error)
}

// Board is one page of the students board.
type Board struct {
	Rows  []domain.StudentStatus `json:"rows"`
	Total int                    `json:"total"`
	Page  int                    `json:"page"`
	Limit int                    `json:"limit"`
}

type StatusBoard struct {
	dir      Directory
	pageSize int
	now      func() time.Time
}

func NewStatusBoard(dir Directory, pageSize int) *StatusBoard {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &StatusBoard{dir: dir, pageSize: pageSize, now: time.Now}
}

type lookup struct {
	quiz      portalapi.QuizStatus
	quizErr   error
	enroll    portalapi.EnrollmentStatus
	enrollErr error
}

// LoadStudents fetches a page of students and their quiz and enrollment
// badges. Only the student list itself can fail the page: a student whose
// lookups fail shows Not Completed for both badges.
func (b *StatusBoard) LoadStudents(ctx context.Context, f portalapi.StudentFilter) (Board, error) {
	if f.Limit <= 0 {
		f.Limit = b.pageSize
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	page, err := b.dir.ListStudents(ctx, f)
	if err != nil {
		return Board{}, err
	}

	lookups := make([]lookup, len(page.Items))
	var g errgroup.Group
	g.SetLimit(2 * f.Limit)
	for i, st := range page.Items {
		i, id := i, st.ID
		g.Go(func() error {
			lookups[i].quiz, lookups[i].quizErr = b.dir.QuizStatus(ctx, id)
			return nil
		})
		g.Go(func() error {
			lookups[i].enroll, lookups[i].enrollErr = b.dir.EnrollmentStatus(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	checked := b.now().UTC()
	rows := make([]domain.StudentStatus, len(page.Items))
	for i, st := range page.Items {
		row := domain.StudentStatus{
			StudentID:  st.ID,
			Name:       st.Name,
			Email:      st.Email,
			Active:     st.Active,
			Quiz:       domain.StatusNotCompleted,
			Enrollment: domain.StatusNotCompleted,
			CheckedAt:  checked,
		}
		l := lookups[i]
		switch {
		case l.quizErr != nil:
			glog.Warningf("quiz status for student %s: %v", st.ID, l.quizErr)
		case l.enrollErr != nil:
			glog.Warningf("enrollment status for student %s: %v", st.ID, l.enrollErr)
		default:
			row.Quiz = badge(l.quiz.Completed)
			row.Enrollment = badge(l.enroll.Completed)
		}
		rows[i] = row
	}
	return Board{Rows: rows, Total: page.Total, Page: f.Page, Limit: f.Limit}, nil
}

func badge(completed bool) domain.CompletionStatus {
	if completed {
		return domain.StatusCompleted
	}
	return domain.StatusNotCompleted
}

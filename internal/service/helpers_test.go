package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"online_exam_backend/internal/authz"
	"online_exam_backend/internal/config"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/repository"
	"online_exam_backend/pkg/database"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	studentA  uint = 101
	studentB  uint = 102
	teacherID uint = 7
	adminID   uint = 1
)

type recordedEvents struct {
	mu     sync.Mutex
	events []AttemptEvent
}

func (r *recordedEvents) Publish(_ context.Context, ev AttemptEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordedEvents) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	db          *gorm.DB
	examRepo    *repository.ExamRepository
	assignRepo  *repository.AssignmentRepository
	attemptRepo *repository.AttemptRepository
	violRepo    *repository.ViolationRepository
	events      *recordedEvents

	grading     *GradingService
	violations  *ViolationService
	attempts    *AttemptService
	assignments *AssignmentService
	exams       *ExamService

	now time.Time
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.InitDB(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)

	f := &fixture{
		db:          db,
		examRepo:    repository.NewExamRepository(db),
		assignRepo:  repository.NewAssignmentRepository(db),
		attemptRepo: repository.NewAttemptRepository(db),
		violRepo:    repository.NewViolationRepository(db),
		events:      &recordedEvents{},
		now:         time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	f.grading = NewGradingService(db, f.examRepo, f.attemptRepo, f.events)
	f.grading.now = clock
	f.violations = NewViolationService(db, f.examRepo, f.attemptRepo, f.violRepo, f.events)
	f.violations.now = clock
	f.attempts = NewAttemptService(db, f.examRepo, f.assignRepo, f.attemptRepo, f.violRepo, f.grading, f.events)
	f.attempts.now = clock
	f.assignments = NewAssignmentService(db, f.examRepo, f.assignRepo, f.attemptRepo, f.events)
	f.assignments.now = clock
	f.exams = NewExamService(db, f.examRepo)
	f.exams.now = clock
	return f
}

// seedExam stores an approved exam with two 2-mark MCQs keyed "A" and "B".
func (f *fixture) seedExam(t *testing.T, mutate func(*model.Exam)) *model.Exam {
	t.Helper()
	exam := &model.Exam{
		Title:           "Algebra midterm",
		TeacherID:       teacherID,
		DurationMinutes: 60,
		TotalMarks:      50,
		PassingMarks:    20,
		Status:          model.ExamApproved,
		Questions: []model.Question{
			{QuestionType: model.QuestionMCQ, Text: "1+1?", OptionA: "2", OptionB: "3", CorrectAnswer: "A", Marks: 2, Order: 1},
			{QuestionType: model.QuestionMCQ, Text: "2+1?", OptionA: "2", OptionB: "3", CorrectAnswer: "B", Marks: 2, Order: 2},
		},
	}
	if mutate != nil {
		mutate(exam)
	}
	require.NoError(t, f.db.Create(exam).Error)
	return exam
}

func (f *fixture) start(t *testing.T, examID, studentID uint) *model.Attempt {
	t.Helper()
	a, err := f.assignments.StartAttempt(context.Background(), authz.New(studentID, model.Student), examID, ClientInfo{IP: "10.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	return a
}

func (f *fixture) count(t *testing.T, m interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(m)
	if where != "" {
		q = q.Where(where, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func student(id uint) authz.Actor { return authz.New(id, model.Student) }

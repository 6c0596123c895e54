package service

import (
	"context"
	"testing"
	"time"

	"online_exam_backend/internal/authz"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleQuestions() []QuestionInput {
	return []QuestionInput{
		{QuestionType: model.QuestionMCQ, Text: "Capital of France?", OptionA: "Paris", OptionB: "Rome", CorrectAnswer: "a", Marks: 3},
		{QuestionType: model.QuestionTrueFalse, Text: "Water is wet", CorrectAnswer: "TRUE", Marks: 1},
		{QuestionType: model.QuestionSubjective, Text: "Explain gravity", Marks: 6},
	}
}

func TestCreateExamComputesTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teacher := authz.New(teacherID, model.Teacher)

	exam, err := f.exams.CreateExam(ctx, teacher, CreateExamRequest{
		Title:           "  Physics  ",
		DurationMinutes: 45,
		TotalMarks:      999,
		PassingMarks:    4,
		Questions:       sampleQuestions(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Physics", exam.Title)
	assert.Equal(t, 10, exam.TotalMarks)
	assert.Equal(t, model.ExamDraft, exam.Status)
	assert.Equal(t, teacherID, exam.TeacherID)

	stored, err := f.examRepo.FindWithQuestions(ctx, exam.ID)
	require.NoError(t, err)
	require.Len(t, stored.Questions, 3)
	assert.Equal(t, "A", stored.Questions[0].CorrectAnswer)
	assert.Equal(t, "true", stored.Questions[1].CorrectAnswer)
	assert.Equal(t, []int{1, 2, 3}, []int{stored.Questions[0].Order, stored.Questions[1].Order, stored.Questions[2].Order})
}

func TestCreateExamKeepsZeroValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	exam, err := f.exams.CreateExam(ctx, authz.New(teacherID, model.Teacher), CreateExamRequest{
		Title:           "Open practice",
		DurationMinutes: 0,
		TotalMarks:      0,
		PassingMarks:    0,
	})
	require.NoError(t, err)

	stored, err := f.examRepo.FindByID(ctx, exam.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.DurationMinutes, "untimed exam stays untimed")
	assert.Zero(t, stored.TotalMarks)
	assert.Zero(t, stored.PassingMarks)
}

func TestCreateExamValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teacher := authz.New(teacherID, model.Teacher)

	_, err := f.exams.CreateExam(ctx, student(studentA), CreateExamRequest{Title: "x"})
	assert.ErrorIs(t, err, util.ErrUnauthorized)

	cases := map[string]CreateExamRequest{
		"blank title": {Title: " "},
		"bad key": {Title: "x", Questions: []QuestionInput{
			{QuestionType: model.QuestionMCQ, Text: "q", OptionA: "1", OptionB: "2", CorrectAnswer: "C", Marks: 1},
		}},
		"one option": {Title: "x", Questions: []QuestionInput{
			{QuestionType: model.QuestionMCQ, Text: "q", OptionA: "1", CorrectAnswer: "A", Marks: 1},
		}},
		"bad boolean": {Title: "x", Questions: []QuestionInput{
			{QuestionType: model.QuestionTrueFalse, Text: "q", CorrectAnswer: "yes", Marks: 1},
		}},
		"zero marks": {Title: "x", Questions: []QuestionInput{
			{QuestionType: model.QuestionSubjective, Text: "q"},
		}},
		"unknown type": {Title: "x", Questions: []QuestionInput{
			{QuestionType: "essay", Text: "q", Marks: 1},
		}},
		"passing above total": {Title: "x", TotalMarks: 10, PassingMarks: 11},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.exams.CreateExam(ctx, teacher, req)
			assert.Equal(t, util.KindValidation, util.KindOf(err))
		})
	}
}

func TestExamReviewFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teacher := authz.New(teacherID, model.Teacher)
	admin := authz.New(adminID, model.Admin)

	empty, err := f.exams.CreateExam(ctx, teacher, CreateExamRequest{Title: "empty", TotalMarks: 10})
	require.NoError(t, err)
	_, err = f.exams.SubmitForReview(ctx, teacher, empty.ID)
	assert.Equal(t, util.KindValidation, util.KindOf(err))

	exam, err := f.exams.CreateExam(ctx, teacher, CreateExamRequest{Title: "quiz", Questions: sampleQuestions()})
	require.NoError(t, err)

	_, err = f.exams.SetStatus(ctx, admin, exam.ID, model.ExamApproved)
	assert.ErrorIs(t, err, util.ErrInvalidExamTransition)

	_, err = f.exams.SubmitForReview(ctx, authz.New(teacherID+1, model.Teacher), exam.ID)
	assert.ErrorIs(t, err, util.ErrUnauthorized)

	pending, err := f.exams.SubmitForReview(ctx, teacher, exam.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExamPending, pending.Status)

	_, err = f.exams.SetStatus(ctx, teacher, exam.ID, model.ExamApproved)
	assert.ErrorIs(t, err, util.ErrUnauthorized)

	_, err = f.assignments.StartAttempt(ctx, student(studentA), exam.ID, ClientInfo{})
	assert.ErrorIs(t, err, util.ErrExamNotApproved)

	approved, err := f.exams.SetStatus(ctx, admin, exam.ID, model.ExamApproved)
	require.NoError(t, err)
	assert.Equal(t, model.ExamApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, adminID, *approved.ReviewedBy)

	_, err = f.exams.SetStatus(ctx, admin, exam.ID, model.ExamRejected)
	assert.ErrorIs(t, err, util.ErrInvalidExamTransition)

	a := f.start(t, exam.ID, studentA)
	assert.Equal(t, 10, a.TotalMarks)
}

func TestImportQuestions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teacher := authz.New(teacherID, model.Teacher)
	exam := f.seedExam(t, func(e *model.Exam) { e.TotalMarks = 4 })

	added, err := f.exams.ImportQuestions(ctx, teacher, exam.ID, sampleQuestions())
	require.NoError(t, err)
	assert.Len(t, added, 3)

	stored, err := f.examRepo.FindByID(ctx, exam.ID)
	require.NoError(t, err)
	assert.Equal(t, 14, stored.TotalMarks)

	f.start(t, exam.ID, studentA)
	_, err = f.exams.ImportQuestions(ctx, teacher, exam.ID, sampleQuestions())
	assert.ErrorIs(t, err, util.ErrExamLocked)
}

func TestExamVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	approved := f.seedExam(t, nil)
	draft := f.seedExam(t, func(e *model.Exam) { e.Status = model.ExamDraft })
	f.seedExam(t, func(e *model.Exam) { e.EndTime = f.now.Add(-time.Hour) })

	_, err := f.exams.Get(ctx, student(studentA), draft.ID)
	assert.ErrorIs(t, err, util.ErrExamNotFound)

	seen, err := f.exams.Get(ctx, student(studentA), approved.ID)
	require.NoError(t, err)
	assert.Empty(t, seen.Questions)

	full, err := f.exams.Get(ctx, authz.New(teacherID, model.Teacher), draft.ID)
	require.NoError(t, err)
	assert.Len(t, full.Questions, 2)

	available, err := f.exams.ListAvailable(ctx, student(studentA))
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, approved.ID, available[0].ID)

	own, err := f.exams.ListAvailable(ctx, authz.New(teacherID, model.Teacher))
	require.NoError(t, err)
	assert.Len(t, own, 3)
}

package service

import (
	"context"
	"testing"

	"online_exam_backend/internal/authz"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesKey(t *testing.T) {
	tests := []struct {
		given, key string
		want       bool
	}{
		{" a ", "A", true},
		{"A", "a", true},
		{"True", "true", true},
		{"\tb\n", "B", true},
		{"C", "B", false},
		{"", "A", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchesKey(tt.given, tt.key), "%q vs %q", tt.given, tt.key)
	}
}

func ptrF(f float64) *float64 { return &f }

func TestGradeAttempt(t *testing.T) {
	questions := []model.Question{
		{BaseModel: model.BaseModel{ID: 1}, QuestionType: model.QuestionMCQ, CorrectAnswer: "A", Marks: 2},
		{BaseModel: model.BaseModel{ID: 2}, QuestionType: model.QuestionMCQ, CorrectAnswer: "B", Marks: 2},
		{BaseModel: model.BaseModel{ID: 3}, QuestionType: model.QuestionTrueFalse, CorrectAnswer: "true", Marks: 1},
		{BaseModel: model.BaseModel{ID: 4}, QuestionType: model.QuestionSubjective, Marks: 5},
	}

	tests := []struct {
		name          string
		exam          model.Exam
		total         int
		answers       []model.Answer
		wantObtained  float64
		wantPercent   float64
		wantEvaluated bool
	}{
		{
			name:          "case and whitespace insensitive",
			total:         50,
			answers:       []model.Answer{{QuestionID: 1, AnswerText: " a "}, {QuestionID: 2, AnswerText: "C"}},
			wantObtained:  2,
			wantPercent:   4,
			wantEvaluated: true,
		},
		{
			name:          "negative marking",
			exam:          model.Exam{NegativeMarking: true, NegativeMarksPerQuestion: 0.25},
			total:         50,
			answers:       []model.Answer{{QuestionID: 1, AnswerText: "a"}, {QuestionID: 2, AnswerText: "C"}},
			wantObtained:  1.75,
			wantPercent:   3.5,
			wantEvaluated: true,
		},
		{
			name:          "only wrong answers go negative",
			exam:          model.Exam{NegativeMarking: true, NegativeMarksPerQuestion: 0.25},
			total:         5,
			answers:       []model.Answer{{QuestionID: 2, AnswerText: "A"}},
			wantObtained:  -0.25,
			wantPercent:   -5,
			wantEvaluated: true,
		},
		{
			name:          "zero total yields zero percentage",
			total:         0,
			answers:       []model.Answer{{QuestionID: 1, AnswerText: "A"}},
			wantObtained:  2,
			wantPercent:   0,
			wantEvaluated: true,
		},
		{
			name:          "ungraded subjective keeps attempt pending",
			total:         10,
			answers:       []model.Answer{{QuestionID: 3, AnswerText: "TRUE"}, {QuestionID: 4, AnswerText: "essay"}},
			wantObtained:  1,
			wantPercent:   10,
			wantEvaluated: false,
		},
		{
			name:          "manually graded subjective is kept",
			total:         10,
			answers:       []model.Answer{{QuestionID: 4, AnswerText: "essay", MarksObtained: ptrF(4)}},
			wantObtained:  4,
			wantPercent:   40,
			wantEvaluated: true,
		},
		{
			name:          "answer to unknown question ignored",
			total:         10,
			answers:       []model.Answer{{QuestionID: 99, AnswerText: "A"}},
			wantObtained:  0,
			wantPercent:   0,
			wantEvaluated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempt := &model.Attempt{TotalMarks: tt.total}
			res := GradeAttempt(&tt.exam, attempt, tt.answers, questions)
			assert.InDelta(t, tt.wantObtained, res.ObtainedMarks, 1e-9)
			assert.InDelta(t, tt.wantPercent, res.Percentage, 1e-9)
			assert.Equal(t, tt.wantEvaluated, res.Evaluated())
			require.Len(t, res.Answers, len(tt.answers))
		})
	}
}

func TestGradeAttemptDoesNotMutateInput(t *testing.T) {
	questions := []model.Question{{BaseModel: model.BaseModel{ID: 1}, QuestionType: model.QuestionMCQ, CorrectAnswer: "A", Marks: 2}}
	answers := []model.Answer{{QuestionID: 1, AnswerText: "A"}}

	res := GradeAttempt(&model.Exam{}, &model.Attempt{TotalMarks: 2}, answers, questions)

	assert.Nil(t, answers[0].MarksObtained)
	require.NotNil(t, res.Answers[0].MarksObtained)
	assert.Equal(t, 2.0, *res.Answers[0].MarksObtained)
	assert.True(t, *res.Answers[0].IsCorrect)
}

func TestSubmitGradesTwoMCQs(t *testing.T) {
	for _, negative := range []bool{false, true} {
		f := newFixture(t)
		exam := f.seedExam(t, func(e *model.Exam) {
			e.NegativeMarking = negative
			e.NegativeMarksPerQuestion = 0.25
		})
		a := f.start(t, exam.ID, studentA)
		ctx := context.Background()

		q1, q2 := exam.Questions[0], exam.Questions[1]
		_, err := f.attempts.SaveAnswer(ctx, student(studentA), a.ID, q1.ID, "a", ClientInfo{})
		require.NoError(t, err)
		_, err = f.attempts.SaveAnswer(ctx, student(studentA), a.ID, q2.ID, "C", ClientInfo{})
		require.NoError(t, err)

		done, err := f.attempts.Submit(ctx, student(studentA), a.ID)
		require.NoError(t, err)

		want := 2.0
		if negative {
			want = 1.75
		}
		assert.Equal(t, model.AttemptEvaluated, done.Status)
		assert.InDelta(t, want, done.ObtainedMarks, 1e-9)
		assert.InDelta(t, want/50*100, done.Percentage, 0.01)
		require.NotNil(t, done.EndTime)

		stored, err := f.attemptRepo.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, model.AttemptEvaluated, stored.Status)

		answers, err := f.attemptRepo.ListAnswers(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, answers, 2)
		for _, ans := range answers {
			require.NotNil(t, ans.MarksObtained)
			require.NotNil(t, ans.IsCorrect)
		}
	}
}

func TestGradeGuards(t *testing.T) {
	f := newFixture(t)
	exam := f.seedExam(t, nil)
	a := f.start(t, exam.ID, studentA)
	ctx := context.Background()

	_, err := f.grading.Grade(ctx, f.db, a.ID)
	assert.ErrorIs(t, err, util.ErrAttemptNotSubmitted)

	_, err = f.attempts.Submit(ctx, student(studentA), a.ID)
	require.NoError(t, err)

	_, err = f.grading.Grade(ctx, f.db, a.ID)
	assert.ErrorIs(t, err, util.ErrAlreadyEvaluated)
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))
}

func TestGradeSubjective(t *testing.T) {
	f := newFixture(t)
	exam := f.seedExam(t, func(e *model.Exam) {
		e.TotalMarks = 10
		e.Questions = append(e.Questions, model.Question{QuestionType: model.QuestionSubjective, Text: "Explain", Marks: 6, Order: 3})
	})
	ctx := context.Background()
	a := f.start(t, exam.ID, studentA)

	_, err := f.attempts.SaveAnswer(ctx, student(studentA), a.ID, exam.Questions[0].ID, "A", ClientInfo{})
	require.NoError(t, err)
	essay, err := f.attempts.SaveAnswer(ctx, student(studentA), a.ID, exam.Questions[2].ID, "because", ClientInfo{})
	require.NoError(t, err)

	submitted, err := f.attempts.Submit(ctx, student(studentA), a.ID)
	require.NoError(t, err)
	require.Equal(t, model.AttemptSubmitted, submitted.Status, "subjective answer is pending")
	assert.InDelta(t, 2.0, submitted.ObtainedMarks, 1e-9)

	teacher := authz.New(teacherID, model.Teacher)
	otherTeacher := authz.New(teacherID+1, model.Teacher)

	_, err = f.grading.GradeSubjective(ctx, otherTeacher, a.ID, essay.ID, 3, "")
	assert.ErrorIs(t, err, util.ErrUnauthorized)

	_, err = f.grading.GradeSubjective(ctx, teacher, a.ID, essay.ID, 7, "")
	assert.ErrorIs(t, err, util.ErrInvalidMarks)

	graded, err := f.grading.GradeSubjective(ctx, teacher, a.ID, essay.ID, 4.5, "good")
	require.NoError(t, err)
	assert.Equal(t, model.AttemptEvaluated, graded.Status)
	assert.InDelta(t, 6.5, graded.ObtainedMarks, 1e-9)
	assert.InDelta(t, 65.0, graded.Percentage, 1e-9)
	assert.Contains(t, f.events.types(), EventEvaluated)

	_, err = f.grading.GradeSubjective(ctx, teacher, a.ID, essay.ID, 5, "")
	assert.ErrorIs(t, err, util.ErrAlreadyEvaluated)
}

func TestGradeSubjectiveRejectsObjectiveAnswer(t *testing.T) {
	f := newFixture(t)
	exam := f.seedExam(t, func(e *model.Exam) {
		e.Questions = append(e.Questions, model.Question{QuestionType: model.QuestionSubjective, Text: "Explain", Marks: 6, Order: 3})
	})
	ctx := context.Background()
	a := f.start(t, exam.ID, studentA)

	mcq, err := f.attempts.SaveAnswer(ctx, student(studentA), a.ID, exam.Questions[0].ID, "B", ClientInfo{})
	require.NoError(t, err)
	_, err = f.attempts.SaveAnswer(ctx, student(studentA), a.ID, exam.Questions[2].ID, "text", ClientInfo{})
	require.NoError(t, err)
	_, err = f.attempts.Submit(ctx, student(studentA), a.ID)
	require.NoError(t, err)

	_, err = f.grading.GradeSubjective(ctx, authz.New(adminID, model.Admin), a.ID, mcq.ID, 1, "")
	assert.Equal(t, util.KindValidation, util.KindOf(err))
}

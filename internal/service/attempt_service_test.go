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

func TestSaveAnswerUpsertsLatest(t *testing.T) {
	f := newFixture(t)
	exam := f.seedExam(t, nil)
	a := f.start(t, exam.ID, studentA)
	ctx := context.Background()
	qID := exam.Questions[0].ID

	for _, text := range []string{"B", "B", "A"} {
		_, err := f.attempts.SaveAnswer(ctx, student(studentA), a.ID, qID, text, ClientInfo{})
		require.NoError(t, err)
	}

	answers, err := f.attemptRepo.ListAnswers(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "A", answers[0].AnswerText)
	assert.Nil(t, answers[0].MarksObtained)

	stored, err := f.attemptRepo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptInProgress, stored.Status)
}

func TestSaveAnswerRejectsForeignQuestion(t *testing.T) {
	f := newFixture(t)
	exam := f.seedExam(t, nil)
	other := f.seedExam(t, nil)
	a := f.start(t, exam.ID, studentA)

	_, err := f.attempts.SaveAnswer(context.Background(), student(studentA), a.ID, other.Questions[0].ID, "A", ClientInfo{})
	assert.ErrorIs(t, err, util.ErrQuestionNotFound)
}

func TestOtherStudentIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	exam := f.seedExam(t, nil)
	a := f.start(t, exam.ID, studentB)
	ctx := context.Background()
	intruder := student(studentA)

	_, err := f.attempts.SaveAnswer(ctx, intruder, a.ID, exam.Questions[0].ID, "A", ClientInfo{})
	assert.ErrorIs(t, err, util.ErrUnauthorized)

	_, err = f.attempts.Submit(ctx, intruder, a.ID)
	assert.ErrorIs(t, err, util.ErrUnauthorized)

	_, err = f.violations.LogViolation(ctx, intruder, a.ID, model.ViolationTabSwitch, "")
	assert.ErrorIs(t, err, util.ErrUnauthorized)

	_, err = f.attempts.Get(ctx, intruder, a.ID)
	assert.ErrorIs(t, err, util.ErrUnauthorized)

	stored, err := f.attemptRepo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptInProgress, stored.Status)
	assert.Zero(t, stored.TabSwitchCount)
	assert.EqualValues(t, 0, f.count(t, &model.Answer{}, "attempt_id = ?", a.ID))
}

func TestOperationsRequireInProgress(t *testing.T) {
	f := newFixture(t)
	exam := f.seedExam(t, nil)
	a := f.start(t, exam.ID, studentA)
	ctx := context.Background()

	_, err := f.attempts.Submit(ctx, student(studentA), a.ID)
	require.NoError(t, err)

	_, err = f.attempts.Submit(ctx, student(studentA), a.ID)
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))

	_, err = f.attempts.SaveAnswer(ctx, student(studentA), a.ID, exam.Questions[0].ID, "A", ClientInfo{})
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))

	_, err = f.violations.LogViolation(ctx, student(studentA), a.ID, model.ViolationCopyPaste, "")
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))
}

func TestSubmitCompletesAssignment(t *testing.T) {
	f := newFixture(t)
	exam := f.seedExam(t, nil)
	a := f.start(t, exam.ID, studentA)
	ctx := context.Background()

	f.now = f.now.Add(10 * time.Minute)
	done, err := f.attempts.Submit(ctx, student(studentA), a.ID)
	require.NoError(t, err)
	require.NotNil(t, done.EndTime)
	assert.True(t, done.EndTime.Equal(f.now))

	asg, err := f.assignRepo.Find(ctx, exam.ID, studentA)
	require.NoError(t, err)
	assert.True(t, asg.IsCompleted)
	assert.Equal(t, []EventType{EventAttemptStarted, EventSubmitted, EventEvaluated}, f.events.types())
}

func TestSaveAnswerFromNewIPLogsOncePerAddress(t *testing.T) {
	f := newFixture(t)
	exam := f.seedExam(t, nil)
	a := f.start(t, exam.ID, studentA)
	ctx := context.Background()
	qID := exam.Questions[0].ID

	for _, ip := range []string{"10.0.0.1", "10.0.0.9", "10.0.0.9", "10.0.0.7"} {
		_, err := f.attempts.SaveAnswer(ctx, student(studentA), a.ID, qID, "A", ClientInfo{IP: ip})
		require.NoError(t, err)
	}

	logs, err := f.violRepo.ListByAttempt(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	for _, l := range logs {
		assert.Equal(t, model.ViolationMultipleIP, l.ViolationType)
	}

	stored, err := f.attemptRepo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.TotalViolations())
	assert.Equal(t, model.AttemptInProgress, stored.Status)
}

func TestGetAndListVisibility(t *testing.T) {
	f := newFixture(t)
	exam := f.seedExam(t, nil)
	a := f.start(t, exam.ID, studentA)
	f.start(t, exam.ID, studentB)
	ctx := context.Background()

	_, err := f.attempts.SaveAnswer(ctx, student(studentA), a.ID, exam.Questions[0].ID, "A", ClientInfo{})
	require.NoError(t, err)

	got, err := f.attempts.Get(ctx, authz.New(teacherID, model.Teacher), a.ID)
	require.NoError(t, err)
	assert.Len(t, got.Answers, 1)

	mine, err := f.attempts.ListMine(ctx, student(studentA))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)

	all, err := f.attempts.ListByExam(ctx, authz.New(adminID, model.Admin), exam.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.attempts.ListByExam(ctx, student(studentA), exam.ID)
	assert.ErrorIs(t, err, util.ErrUnauthorized)
}

func TestPaperHidesKeysAndShufflesDeterministically(t *testing.T) {
	f := newFixture(t)
	exam := f.seedExam(t, func(e *model.Exam) {
		e.ShuffleQuestions = true
		e.ShuffleOptions = true
		for i := 3; i <= 8; i++ {
			e.Questions = append(e.Questions, model.Question{
				QuestionType: model.QuestionMCQ, Text: "q", OptionA: "w", OptionB: "x", OptionC: "y", OptionD: "z",
				CorrectAnswer: "C", Marks: 1, Order: i,
			})
		}
	})
	a := f.start(t, exam.ID, studentA)
	ctx := context.Background()

	p1, err := f.attempts.Paper(ctx, student(studentA), a.ID)
	require.NoError(t, err)
	p2, err := f.attempts.Paper(ctx, student(studentA), a.ID)
	require.NoError(t, err)

	require.Len(t, p1.Questions, 8)
	assert.Equal(t, p1.Questions, p2.Questions)
	assert.EqualValues(t, 3600, p1.RemainingSeconds)

	seen := map[uint]bool{}
	for _, q := range p1.Questions {
		seen[q.ID] = true
	}
	assert.Len(t, seen, 8)
}

func TestPaperRemainingClippedByWindow(t *testing.T) {
	f := newFixture(t)
	exam := f.seedExam(t, func(e *model.Exam) {
		e.EndTime = f.now.Add(20 * time.Minute)
	})
	a := f.start(t, exam.ID, studentA)

	p, err := f.attempts.Paper(context.Background(), student(studentA), a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 20*60, p.RemainingSeconds)
}

func TestPaperUntimedExam(t *testing.T) {
	f := newFixture(t)
	exam := f.seedExam(t, func(e *model.Exam) { e.DurationMinutes = 0 })
	a := f.start(t, exam.ID, studentA)

	p, err := f.attempts.Paper(context.Background(), student(studentA), a.ID)
	require.NoError(t, err)
	assert.Zero(t, p.DurationMinutes)
	assert.EqualValues(t, -1, p.RemainingSeconds)
}

package service

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"online_exam_backend/internal/authz"
	"online_exam_backend/internal/model"
)

// PaperQuestion is a question as shown to the candidate: no key, optional
// shuffled options and the answer saved so far.
type PaperQuestion struct {
	ID           uint               `json:"id"`
	QuestionType model.QuestionType `json:"questionType"`
	Text         string             `json:"text"`
	Options      []model.Option     `json:"options,omitempty"`
	Marks        int                `json:"marks"`
	SavedAnswer  string             `json:"savedAnswer,omitempty"`
}

type Paper struct {
	AttemptID       string              `json:"attemptId"`
	ExamID          uint                `json:"examId"`
	Title           string              `json:"title"`
	Instructions    string              `json:"instructions"`
	DurationMinutes int                 `json:"durationMinutes"`
	TotalMarks      int                 `json:"totalMarks"`
	Status          model.AttemptStatus `json:"status"`
	// RemainingSeconds is -1 for an untimed exam.
	RemainingSeconds int64           `json:"remainingSeconds"`
	Questions        []PaperQuestion `json:"questions"`
}

// Paper renders the attempt's question paper. The shuffle is seeded by the
// attempt id so a reload shows the same order.
func (s *AttemptService) Paper(ctx context.Context, actor authz.Actor, attemptID string) (*Paper, error) {
	a, err := s.AttemptRepo.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if err := s.checkView(ctx, actor, a); err != nil {
		return nil, err
	}

	exam, err := s.ExamRepo.FindWithQuestions(ctx, a.ExamID)
	if err != nil {
		return nil, err
	}
	answers, err := s.AttemptRepo.ListAnswers(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	saved := make(map[uint]string, len(answers))
	for _, ans := range answers {
		saved[ans.QuestionID] = ans.AnswerText
	}

	rng := rand.New(rand.NewSource(seedFor(a.ID)))

	questions := make([]PaperQuestion, 0, len(exam.Questions))
	for i := range exam.Questions {
		q := &exam.Questions[i]
		pq := PaperQuestion{
			ID:           q.ID,
			QuestionType: q.QuestionType,
			Text:         q.Text,
			Marks:        q.Marks,
			SavedAnswer:  saved[q.ID],
		}
		if q.QuestionType == model.QuestionMCQ {
			pq.Options = q.Options()
			if exam.ShuffleOptions {
				rng.Shuffle(len(pq.Options), func(i, j int) {
					pq.Options[i], pq.Options[j] = pq.Options[j], pq.Options[i]
				})
			}
		}
		questions = append(questions, pq)
	}
	if exam.ShuffleQuestions {
		rng.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}

	return &Paper{
		AttemptID:        a.ID,
		ExamID:           exam.ID,
		Title:            exam.Title,
		Instructions:     exam.Instructions,
		DurationMinutes:  exam.DurationMinutes,
		TotalMarks:       a.TotalMarks,
		Status:           a.Status,
		RemainingSeconds: remainingSeconds(exam, a, s.now()),
		Questions:        questions,
	}, nil
}

// Deadline is the moment an attempt runs out of time: start plus duration,
// clipped by the exam window end. The zero time means no deadline.
func Deadline(exam *model.Exam, a *model.Attempt) time.Time {
	var d time.Time
	if exam.DurationMinutes > 0 {
		d = a.StartTime.Add(time.Duration(exam.DurationMinutes) * time.Minute)
	}
	if !exam.EndTime.IsZero() && (d.IsZero() || exam.EndTime.Before(d)) {
		d = exam.EndTime
	}
	return d
}

func remainingSeconds(exam *model.Exam, a *model.Attempt, now time.Time) int64 {
	if a.Status != model.AttemptInProgress {
		return 0
	}
	d := Deadline(exam, a)
	if d.IsZero() {
		return -1
	}
	left := int64(d.Sub(now) / time.Second)
	if left < 0 {
		return 0
	}
	return left
}

func seedFor(id string) int64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return int64(h.Sum64())
}

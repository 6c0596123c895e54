package service

import (
	"context"
	"encoding/json"
	"time"

	"online_exam_backend/internal/authz"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/repository"
	"online_exam_backend/internal/util"
	"online_exam_backend/pkg/logger"

	"go.uber.org/zap"
)

// CertificateDocument is the rendered result handed to the certificate
// renderer. It is stored as JSON next to other uploads.
type CertificateDocument struct {
	CertificateID     string     `json:"certificateId"`
	AttemptID         string     `json:"attemptId"`
	ExamID            uint       `json:"examId"`
	ExamTitle         string     `json:"examTitle"`
	Subject           string     `json:"subject,omitempty"`
	StudentID         uint       `json:"studentId"`
	ObtainedMarks     float64    `json:"obtainedMarks"`
	TotalMarks        int        `json:"totalMarks"`
	Percentage        float64    `json:"percentage"`
	PassingPercentage float64    `json:"passingPercentage"`
	Result            string     `json:"result"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	IssuedAt          time.Time  `json:"issuedAt"`
}

type CertificateService struct {
	ExamRepo        *repository.ExamRepository
	AttemptRepo     *repository.AttemptRepository
	CertificateRepo *repository.CertificateRepository
	Storage         *StorageService
	now             func() time.Time
}

func NewCertificateService(examRepo *repository.ExamRepository, attemptRepo *repository.AttemptRepository, certRepo *repository.CertificateRepository, storage *StorageService) *CertificateService {
	return &CertificateService{
		ExamRepo:        examRepo,
		AttemptRepo:     attemptRepo,
		CertificateRepo: certRepo,
		Storage:         storage,
		now:             time.Now,
	}
}

// PassingPercentage converts the exam's passing marks to a percentage.
func PassingPercentage(exam *model.Exam) float64 {
	if exam.TotalMarks <= 0 {
		return 0
	}
	return float64(exam.PassingMarks) / float64(exam.TotalMarks) * 100
}

// Issue returns the certificate of an evaluated attempt, rendering and
// uploading it on first request.
func (s *CertificateService) Issue(ctx context.Context, actor authz.Actor, attemptID string) (*model.Certificate, error) {
	a, err := s.AttemptRepo.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	exam, err := s.ExamRepo.FindByID(ctx, a.ExamID)
	if err != nil {
		return nil, err
	}
	if !authz.CanView(actor, exam, a.StudentID) {
		return nil, util.ErrUnauthorized
	}
	if a.Status != model.AttemptEvaluated {
		return nil, util.ErrAttemptNotEvaluated
	}

	existing, err := s.CertificateRepo.FindByAttempt(ctx, a.ID)
	if err == nil {
		return existing, nil
	}
	if util.KindOf(err) != util.KindNotFound {
		return nil, err
	}

	now := s.now()
	pass := PassingPercentage(exam)
	cert := &model.Certificate{
		UUIDBase:   model.UUIDBase{ID: model.GenerateUUID()},
		AttemptID:  a.ID,
		ExamID:     exam.ID,
		StudentID:  a.StudentID,
		ObjectKey:  "certificates/" + a.ID + ".json",
		Passed:     a.Percentage >= pass,
		Percentage: a.Percentage,
		IssuedAt:   now,
	}

	doc := CertificateDocument{
		CertificateID:     cert.ID,
		AttemptID:         a.ID,
		ExamID:            exam.ID,
		ExamTitle:         exam.Title,
		Subject:           exam.Subject,
		StudentID:         a.StudentID,
		ObtainedMarks:     a.ObtainedMarks,
		TotalMarks:        a.TotalMarks,
		Percentage:        a.Percentage,
		PassingPercentage: util.Round2(pass),
		Result:            "FAILED",
		CompletedAt:       a.EndTime,
		IssuedAt:          now,
	}
	if cert.Passed {
		doc.Result = "PASSED"
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}

	url, err := s.Storage.PutBytes(ctx, cert.ObjectKey, body, util.MimeJSON)
	if err != nil {
		return nil, err
	}
	cert.URL = url

	if err := s.CertificateRepo.Create(ctx, cert); err != nil {
		// lost a race with a concurrent Issue
		if again, findErr := s.CertificateRepo.FindByAttempt(ctx, a.ID); findErr == nil {
			return again, nil
		}
		return nil, err
	}

	logger.Log.Info("certificate issued",
		zap.String("attemptId", a.ID),
		zap.Bool("passed", cert.Passed),
		zap.String("key", cert.ObjectKey),
	)
	return cert, nil
}

package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"online_exam_backend/internal/config"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/util"
	"online_exam_backend/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "app-test-secret-app-test-secret-0"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	t   *testing.T
	app *App
}

func newTestApp(t *testing.T) *client {
	t.Helper()
	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: "test"},
		Database:  config.DatabaseConfig{Driver: "sqlite", Path: ":memory:", LogLevel: "silent"},
		JWT:       config.JWTConfig{Secret: secret},
		Storage:   config.StorageConfig{Type: util.StorageLocal, LocalPath: t.TempDir()},
		RateLimit: config.RateLimitConfig{MaxRequests: 1000, WindowMinutes: 1},
		Settings:  config.SettingsConfig{SiteName: "Exams"},
	}
	db, err := database.InitDB(&cfg.Database)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return &client{t: t, app: assemble(cfg, db, nil)}
}

func (c *client) do(method, path string, id uint, role model.UserRole, body interface{}) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:5000"
	if id != 0 {
		tok, err := util.GenerateJWT(id, role, "", secret, time.Hour)
		require.NoError(c.t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	c.app.Router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func decode(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

const (
	teacher uint = 7
	admin   uint = 1
	alice   uint = 101
	bob     uint = 102
)

func (c *client) approvedExam() model.Exam {
	c.t.Helper()
	status, env := c.do(http.MethodPost, "/api/teacher/exams", teacher, model.Teacher, map[string]interface{}{
		"title":           "Geography",
		"durationMinutes": 30,
		"passingMarks":    2,
		"questions": []map[string]interface{}{
			{"questionType": "mcq", "text": "Capital of Italy?", "optionA": "Rome", "optionB": "Milan", "correctAnswer": "A", "marks": 2},
			{"questionType": "true_false", "text": "The Nile is in Africa", "correctAnswer": "true", "marks": 2},
		},
	})
	require.Equal(c.t, http.StatusCreated, status, env.Message)
	var exam model.Exam
	decode(c.t, env, &exam)

	status, env = c.do(http.MethodPost, fmt.Sprintf("/api/teacher/exams/%d/submit-review", exam.ID), teacher, model.Teacher, nil)
	require.Equal(c.t, http.StatusOK, status, env.Message)
	status, env = c.do(http.MethodPut, fmt.Sprintf("/api/admin/exams/%d/status", exam.ID), admin, model.Admin, map[string]string{"status": "approved"})
	require.Equal(c.t, http.StatusOK, status, env.Message)
	var approved model.Exam
	decode(c.t, env, &approved)
	exam.Status = approved.Status
	return exam
}

func TestAttemptHappyPath(t *testing.T) {
	c := newTestApp(t)
	exam := c.approvedExam()
	require.Equal(t, 4, exam.TotalMarks)

	status, env := c.do(http.MethodPost, "/api/attempts/start", alice, model.Student, map[string]uint{"examId": exam.ID})
	require.Equal(t, http.StatusOK, status, env.Message)
	var attempt model.Attempt
	decode(t, env, &attempt)
	assert.Equal(t, model.AttemptInProgress, attempt.Status)
	assert.Equal(t, "192.0.2.10", attempt.IPAddress)

	status, env = c.do(http.MethodGet, "/api/attempts/"+attempt.ID+"/paper", alice, model.Student, nil)
	require.Equal(t, http.StatusOK, status)
	var paper struct {
		Questions []struct {
			ID            uint   `json:"id"`
			CorrectAnswer string `json:"correctAnswer"`
		} `json:"questions"`
	}
	decode(t, env, &paper)
	require.Len(t, paper.Questions, 2)
	for _, q := range paper.Questions {
		assert.Empty(t, q.CorrectAnswer)
	}

	status, env = c.do(http.MethodPost, "/api/attempts/"+attempt.ID+"/answers", alice, model.Student,
		map[string]interface{}{"questionId": exam.Questions[0].ID, "answer": "a"})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = c.do(http.MethodPost, "/api/attempts/"+attempt.ID+"/submit", bob, model.Student, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "unauthorized", env.Kind)

	status, env = c.do(http.MethodPost, "/api/attempts/"+attempt.ID+"/submit", alice, model.Student, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	decode(t, env, &attempt)
	assert.Equal(t, model.AttemptEvaluated, attempt.Status)
	assert.Equal(t, 2.0, attempt.ObtainedMarks)
	assert.Equal(t, 50.0, attempt.Percentage)

	status, env = c.do(http.MethodPost, "/api/attempts/"+attempt.ID+"/submit", alice, model.Student, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "invalid_state", env.Kind)

	status, env = c.do(http.MethodPost, "/api/attempts/start", alice, model.Student, map[string]uint{"examId": exam.ID})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_completed", env.Kind)

	status, env = c.do(http.MethodGet, "/api/attempts/"+attempt.ID+"/certificate", alice, model.Student, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var cert model.Certificate
	decode(t, env, &cert)
	assert.True(t, cert.Passed)

	status, _ = c.do(http.MethodGet, fmt.Sprintf("/api/teacher/exams/%d/attempts", exam.ID), teacher, model.Teacher, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestViolationsBanStudent(t *testing.T) {
	c := newTestApp(t)
	exam := c.approvedExam()

	_, env := c.do(http.MethodPost, "/api/attempts/start", alice, model.Student, map[string]uint{"examId": exam.ID})
	var attempt model.Attempt
	decode(t, env, &attempt)
	path := "/api/attempts/" + attempt.ID + "/violations"

	status, env := c.do(http.MethodPost, path, alice, model.Student, map[string]string{"violationType": "print_screen"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", env.Kind)

	var res struct {
		AutoSubmitted   bool `json:"autoSubmitted"`
		TotalViolations int  `json:"totalViolations"`
	}
	for i, vt := range []string{"tab_switch", "copy_paste", "tab_switch"} {
		status, env = c.do(http.MethodPost, path, alice, model.Student, map[string]string{"violationType": vt})
		require.Equal(t, http.StatusOK, status, env.Message)
		decode(t, env, &res)
		assert.Equal(t, i+1, res.TotalViolations)
	}
	assert.True(t, res.AutoSubmitted)

	status, env = c.do(http.MethodPost, "/api/attempts/start", alice, model.Student, map[string]uint{"examId": exam.ID})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "banned", env.Kind)

	status, env = c.do(http.MethodGet, path, teacher, model.Teacher, nil)
	require.Equal(t, http.StatusOK, status)
	var logs []model.ViolationLog
	decode(t, env, &logs)
	assert.Len(t, logs, 3)
}

func TestRouteGuards(t *testing.T) {
	c := newTestApp(t)

	status, _ := c.do(http.MethodGet, "/api/exams", 0, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = c.do(http.MethodPost, "/api/teacher/exams", alice, model.Student, map[string]string{"title": "x"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = c.do(http.MethodPut, "/api/admin/system-settings", teacher, model.Teacher, map[string]string{"siteName": "x"})
	assert.Equal(t, http.StatusForbidden, status)

	status, env := c.do(http.MethodPost, "/api/attempts/start", alice, model.Student, map[string]uint{"examId": 404})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", env.Kind)

	status, env = c.do(http.MethodGet, "/api/health", 0, "", nil)
	assert.Equal(t, http.StatusOK, status, env.Message)

	status, env = c.do(http.MethodGet, "/api/system-settings", 0, "", nil)
	require.Equal(t, http.StatusOK, status)
	var s struct {
		SiteName string `json:"siteName"`
	}
	decode(t, env, &s)
	assert.Equal(t, "Exams", s.SiteName)
}

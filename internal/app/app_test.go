package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"teacher_connect_backend/internal/config"
	"teacher_connect_backend/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	t      *testing.T
	router http.Handler
}

func (c *client) do(method, path, token string, body interface{}) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (c *client) login(name, role string) string {
	c.t.Helper()
	email := name + "@example.com"
	code, _ := c.do(http.MethodPost, "/api/register", "", gin.H{"name": name, "email": email, "password": "secret123", "role": role})
	require.Equal(c.t, http.StatusCreated, code)

	code, env := c.do(http.MethodPost, "/api/login", "", gin.H{"email": email, "password": "secret123"})
	require.Equal(c.t, http.StatusOK, code)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(c.t, json.Unmarshal(env.Data, &data))
	return data.Token
}

func newTestApp(t *testing.T) *client {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		JWT:       config.JWTConfig{Secret: "app-test-secret", ExpireTime: time.Hour},
		Storage:   config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
		RateLimit: config.RateLimitConfig{MaxRequests: 10000, WindowMinutes: 1},
	}
	app := New(cfg, testutil.OpenDB(t), nil)
	return &client{t: t, router: app.Router}
}

func TestAssessmentFlow(t *testing.T) {
	c := newTestApp(t)
	teacher := c.login("teacher", "teacher")
	student := c.login("student", "student")

	code, env := c.do(http.MethodPost, "/api/teacher/assessments", teacher, gin.H{
		"title":           "Fractions",
		"subject":         "math",
		"grade":           "5",
		"durationMinutes": 20,
		"difficulty":      "hard",
		"isPublished":     true,
		"questions": []gin.H{
			{"questionType": "single_choice", "prompt": "1/2 + 1/4?", "options": []string{"3/4", "2/6"}, "correctAnswer": 0, "points": 5},
			{"questionType": "true_false", "prompt": "1/3 > 1/2", "correctAnswer": false, "points": 5},
		},
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var assessment struct {
		ID          string `json:"id"`
		TotalPoints int    `json:"totalPoints"`
		Questions   []struct {
			ID string `json:"id"`
		} `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &assessment))
	assert.Equal(t, 10, assessment.TotalPoints)
	require.Len(t, assessment.Questions, 2)

	// 学生不能访问教师接口
	code, _ = c.do(http.MethodPost, "/api/teacher/assessments", student, gin.H{})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = c.do(http.MethodGet, "/api/assessments/"+assessment.ID, student, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(env.Data), "correctAnswer")

	code, env = c.do(http.MethodPost, "/api/assessments/"+assessment.ID+"/attempts", student, nil)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var attempt struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &attempt))

	submitPath := "/api/attempts/" + attempt.ID + "/submit"
	answers := gin.H{"answers": []gin.H{
		{"questionId": assessment.Questions[0].ID, "answer": 0},
		{"questionId": assessment.Questions[1].ID, "answer": "false"},
	}}
	code, env = c.do(http.MethodPost, submitPath, student, answers)
	require.Equal(t, http.StatusOK, code, env.Message)
	var result struct {
		Status         string  `json:"status"`
		Score          int     `json:"score"`
		Percentage     float64 `json:"percentage"`
		CreditsAwarded int     `json:"creditsAwarded"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, 10, result.Score)
	// 100%，hard 难度：50 × 1.5
	assert.Equal(t, 75, result.CreditsAwarded)

	code, _ = c.do(http.MethodPost, submitPath, student, answers)
	assert.Equal(t, http.StatusConflict, code)

	code, env = c.do(http.MethodGet, "/api/credits/balance", student, nil)
	require.Equal(t, http.StatusOK, code)
	var balance struct {
		Balance int64 `json:"balance"`
		Rank    int64 `json:"rank"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &balance))
	assert.EqualValues(t, 75, balance.Balance)
	assert.EqualValues(t, 1, balance.Rank)

	code, env = c.do(http.MethodGet, "/api/credits/leaderboard", student, nil)
	require.Equal(t, http.StatusOK, code)
	var board []struct {
		Name    string `json:"name"`
		Balance int64  `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &board))
	require.Len(t, board, 1)
	assert.Equal(t, "student", board[0].Name)

	code, env = c.do(http.MethodGet, "/api/teacher/assessments/"+assessment.ID, teacher, nil)
	require.Equal(t, http.StatusOK, code)
	var stats struct {
		Attempts     int     `json:"attempts"`
		AverageScore float64 `json:"averageScore"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.Attempts)
	assert.InDelta(t, 100.0, stats.AverageScore, 0.001)
}

func TestAttemptErrors(t *testing.T) {
	c := newTestApp(t)
	student := c.login("student", "student")

	code, _ := c.do(http.MethodPost, "/api/attempts/missing/submit", student, gin.H{"answers": []gin.H{}})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = c.do(http.MethodPost, "/api/assessments/missing/attempts", student, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = c.do(http.MethodGet, "/api/credits/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAbandonAndSaveDraft(t *testing.T) {
	c := newTestApp(t)
	teacher := c.login("teacher", "teacher")
	student := c.login("student", "student")

	code, env := c.do(http.MethodPost, "/api/teacher/assessments", teacher, gin.H{
		"title": "Spelling", "subject": "english", "grade": "3", "isPublished": true,
		"questions": []gin.H{{"questionType": "short_answer", "prompt": "Spell cat", "correctAnswer": "cat", "points": 2}},
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var assessment struct {
		ID        string `json:"id"`
		Questions []struct {
			ID string `json:"id"`
		} `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &assessment))

	code, env = c.do(http.MethodPost, "/api/assessments/"+assessment.ID+"/attempts", student, nil)
	require.Equal(t, http.StatusCreated, code)
	var attempt struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &attempt))

	path := fmt.Sprintf("/api/attempts/%s", attempt.ID)
	code, _ = c.do(http.MethodPut, path+"/answers", student, gin.H{"answers": []gin.H{{"questionId": assessment.Questions[0].ID, "answer": "cat"}}})
	require.Equal(t, http.StatusOK, code)

	code, env = c.do(http.MethodPost, path+"/abandon", student, nil)
	require.Equal(t, http.StatusOK, code, env.Message)

	code, _ = c.do(http.MethodPost, path+"/submit", student, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, env = c.do(http.MethodGet, "/api/credits/balance", student, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"balance":0`)
	assert.Contains(t, string(env.Data), `"rank":0`)
}

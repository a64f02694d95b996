package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"plantpal-backend/internal/task/domain"
	"plantpal-backend/internal/task/repository"
	"plantpal-backend/internal/task/store"
	"plantpal-backend/internal/task/usecase"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRepo struct {
	repository.TaskRepository
}

func (failingRepo) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	return domain.Errorf(domain.KindNetwork, "backend unavailable")
}

func newRouter(repo repository.TaskRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	uc := usecase.NewTaskUsecase(store.NewRegistry(repo), nil, nil, nil)
	h := NewTaskHandler(uc, func() int { return 2 })

	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		if user := c.GetHeader("X-User"); user != "" {
			c.Set("userID", user)
		}
	})
	api.GET("/tasks", h.GetTasks)
	api.POST("/tasks/refresh", h.RefreshTasks)
	api.GET("/tasks/quick", h.GetQuickTasks)
	api.GET("/tasks/summary", h.GetSummary)
	api.POST("/tasks", h.CreateTask)
	api.PATCH("/tasks/:id", h.UpdateTask)
	api.DELETE("/tasks/:id", h.DeleteTask)
	api.POST("/tasks/:id/favorite", h.ToggleFavorite)
	api.POST("/tasks/:id/complete", h.CompleteTask)
	api.POST("/tasks/:id/skip", h.SkipTask)
	api.GET("/suggestions", h.GetSuggestions)
	api.POST("/suggestions/:id/adopt", h.AdoptSuggestion)
	api.POST("/session/end", h.EndSession)
	return r
}

func do(t *testing.T, r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	return doAs(t, r, "u1", method, target, body)
}

func doAs(t *testing.T, r http.Handler, user, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("X-User", user)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestTaskHandler_CreateCompleteAndList(t *testing.T) {
	r := newRouter(repository.NewMemoryRepository(nil))

	w := do(t, r, http.MethodPost, "/api/tasks", `{"title":"Water plants","category_type":"Daily","icon_ref":"can"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[domain.Task](t, w)
	assert.Equal(t, domain.CategoryDaily, created.Category)
	assert.Equal(t, domain.DefaultPoints, created.Points)

	w = do(t, r, http.MethodPost, "/api/tasks/"+created.ID+"/complete", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.TaskStatusCompleted, decode[domain.Task](t, w).Status)

	w = do(t, r, http.MethodGet, "/api/tasks?tab=completed", "")
	require.Equal(t, http.StatusOK, w.Code)
	completed := decode[usecase.TaskView](t, w)
	require.Len(t, completed.Tasks, 1)
	assert.Equal(t, created.ID, completed.Tasks[0].ID)

	w = do(t, r, http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, w.Code)
	active := decode[usecase.TaskView](t, w)
	assert.Empty(t, active.Tasks)
	require.NotNil(t, active.Sections)

	w = do(t, r, http.MethodGet, "/api/tasks/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.DefaultPoints, decode[store.Summary](t, w).PointsEarned)
}

func TestTaskHandler_ValidationAndStatusErrors(t *testing.T) {
	r := newRouter(repository.NewMemoryRepository(nil))

	w := do(t, r, http.MethodPost, "/api/tasks", `{"title":"  ","category_type":"daily","icon_ref":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(domain.KindValidation), decode[map[string]string](t, w)["kind"])

	w = do(t, r, http.MethodGet, "/api/tasks?tab=archived", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/tasks", `{"title":"a","category_type":"daily","icon_ref":"x"}`)
	id := decode[domain.Task](t, w).ID
	do(t, r, http.MethodPost, "/api/tasks/"+id+"/skip", "")

	w = do(t, r, http.MethodPatch, "/api/tasks/"+id, `{"status":"active"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPatch, "/api/tasks/ghost", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskHandler_OtherUsersTaskIsNotFound(t *testing.T) {
	r := newRouter(repository.NewMemoryRepository(nil))

	w := doAs(t, r, "alice", http.MethodPost, "/api/tasks", `{"title":"Water plants","category_type":"daily","icon_ref":"can"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[domain.Task](t, w).ID

	assert.Equal(t, http.StatusNotFound, doAs(t, r, "bob", http.MethodPatch, "/api/tasks/"+id, `{"title":"mine"}`).Code)
	assert.Equal(t, http.StatusNotFound, doAs(t, r, "bob", http.MethodPost, "/api/tasks/"+id+"/complete", "").Code)
	assert.Equal(t, http.StatusNotFound, doAs(t, r, "bob", http.MethodDelete, "/api/tasks/"+id, "").Code)

	w = doAs(t, r, "alice", http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[usecase.TaskView](t, w)
	require.Len(t, view.Tasks, 1)
	assert.Equal(t, "Water plants", view.Tasks[0].Title)
	assert.Equal(t, domain.TaskStatusActive, view.Tasks[0].Status)
}

func TestTaskHandler_Unauthenticated(t *testing.T) {
	r := newRouter(repository.NewMemoryRepository(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTaskHandler_FailedDeleteKeepsTask(t *testing.T) {
	r := newRouter(failingRepo{repository.NewMemoryRepository(nil)})

	w := do(t, r, http.MethodPost, "/api/tasks", `{"title":"a","category_type":"personal","icon_ref":"x"}`)
	id := decode[domain.Task](t, w).ID

	w = do(t, r, http.MethodDelete, "/api/tasks/"+id, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = do(t, r, http.MethodGet, "/api/tasks", "")
	view := decode[usecase.TaskView](t, w)
	require.Len(t, view.Tasks, 1)
	require.NotNil(t, view.LastError)
	assert.Equal(t, domain.KindNetwork, view.LastError.Kind)
}

func TestTaskHandler_QuickViewUsesRuntimeLimit(t *testing.T) {
	r := newRouter(repository.NewMemoryRepository(nil))
	for _, title := range []string{"a", "b", "c"} {
		do(t, r, http.MethodPost, "/api/tasks", `{"title":"`+title+`","category_type":"daily","icon_ref":"x"}`)
	}

	w := do(t, r, http.MethodGet, "/api/tasks/quick", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]domain.Task](t, w)["tasks"], 2)

	w = do(t, r, http.MethodGet, "/api/tasks/quick?limit=1", "")
	assert.Len(t, decode[map[string][]domain.Task](t, w)["tasks"], 1)

	w = do(t, r, http.MethodGet, "/api/tasks/quick?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskHandler_FavoriteUnknownIsNoop(t *testing.T) {
	r := newRouter(repository.NewMemoryRepository(nil))

	w := do(t, r, http.MethodPost, "/api/tasks/ghost/favorite", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]interface{}](t, w)["changed"])
}

func TestTaskHandler_Suggestions(t *testing.T) {
	r := newRouter(repository.NewMemoryRepository(repository.BuiltinSuggestions()))

	w := do(t, r, http.MethodGet, "/api/suggestions?q=journal", "")
	require.Equal(t, http.StatusOK, w.Code)
	hits := decode[map[string][]domain.Suggestion](t, w)["suggestions"]
	require.NotEmpty(t, hits)
	assert.Equal(t, "journal", hits[0].ID)

	w = do(t, r, http.MethodPost, "/api/suggestions/journal/adopt", `{"category_type":"personal","icon_ref":"pen"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Write in your journal", decode[domain.Task](t, w).Title)

	w = do(t, r, http.MethodPost, "/api/session/end", "")
	assert.Equal(t, true, decode[map[string]interface{}](t, w)["closed"])
}

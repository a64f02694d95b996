package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"plantpal-backend/internal/task/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedStore(t *testing.T, repo *fakeRepo) *TaskStore {
	t.Helper()
	s := New("u1", repo)
	require.NoError(t, s.FetchTasks(context.Background(), "u1"))
	return s
}

func ids(tasks []domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestFetchTasks_ReplacesAndNormalizes(t *testing.T) {
	repo := newFakeRepo()
	repo.FetchFunc = func(ctx context.Context, userID string) ([]domain.Task, []domain.TaskDetail, error) {
		return []domain.Task{
				{ID: "a", OwnerID: "u1", Category: " Daily", Status: "", Points: 0},
				{ID: "b", OwnerID: "u1", Category: "personal", Status: "COMPLETED", Points: 8},
				{ID: "x", OwnerID: "someone-else", Category: "daily"},
				{ID: "w", OwnerID: "u1", Category: "work"},
			}, []domain.TaskDetail{
				{TaskID: "a", AllDay: true, Recurrence: "Weekly"},
				{TaskID: "ghost", AllDay: true},
			}, nil
	}

	s := New("u1", repo)
	require.NoError(t, s.FetchTasks(context.Background(), "u1"))

	st := s.Snapshot()
	assert.Equal(t, []string{"a", "b"}, ids(st.Tasks))
	assert.Equal(t, domain.CategoryDaily, st.Tasks[0].Category)
	assert.Equal(t, domain.TaskStatusActive, st.Tasks[0].Status)
	assert.Equal(t, domain.DefaultPoints, st.Tasks[0].Points)
	assert.Equal(t, domain.TaskStatusCompleted, st.Tasks[1].Status)
	assert.Len(t, st.Details, 1)
	assert.Equal(t, domain.RecurrenceWeekly, st.Details["a"].Recurrence)
	assert.False(t, st.Loading)
	assert.Nil(t, st.LastError)
	assert.True(t, s.Loaded())
}

func TestFetchTasks_Idempotent(t *testing.T) {
	repo := newFakeRepo(
		task("t1", "daily", domain.TaskStatusActive, false),
		task("t2", "personal", domain.TaskStatusCompleted, true),
	)
	s := New("u1", repo)

	require.NoError(t, s.FetchTasks(context.Background(), "u1"))
	first := s.Snapshot()
	require.NoError(t, s.FetchTasks(context.Background(), "u1"))
	second := s.Snapshot()

	assert.Equal(t, first, second)
	assert.Equal(t, 2, repo.count("fetch"))
}

func TestFetchTasks_FailureKeepsStaleList(t *testing.T) {
	repo := newFakeRepo(task("t1", "daily", domain.TaskStatusActive, false))
	s := loadedStore(t, repo)

	repo.FetchFunc = func(ctx context.Context, userID string) ([]domain.Task, []domain.TaskDetail, error) {
		return nil, nil, errors.New("dial tcp: i/o timeout")
	}
	err := s.FetchTasks(context.Background(), "u1")

	require.Error(t, err)
	st := s.Snapshot()
	assert.Equal(t, []string{"t1"}, ids(st.Tasks))
	require.NotNil(t, st.LastError)
	assert.Equal(t, domain.KindNetwork, st.LastError.Kind)
	assert.False(t, st.Loading)

	// a later success clears the error
	repo.FetchFunc = nil
	require.NoError(t, s.FetchTasks(context.Background(), "u1"))
	assert.Nil(t, s.Snapshot().LastError)
}

func TestFetchTasks_Unauthenticated(t *testing.T) {
	repo := newFakeRepo()
	s := New("u1", repo)

	err := s.FetchTasks(context.Background(), "")
	assert.Equal(t, domain.KindUnauthenticated, domain.KindOf(err))

	err = s.FetchTasks(context.Background(), "u2")
	assert.Equal(t, domain.KindUnauthenticated, domain.KindOf(err))

	assert.Zero(t, repo.totalCalls())
	assert.Equal(t, domain.KindUnauthenticated, s.Snapshot().LastError.Kind)
}

func TestFetchTasks_NewestIssuedWins(t *testing.T) {
	slowRelease := make(chan struct{})
	slowStarted := make(chan struct{})
	repo := newFakeRepo()
	calls := 0
	repo.FetchFunc = func(ctx context.Context, userID string) ([]domain.Task, []domain.TaskDetail, error) {
		calls++
		if calls == 1 {
			close(slowStarted)
			<-slowRelease
			return []domain.Task{task("old", "daily", domain.TaskStatusActive, false)}, nil, nil
		}
		return []domain.Task{task("new", "daily", domain.TaskStatusActive, false)}, nil, nil
	}
	s := New("u1", repo)

	done := make(chan error, 1)
	go func() { done <- s.FetchTasks(context.Background(), "u1") }()
	<-slowStarted

	require.NoError(t, s.FetchTasks(context.Background(), "u1"))
	close(slowRelease)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"new"}, ids(s.Snapshot().Tasks))
	assert.False(t, s.Snapshot().Loading)
}

func TestFetchTasks_CancelledResponseDiscarded(t *testing.T) {
	repo := newFakeRepo(task("t1", "daily", domain.TaskStatusActive, false))
	s := loadedStore(t, repo)

	ctx, cancel := context.WithCancel(context.Background())
	repo.FetchFunc = func(context.Context, string) ([]domain.Task, []domain.TaskDetail, error) {
		cancel()
		return []domain.Task{}, nil, nil
	}

	err := s.FetchTasks(ctx, "u1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"t1"}, ids(s.Snapshot().Tasks))
	assert.Nil(t, s.Snapshot().LastError)
	assert.False(t, s.Snapshot().Loading)
}

func TestCreateTask_AppendsWithDefaultPoints(t *testing.T) {
	repo := newFakeRepo()
	s := loadedStore(t, repo)

	created, err := s.CreateTask(context.Background(), domain.Draft{
		Title:    "  Drink water ",
		Category: " DAILY",
		IconRef:  "glass",
		Detail:   &domain.TaskDetail{AllDay: true, Recurrence: "daily"},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPoints, created.Points)
	assert.Equal(t, "Drink water", created.Title)
	assert.Equal(t, domain.CategoryDaily, created.Category)
	assert.Equal(t, domain.TaskStatusActive, created.Status)
	assert.False(t, created.IsFavorite)

	st := s.Snapshot()
	require.Len(t, st.Tasks, 1)
	assert.Equal(t, 5, st.Tasks[0].Points)
	assert.Equal(t, created.ID, st.Details[created.ID].TaskID)
}

func TestCreateTask_ValidationNeverReachesRepository(t *testing.T) {
	repo := newFakeRepo()
	s := New("u1", repo)

	_, err := s.CreateTask(context.Background(), domain.Draft{Title: "Walk", Category: domain.CategoryPersonal})

	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Zero(t, repo.count("create"))
	assert.Equal(t, domain.KindValidation, s.Snapshot().LastError.Kind)
}

func TestCreateTask_FailureLeavesListUnchanged(t *testing.T) {
	repo := newFakeRepo(task("t1", "daily", domain.TaskStatusActive, false))
	s := loadedStore(t, repo)
	repo.CreateFunc = func(context.Context, string, domain.Draft) (domain.Task, error) {
		return domain.Task{}, domain.Errorf(domain.KindNetwork, "offline")
	}

	_, err := s.CreateTask(context.Background(), domain.Draft{Title: "Walk", Category: "personal", IconRef: "shoe"})

	assert.Equal(t, domain.KindNetwork, domain.KindOf(err))
	assert.Equal(t, []string{"t1"}, ids(s.Snapshot().Tasks))
}

func TestUpdateTask_MergesConfirmedFields(t *testing.T) {
	repo := newFakeRepo(task("t1", "daily", domain.TaskStatusActive, false))
	s := loadedStore(t, repo)

	title := "Evening walk"
	updated, err := s.UpdateTask(context.Background(), "t1", domain.Fields{
		Title:  &title,
		Detail: &domain.TaskDetail{AllDay: false, Recurrence: "monthly"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Evening walk", updated.Title)

	got, ok := s.Task("t1")
	require.True(t, ok)
	assert.Equal(t, "Evening walk", got.Title)
	assert.Equal(t, domain.RecurrenceMonthly, s.Snapshot().Details["t1"].Recurrence)
}

func TestUpdateTask_FailureLeavesTaskUnchanged(t *testing.T) {
	repo := newFakeRepo(task("t1", "daily", domain.TaskStatusActive, false))
	s := loadedStore(t, repo)
	repo.UpdateFunc = func(context.Context, string, string, domain.Fields) (domain.Task, error) {
		return domain.Task{}, errors.New("503 from backend")
	}

	title := "changed"
	_, err := s.UpdateTask(context.Background(), "t1", domain.Fields{Title: &title})

	assert.Equal(t, domain.KindNetwork, domain.KindOf(err))
	got, _ := s.Task("t1")
	assert.Equal(t, "task t1", got.Title)
}

func TestUpdateTask_UnknownLocallyStillSent(t *testing.T) {
	repo := newFakeRepo()
	s := loadedStore(t, repo)

	title := "x"
	_, err := s.UpdateTask(context.Background(), "missing", domain.Fields{Title: &title})

	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	assert.Equal(t, 1, repo.count("update"))
	assert.Equal(t, domain.KindNotFound, s.Snapshot().LastError.Kind)
}

func TestUpdateTask_RejectsInvalidFields(t *testing.T) {
	repo := newFakeRepo(task("t1", "daily", domain.TaskStatusCompleted, false))
	s := loadedStore(t, repo)

	active := domain.TaskStatusActive
	skipped := domain.TaskStatusSkipped
	bogus := domain.TaskStatus("paused")
	work := domain.Category("work")
	empty := " "

	for name, f := range map[string]domain.Fields{
		"empty":        {},
		"reactivate":   {Status: &active},
		"terminal":     {Status: &skipped},
		"bogus status": {Status: &bogus},
		"category":     {Category: &work},
		"blank title":  {Title: &empty},
	} {
		_, err := s.UpdateTask(context.Background(), "t1", f)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err), name)
	}
	assert.Zero(t, repo.count("update"))
}

func TestUpdateTask_ReactivationRejectedWhenTaskNotHeld(t *testing.T) {
	repo := newFakeRepo(task("c1", "daily", domain.TaskStatusCompleted, false))
	repo.FetchFunc = func(context.Context, string) ([]domain.Task, []domain.TaskDetail, error) {
		return nil, nil, errors.New("backend unavailable")
	}
	s := New("u1", repo)
	require.Error(t, s.FetchTasks(context.Background(), "u1"))

	active := domain.TaskStatusActive
	_, err := s.UpdateTask(context.Background(), "c1", domain.Fields{Status: &active})

	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Zero(t, repo.count("update"))
	assert.Equal(t, domain.TaskStatusCompleted, repo.tasks[0].Status)
}

func TestUpdateTask_ReturnsRepositoryCopyWhenNotHeld(t *testing.T) {
	repo := newFakeRepo()
	s := loadedStore(t, repo)
	repo.tasks = []domain.Task{task("late", "personal", domain.TaskStatusActive, false)}

	title := "renamed"
	got, err := s.UpdateTask(context.Background(), "late", domain.Fields{Title: &title})

	require.NoError(t, err)
	assert.Equal(t, "late", got.ID)
	assert.Equal(t, "u1", got.OwnerID)
	assert.Equal(t, "renamed", got.Title)
}

func TestMutations_CannotReachAnotherOwnersTask(t *testing.T) {
	repo := newFakeRepo(domain.Task{ID: "a1", OwnerID: "alice", Category: "daily", Title: "Water", Status: domain.TaskStatusCompleted})
	bob := New("bob", repo)
	require.NoError(t, bob.FetchTasks(context.Background(), "bob"))

	skipped := domain.TaskStatusSkipped
	_, err := bob.UpdateTask(context.Background(), "a1", domain.Fields{Status: &skipped})
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	err = bob.DeleteTask(context.Background(), "a1")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	require.Len(t, repo.tasks, 1)
	assert.Equal(t, domain.TaskStatusCompleted, repo.tasks[0].Status)
}

func TestUpdateTask_OlderConfirmationDoesNotOverwriteNewer(t *testing.T) {
	repo := newFakeRepo(task("t1", "daily", domain.TaskStatusActive, false))
	s := loadedStore(t, repo)

	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	repo.UpdateFunc = func(ctx context.Context, ownerID, taskID string, fields domain.Fields) (domain.Task, error) {
		if *fields.Title == "first" {
			close(firstStarted)
			<-releaseFirst
		}
		return domain.Task{ID: taskID}, nil
	}

	first, second := "first", "second"
	done := make(chan error, 1)
	go func() {
		_, err := s.UpdateTask(context.Background(), "t1", domain.Fields{Title: &first})
		done <- err
	}()
	<-firstStarted

	_, err := s.UpdateTask(context.Background(), "t1", domain.Fields{Title: &second})
	require.NoError(t, err)
	close(releaseFirst)
	require.NoError(t, <-done)

	got, _ := s.Task("t1")
	assert.Equal(t, "second", got.Title)
}

func TestDeleteTask_RemovesTaskAndDetail(t *testing.T) {
	repo := newFakeRepo(task("t1", "daily", domain.TaskStatusActive, false), task("t2", "daily", domain.TaskStatusActive, false))
	repo.FetchFunc = func(context.Context, string) ([]domain.Task, []domain.TaskDetail, error) {
		return []domain.Task{task("t1", "daily", domain.TaskStatusActive, false), task("t2", "daily", domain.TaskStatusActive, false)},
			[]domain.TaskDetail{{TaskID: "t1"}}, nil
	}
	s := loadedStore(t, repo)

	require.NoError(t, s.DeleteTask(context.Background(), "t1"))

	st := s.Snapshot()
	assert.Equal(t, []string{"t2"}, ids(st.Tasks))
	assert.Empty(t, st.Details)
	assert.Equal(t, 1, repo.count("deleteDetails"))
	assert.Equal(t, 1, repo.count("delete"))
}

func TestDeleteTask_FailureAfterDetailsKeepsTask(t *testing.T) {
	repo := newFakeRepo(task("t1", "daily", domain.TaskStatusActive, false))
	s := loadedStore(t, repo)
	repo.DeleteDetailsFunc = func(context.Context, string, string) error { return nil }
	repo.DeleteFunc = func(context.Context, string, string) error {
		return domain.Errorf(domain.KindNetwork, "connection dropped")
	}

	err := s.DeleteTask(context.Background(), "t1")

	require.Error(t, err)
	st := s.Snapshot()
	assert.Equal(t, []string{"t1"}, ids(st.Tasks))
	require.NotNil(t, st.LastError)
	assert.Equal(t, domain.KindNetwork, st.LastError.Kind)
}

func TestDeleteTask_DetailFailureSkipsTaskDelete(t *testing.T) {
	repo := newFakeRepo(task("t1", "daily", domain.TaskStatusActive, false))
	s := loadedStore(t, repo)
	repo.DeleteDetailsFunc = func(context.Context, string, string) error { return errors.New("timeout") }

	require.Error(t, s.DeleteTask(context.Background(), "t1"))
	assert.Zero(t, repo.count("delete"))
	assert.Equal(t, []string{"t1"}, ids(s.Snapshot().Tasks))
}

func TestToggleFavorite(t *testing.T) {
	repo := newFakeRepo(task("t1", "daily", domain.TaskStatusCompleted, false))
	s := loadedStore(t, repo)

	require.NoError(t, s.ToggleFavorite(context.Background(), "t1"))
	got, _ := s.Task("t1")
	assert.True(t, got.IsFavorite)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)

	require.NoError(t, s.ToggleFavorite(context.Background(), "t1"))
	got, _ = s.Task("t1")
	assert.False(t, got.IsFavorite)
}

func TestToggleFavorite_UnknownIDIsNoop(t *testing.T) {
	repo := newFakeRepo(task("t1", "daily", domain.TaskStatusActive, false))
	s := loadedStore(t, repo)
	before := s.Snapshot()
	callsBefore := repo.totalCalls()

	require.NoError(t, s.ToggleFavorite(context.Background(), "nonexistent"))

	assert.Equal(t, callsBefore, repo.totalCalls())
	assert.Equal(t, before, s.Snapshot())
}

func TestMarkCompleted_LeavesActiveTab(t *testing.T) {
	repo := newFakeRepo(task("t1", "daily", domain.TaskStatusActive, false), task("t2", "daily", domain.TaskStatusActive, false))
	s := loadedStore(t, repo)

	require.NoError(t, s.MarkCompleted(context.Background(), "t1"))

	assert.Equal(t, []string{"t2"}, ids(s.Tab(TabActive)))
	assert.Equal(t, []string{"t1"}, ids(s.Tab(TabCompleted)))

	// the exposed API offers no way back
	err := s.Skip(context.Background(), "t1")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.NotContains(t, ids(s.Tab(TabActive)), "t1")
}

func TestSkip(t *testing.T) {
	repo := newFakeRepo(task("t1", "personal", domain.TaskStatusActive, true))
	s := loadedStore(t, repo)

	require.NoError(t, s.Skip(context.Background(), "t1"))

	assert.Empty(t, s.Tab(TabActive))
	assert.Empty(t, s.Tab(TabCompleted))
	assert.Equal(t, []string{"t1"}, ids(s.Tab(TabFavorite)))
	assert.Equal(t, 1, s.Summary().Skipped)
}

func TestFetchSuggestions(t *testing.T) {
	repo := newFakeRepo()
	s := New("u1", repo)

	repo.SuggestionsFunc = func(context.Context, string) ([]domain.Suggestion, error) {
		return []domain.Suggestion{
			{ID: "s1", Title: "Drink water", Category: "Daily", IconRef: "glass"},
			{ID: "s2", Title: "Plan sprint", Category: "work", IconRef: "board"},
		}, nil
	}

	got, err := s.FetchSuggestions(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.CategoryDaily, got[0].Category)
	assert.Equal(t, domain.DefaultPoints, got[0].Points)

	_, err = s.FetchSuggestions(context.Background(), "")
	assert.Equal(t, domain.KindUnauthenticated, domain.KindOf(err))
}

func TestClose_RejectsFurtherCommands(t *testing.T) {
	repo := newFakeRepo(task("t1", "daily", domain.TaskStatusActive, false))
	s := loadedStore(t, repo)

	s.Close()

	assert.Empty(t, s.Snapshot().Tasks)
	err := s.FetchTasks(context.Background(), "u1")
	assert.Equal(t, domain.KindUnauthenticated, domain.KindOf(err))
	_, err = s.CreateTask(context.Background(), domain.Draft{Title: "a", Category: "daily", IconRef: "i"})
	assert.Equal(t, domain.KindUnauthenticated, domain.KindOf(err))
	assert.Equal(t, 1, repo.count("fetch"))
}

func TestObserverSeesEveryChange(t *testing.T) {
	repo := newFakeRepo(task("t1", "daily", domain.TaskStatusActive, false))
	s := New("u1", repo)

	states := make(chan State, 10)
	s.SetObserver(func(st State) { states <- st })

	require.NoError(t, s.FetchTasks(context.Background(), "u1"))

	select {
	case st := <-states:
		assert.True(t, st.Loading)
	case <-time.After(time.Second):
		t.Fatal("no loading notification")
	}
	select {
	case st := <-states:
		assert.False(t, st.Loading)
		assert.Len(t, st.Tasks, 1)
	case <-time.After(time.Second):
		t.Fatal("no loaded notification")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	repo := newFakeRepo(task("t1", "daily", domain.TaskStatusActive, false))
	s := loadedStore(t, repo)

	st := s.Snapshot()
	st.Tasks[0].Title = "mutated"

	got, _ := s.Task("t1")
	assert.Equal(t, "task t1", got.Title)
}

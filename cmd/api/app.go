package api

import (
	"context"
	"fmt"
	"log"
	"os"

	authdomain "plantpal-backend/internal/auth/domain"
	authRepo "plantpal-backend/internal/auth/repository"
	authUsecase "plantpal-backend/internal/auth/usecase"
	"plantpal-backend/internal/notification"
	taskRepo "plantpal-backend/internal/task/repository"
	"plantpal-backend/internal/task/scheduler"
	"plantpal-backend/internal/task/store"
	taskUsecase "plantpal-backend/internal/task/usecase"
	"plantpal-backend/pkg/config"
	"plantpal-backend/pkg/database"
	"plantpal-backend/pkg/fcm"
	pkgfirebase "plantpal-backend/pkg/firebase"
	"plantpal-backend/pkg/metrics"
	"plantpal-backend/pkg/sse"

	firebase "firebase.google.com/go/v4"
	"gorm.io/gorm"
)

// App holds every long-lived dependency of the service
type App struct {
	Config      *config.Config
	Metrics     *metrics.Metrics
	Registry    *store.Registry
	TaskUsecase taskUsecase.TaskUsecase
	Devices     authRepo.DeviceTokenRepository
	Verifier    authUsecase.TokenVerifier
	Publisher   notification.Publisher
	SSE         *sse.Manager
	Settings    *RuntimeSettings
	Scheduler   *scheduler.DailyReminderScheduler

	db          *gorm.DB
	firebaseApp *firebase.App
	relay       *notification.PubSubPublisher
	closers     []func() error
}

// NewApp wires the dependencies selected by cfg
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{
		Config:   cfg,
		Metrics:  metrics.New(),
		SSE:      sse.NewManager(),
		Settings: NewRuntimeSettings(cfg.QuickViewLimit, cfg.ReminderEnabled),
	}

	repo, err := a.taskRepository(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Registry = store.NewRegistry(taskRepo.Instrument(repo, a.Metrics))

	if a.Devices, err = a.deviceRepository(); err != nil {
		a.Close()
		return nil, err
	}
	if a.Verifier, err = a.tokenVerifier(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if a.Publisher, err = a.publisher(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.Publisher.Close)

	a.TaskUsecase = taskUsecase.NewTaskUsecase(a.Registry, a.Publisher, a.SSE, a.Metrics)

	var sender fcm.Sender
	if client := a.fcmClient(ctx); client != nil {
		sender = client
	}
	a.Scheduler = scheduler.NewDailyReminderScheduler(a.Registry, a.Devices, sender, a.Settings, scheduler.Options{
		Interval: cfg.ReminderInterval,
		Hour:     cfg.ReminderHour,
		Metrics:  a.Metrics,
	})

	return a, nil
}

// Close releases clients in reverse order of creation
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("[App] Error during shutdown: %v", err)
		}
	}
	a.closers = nil
}

func (a *App) taskRepository(ctx context.Context) (taskRepo.TaskRepository, error) {
	suggestions := taskRepo.BuiltinSuggestions()

	switch a.Config.TaskBackend {
	case config.BackendMemory:
		log.Println("[App] Using in-memory task repository")
		return taskRepo.NewMemoryRepository(suggestions), nil

	case config.BackendPostgres:
		db, err := a.database()
		if err != nil {
			return nil, err
		}
		log.Println("[App] Using postgres task repository")
		return taskRepo.NewGormTaskRepository(db, suggestions)

	case config.BackendFirestore:
		app, err := a.firebase(ctx)
		if err != nil {
			return nil, err
		}
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get firestore client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		log.Println("[App] Using firestore task repository")
		return taskRepo.NewFirestoreRepository(client, suggestions), nil
	}
	return nil, fmt.Errorf("unknown TASK_BACKEND %q", a.Config.TaskBackend)
}

// deviceRepository keeps push tokens next to the tasks when postgres is in
// use and in memory otherwise
func (a *App) deviceRepository() (authRepo.DeviceTokenRepository, error) {
	if a.Config.TaskBackend != config.BackendPostgres {
		return authRepo.NewMemoryDeviceTokenRepository(), nil
	}
	db, err := a.database()
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&authdomain.DeviceToken{}); err != nil {
		return nil, fmt.Errorf("failed to migrate device tokens: %w", err)
	}
	return authRepo.NewDeviceTokenRepository(db), nil
}

func (a *App) tokenVerifier(ctx context.Context) (authUsecase.TokenVerifier, error) {
	switch a.Config.AuthProvider {
	case config.AuthJWT:
		return authUsecase.NewJWTVerifier(a.Config.JWTSecret), nil
	case config.AuthFirebase:
		app, err := a.firebase(ctx)
		if err != nil {
			return nil, err
		}
		client, err := app.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get firebase auth client: %w", err)
		}
		return authUsecase.NewFirebaseVerifier(client), nil
	}
	return nil, fmt.Errorf("unknown AUTH_PROVIDER %q", a.Config.AuthProvider)
}

func (a *App) publisher(ctx context.Context) (notification.Publisher, error) {
	switch a.Config.EventsBackend {
	case config.EventsNone, "":
		return notification.NewNopPublisher(), nil

	case config.EventsNATS:
		return notification.NewNATSPublisher(a.Config.NATSURL, a.Config.NATSSubject)

	case config.EventsPubSub:
		projectID := a.Config.GoogleProjectID
		if projectID == "" {
			projectID = a.Config.FirebaseProjectID
		}
		p, err := notification.NewPubSubPublisher(ctx, projectID, a.Config.GooglePubSubTopic, a.Config.GoogleCredentials)
		if err != nil {
			return nil, err
		}
		a.relay = p
		return p, nil
	}
	return nil, fmt.Errorf("unknown EVENTS_BACKEND %q", a.Config.EventsBackend)
}

// StartEventRelay forwards task events published by other instances to this
// instance's SSE streams until ctx is done. A no-op unless events go through
// Pub/Sub.
func (a *App) StartEventRelay(ctx context.Context) {
	if a.relay == nil {
		return
	}
	host, _ := os.Hostname()
	go func() {
		err := a.relay.Listen(ctx, a.Config.GooglePubSubTopic+"-sse-"+host, func(e notification.Event) {
			a.SSE.SendToUser(e.UserID, "task_event", e)
		})
		if err != nil && ctx.Err() == nil {
			log.Printf("[PubSub] Listener stopped: %v", err)
		}
	}()
}

// fcmClient returns nil when Firebase is not configured; reminders are then off
func (a *App) fcmClient(ctx context.Context) *fcm.Client {
	if a.Config.FirebaseCredentials == "" && a.Config.FirebaseProjectID == "" {
		log.Println("[App] No Firebase configuration, push reminders disabled")
		return nil
	}
	app, err := a.firebase(ctx)
	if err != nil {
		log.Printf("[WARN] Failed to initialize Firebase (push reminders disabled): %v", err)
		return nil
	}
	client, err := fcm.NewClient(ctx, app)
	if err != nil {
		log.Printf("[WARN] Failed to initialize FCM client (push reminders disabled): %v", err)
		return nil
	}
	return client
}

func (a *App) database() (*gorm.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := database.NewPostgresConnection(a.Config)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	a.db = db
	return db, nil
}

func (a *App) firebase(ctx context.Context) (*firebase.App, error) {
	if a.firebaseApp != nil {
		return a.firebaseApp, nil
	}
	app, err := pkgfirebase.NewApp(ctx, a.Config)
	if err != nil {
		return nil, err
	}
	a.firebaseApp = app
	return app, nil
}

package scheduler

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	authrepo "plantpal-backend/internal/auth/repository"
	"plantpal-backend/internal/task/domain"
	"plantpal-backend/internal/task/store"
	"plantpal-backend/pkg/fcm"
	"plantpal-backend/pkg/metrics"
)

// Settings are read on every sweep so they can change at runtime
type Settings interface {
	ReminderEnabled() bool
	QuickViewLimit() int
}

// Options configures a DailyReminderScheduler
type Options struct {
	Interval time.Duration
	// Hour is the local hour from which the day's reminder may be sent
	Hour    int
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// DailyReminderScheduler pushes the remaining daily quick-view tasks to each
// user's devices, at most once per calendar day. Recurrence metadata is not
// consulted.
type DailyReminderScheduler struct {
	registry *store.Registry
	devices  authrepo.DeviceTokenRepository
	sender   fcm.Sender
	settings Settings
	opts     Options

	mu       sync.Mutex
	lastSent map[string]string // userID -> day
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewDailyReminderScheduler(registry *store.Registry, devices authrepo.DeviceTokenRepository, sender fcm.Sender, settings Settings, opts Options) *DailyReminderScheduler {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &DailyReminderScheduler{
		registry: registry,
		devices:  devices,
		sender:   sender,
		settings: settings,
		opts:     opts,
		lastSent: make(map[string]string),
		stopChan: make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *DailyReminderScheduler) Start() {
	if s.sender == nil {
		log.Println("[Scheduler] FCM sender not available, daily reminders disabled")
		return
	}

	log.Printf("[Scheduler] Starting daily reminder scheduler (interval: %s, hour: %d)", s.opts.Interval, s.opts.Hour)

	go func() {
		s.RunOnce(context.Background())

		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.RunOnce(context.Background())
			case <-s.stopChan:
				log.Println("[Scheduler] Scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler
func (s *DailyReminderScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// RunOnce performs one sweep and returns how many users were notified
func (s *DailyReminderScheduler) RunOnce(ctx context.Context) int {
	if s.sender == nil || !s.settings.ReminderEnabled() {
		return 0
	}
	now := s.opts.Now()
	if now.Hour() < s.opts.Hour {
		return 0
	}
	day := now.Format("2006-01-02")
	s.forgetBefore(day)

	users, err := s.devices.UsersWithTokens()
	if err != nil {
		log.Printf("[Scheduler] Error listing users with devices: %v", err)
		return 0
	}

	sent := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			break
		}
		if s.sentOn(userID) == day {
			continue
		}
		if s.remind(ctx, userID) {
			s.markSent(userID, day)
			sent++
		}
	}
	if sent > 0 {
		log.Printf("[Scheduler] Sent daily reminders to %d users", sent)
	}
	return sent
}

func (s *DailyReminderScheduler) remind(ctx context.Context, userID string) bool {
	ts, err := s.registry.Transient(userID)
	if err != nil {
		return false
	}
	if !ts.Loaded() {
		if err := ts.FetchTasks(ctx, userID); err != nil {
			log.Printf("[Scheduler] Error loading tasks for user %s: %v", userID, err)
			return false
		}
	}

	tasks := ts.Quick(domain.CategoryDaily, s.settings.QuickViewLimit())
	if len(tasks) == 0 {
		return false
	}
	remaining := len(ts.Sections().Daily)

	tokens, err := s.devices.GetTokensByUserID(userID)
	if err != nil {
		log.Printf("[Scheduler] Error getting device tokens for user %s: %v", userID, err)
		return false
	}
	if len(tokens) == 0 {
		return false
	}
	tokenStrings := make([]string, 0, len(tokens))
	for _, t := range tokens {
		tokenStrings = append(tokenStrings, t.Token)
	}

	failedTokens, err := s.sender.SendToDevices(ctx, tokenStrings, BuildReminder(tasks, remaining))
	if err != nil {
		log.Printf("[Scheduler] Error sending reminder to user %s: %v", userID, err)
		return false
	}

	// Cleanup failed tokens
	for _, token := range failedTokens {
		if err := s.devices.DeleteToken(token); err != nil {
			log.Printf("[Scheduler] Error deleting stale token: %v", err)
		}
	}
	if len(failedTokens) == len(tokenStrings) {
		return false
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.RemindersSent.Inc()
	}
	return true
}

// BuildReminder renders the push payload for the quick-view tasks
func BuildReminder(tasks []domain.Task, remaining int) fcm.NotificationData {
	titles := make([]string, 0, len(tasks))
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		titles = append(titles, t.Title)
		ids = append(ids, t.ID)
	}

	title := "Your plant is waiting"
	body := fmt.Sprintf("%d daily tasks left: %s", remaining, strings.Join(titles, ", "))
	if remaining == 1 {
		body = "1 daily task left: " + titles[0]
	}
	return fcm.NotificationData{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":      "daily_reminder",
			"remaining": strconv.Itoa(remaining),
			"task_ids":  strings.Join(ids, ","),
		},
	}
}

func (s *DailyReminderScheduler) sentOn(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSent[userID]
}

func (s *DailyReminderScheduler) markSent(userID, day string) {
	s.mu.Lock()
	s.lastSent[userID] = day
	s.mu.Unlock()
}

// forgetBefore drops entries of earlier days; only today's matter
func (s *DailyReminderScheduler) forgetBefore(day string) {
	s.mu.Lock()
	for userID, sent := range s.lastSent {
		if sent != day {
			delete(s.lastSent, userID)
		}
	}
	s.mu.Unlock()
}

package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// RuntimeConfig holds runtime-configurable settings
type RuntimeConfig struct {
	QuickViewLimit  int  `json:"quick_view_limit"`
	ReminderEnabled bool `json:"reminder_enabled"`
}

// RuntimeSettings guards a RuntimeConfig. It satisfies the scheduler's
// Settings and feeds the task handler's quick view default.
type RuntimeSettings struct {
	mu  sync.RWMutex
	cfg RuntimeConfig
}

// NewRuntimeSettings initializes runtime config from static config
func NewRuntimeSettings(quickViewLimit int, reminderEnabled bool) *RuntimeSettings {
	if quickViewLimit <= 0 {
		quickViewLimit = 3
	}
	return &RuntimeSettings{cfg: RuntimeConfig{
		QuickViewLimit:  quickViewLimit,
		ReminderEnabled: reminderEnabled,
	}}
}

func (s *RuntimeSettings) QuickViewLimit() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.QuickViewLimit
}

func (s *RuntimeSettings) ReminderEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.ReminderEnabled
}

func (s *RuntimeSettings) Get() RuntimeConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// UpdateSettingsRequest represents the request body for updating settings
type UpdateSettingsRequest struct {
	QuickViewLimit  *int  `json:"quick_view_limit,omitempty"`
	ReminderEnabled *bool `json:"reminder_enabled,omitempty"`
}

// GetSettings returns current runtime configuration
// GET /api/settings
func (s *RuntimeSettings) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.Get())
}

// UpdateSettings updates configuration at runtime
// PUT /api/settings
func (s *RuntimeSettings) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.QuickViewLimit != nil && *req.QuickViewLimit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quick_view_limit must be positive"})
		return
	}

	s.mu.Lock()
	if req.QuickViewLimit != nil {
		s.cfg.QuickViewLimit = *req.QuickViewLimit
	}
	if req.ReminderEnabled != nil {
		s.cfg.ReminderEnabled = *req.ReminderEnabled
	}
	updated := s.cfg
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"message":  "Settings updated successfully",
		"settings": updated,
	})
}

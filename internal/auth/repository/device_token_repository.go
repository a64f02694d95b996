package repository

import (
	"sort"
	"sync"
	"time"

	authdomain "plantpal-backend/internal/auth/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceTokenRepository stores push registrations per user
type DeviceTokenRepository interface {
	SaveToken(userID, token, deviceInfo string) error
	GetTokensByUserID(userID string) ([]authdomain.DeviceToken, error)
	// UsersWithTokens lists every user that has at least one registered device
	UsersWithTokens() ([]string, error)
	DeleteToken(token string) error
	DeleteUserToken(userID, token string) error
}

type deviceTokenRepository struct {
	db *gorm.DB
}

// NewDeviceTokenRepository creates a Postgres-backed DeviceTokenRepository
func NewDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

// SaveToken saves or reassigns a device token (atomic upsert)
func (r *deviceTokenRepository) SaveToken(userID, token, deviceInfo string) error {
	now := time.Now()
	row := &authdomain.DeviceToken{
		ID:         uuid.New().String(),
		UserID:     userID,
		Token:      token,
		DeviceInfo: deviceInfo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// INSERT ... ON CONFLICT (token) DO UPDATE
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "device_info", "updated_at"}),
	}).Create(row).Error
}

func (r *deviceTokenRepository) GetTokensByUserID(userID string) ([]authdomain.DeviceToken, error) {
	var tokens []authdomain.DeviceToken
	if err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *deviceTokenRepository) UsersWithTokens() ([]string, error) {
	var users []string
	err := r.db.Model(&authdomain.DeviceToken{}).Distinct("user_id").Order("user_id").Pluck("user_id", &users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *deviceTokenRepository) DeleteToken(token string) error {
	return r.db.Where("token = ?", token).Delete(&authdomain.DeviceToken{}).Error
}

func (r *deviceTokenRepository) DeleteUserToken(userID, token string) error {
	return r.db.Where("user_id = ? AND token = ?", userID, token).Delete(&authdomain.DeviceToken{}).Error
}

type memoryDeviceTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]authdomain.DeviceToken // keyed by token
}

// NewMemoryDeviceTokenRepository creates an in-process DeviceTokenRepository
func NewMemoryDeviceTokenRepository() DeviceTokenRepository {
	return &memoryDeviceTokenRepository{tokens: make(map[string]authdomain.DeviceToken)}
}

func (r *memoryDeviceTokenRepository) SaveToken(userID, token, deviceInfo string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	row, ok := r.tokens[token]
	if !ok {
		row = authdomain.DeviceToken{ID: uuid.New().String(), Token: token, CreatedAt: now}
	}
	row.UserID = userID
	row.DeviceInfo = deviceInfo
	row.UpdatedAt = now
	r.tokens[token] = row
	return nil
}

func (r *memoryDeviceTokenRepository) GetTokensByUserID(userID string) ([]authdomain.DeviceToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []authdomain.DeviceToken
	for _, t := range r.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryDeviceTokenRepository) UsersWithTokens() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var users []string
	for _, t := range r.tokens {
		if _, ok := seen[t.UserID]; ok {
			continue
		}
		seen[t.UserID] = struct{}{}
		users = append(users, t.UserID)
	}
	sort.Strings(users)
	return users, nil
}

func (r *memoryDeviceTokenRepository) DeleteToken(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	return nil
}

func (r *memoryDeviceTokenRepository) DeleteUserToken(userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[token]; ok && t.UserID == userID {
		delete(r.tokens, token)
	}
	return nil
}

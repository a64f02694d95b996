package usecase

import (
	"strings"

	authdomain "plantpal-backend/internal/auth/domain"
	"plantpal-backend/internal/auth/repository"
)

// DeviceUsecase manages push registrations for the signed-in user
type DeviceUsecase interface {
	RegisterDevice(userID, token, deviceInfo string) error
	UnregisterDevice(userID, token string) error
}

type deviceUsecase struct {
	repo repository.DeviceTokenRepository
}

func NewDeviceUsecase(repo repository.DeviceTokenRepository) DeviceUsecase {
	return &deviceUsecase{repo: repo}
}

func (u *deviceUsecase) RegisterDevice(userID, token, deviceInfo string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return authdomain.ErrDeviceTokenMissing
	}
	return u.repo.SaveToken(userID, token, strings.TrimSpace(deviceInfo))
}

func (u *deviceUsecase) UnregisterDevice(userID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return authdomain.ErrDeviceTokenMissing
	}
	return u.repo.DeleteUserToken(userID, token)
}

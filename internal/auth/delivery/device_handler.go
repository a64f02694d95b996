package delivery

import (
	"errors"
	"net/http"

	authdomain "plantpal-backend/internal/auth/domain"
	"plantpal-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

type DeviceHandler struct {
	devices usecase.DeviceUsecase
}

func NewDeviceHandler(devices usecase.DeviceUsecase) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

type registerDeviceRequest struct {
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

// RegisterDevice handles POST /api/devices
func (h *DeviceHandler) RegisterDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.devices.RegisterDevice(c.GetString("userID"), req.Token, req.DeviceInfo); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device registered"})
}

// UnregisterDevice handles DELETE /api/devices/:token
func (h *DeviceHandler) UnregisterDevice(c *gin.Context) {
	if err := h.devices.UnregisterDevice(c.GetString("userID"), c.Param("token")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device unregistered"})
}

func (h *DeviceHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, authdomain.ErrDeviceTokenMissing) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

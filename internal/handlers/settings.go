package handlers

import (
	"errors"
	"net/http"

	"agrismart/internal/models"
	"agrismart/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errGetSettings  = "failed to load settings"
	errSaveSettings = "failed to save settings"
)

// SettingsRequest is a partial update; omitted fields keep their saved value.
type SettingsRequest struct {
	ControllerIP *string            `json:"esp32_ip,omitempty" example:"192.168.1.11"`
	CameraIP     *string            `json:"espcam_ip,omitempty" example:"192.168.1.93"`
	Interval     *int               `json:"sensor_interval,omitempty" example:"5"`
	Thresholds   *models.Thresholds `json:"thresholds,omitempty"`
}

// @Summary      Get settings
// @Tags         settings
// @Produce      json
// @Success      200  {object}  models.Settings
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/settings [get]
func (h *Handler) getSettings(c *gin.Context) {
	st, err := h.services.Settings.Get(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetSettings, "settings_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Save settings
// @Description  Validates and persists the update, then pushes it to the controller. Values that cannot be delivered now are listed as deferred and sent on the next WebSocket open.
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        body  body      SettingsRequest  true  "Partial settings"
// @Success      200   {object}  service.SaveResult
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/settings [put]
func (h *Handler) saveSettings(c *gin.Context) {
	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	res, err := h.services.Settings.Save(c.Request.Context(), service.SettingsUpdate{
		ControllerIP: req.ControllerIP,
		CameraIP:     req.CameraIP,
		Interval:     req.Interval,
		Thresholds:   req.Thresholds,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidSettings) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errSaveSettings, "settings_save_failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

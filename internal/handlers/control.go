package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	statusWateringStarted = "watering_started"
	statusWateringStopped = "watering_stopped"
	statusAutoSet         = "auto_mode_set"
	statusScheduleSet     = "schedule_mode_set"
	statusCameraSet       = "camera_set"
	statusCameraQueued    = "camera_queued"

	errStartWatering = "failed to start watering"
	errStopWatering  = "failed to stop watering"
	errSetAuto       = "failed to set auto mode"
	errSetSchedule   = "failed to set schedule mode"
	errCameraControl = "failed to apply camera setting"
	errCapture       = "failed to capture image"
	errCameraInfo    = "failed to read camera info"
	errCameraStream  = "failed to open camera stream"

	streamChunkSize = 32 << 10
)

// ToggleRequest switches a watering mode.
type ToggleRequest struct {
	Enable *bool `json:"enable" binding:"required" example:"true"`
}

// CameraControlRequest writes one camera register, e.g. {"var":"brightness","val":1}.
type CameraControlRequest struct {
	Var string `json:"var" binding:"required" example:"brightness"`
	Val *int   `json:"val" binding:"required" example:"1"`
}

// @Summary      Start watering
// @Description  Turns every pump on. Sent over WebSocket when open, otherwise HTTP.
// @Tags         watering
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, result, state"
// @Failure      502  {object}  map[string]string
// @Failure      504  {object}  map[string]string
// @Router       /api/v1/watering/start [post]
func (h *Handler) startWatering(c *gin.Context) {
	res := h.services.Control.StartWatering(c.Request.Context())
	h.respondResult(c, statusWateringStarted, errStartWatering, "watering_start_failed", res)
}

// @Summary      Stop watering
// @Tags         watering
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, result, state"
// @Failure      502  {object}  map[string]string
// @Failure      504  {object}  map[string]string
// @Router       /api/v1/watering/stop [post]
func (h *Handler) stopWatering(c *gin.Context) {
	res := h.services.Control.StopWatering(c.Request.Context())
	h.respondResult(c, statusWateringStopped, errStopWatering, "watering_stop_failed", res)
}

// @Summary      Set auto mode
// @Tags         watering
// @Accept       json
// @Produce      json
// @Param        body  body      ToggleRequest  true  "Enable flag"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/watering/auto [post]
func (h *Handler) setAuto(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	res := h.services.Control.SetAuto(c.Request.Context(), *req.Enable)
	h.respondResult(c, statusAutoSet, errSetAuto, "auto_mode_failed", res)
}

// @Summary      Set schedule mode
// @Tags         watering
// @Accept       json
// @Produce      json
// @Param        body  body      ToggleRequest  true  "Enable flag"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/watering/schedule [post]
func (h *Handler) setSchedule(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	res := h.services.Control.SetSchedule(c.Request.Context(), *req.Enable)
	h.respondResult(c, statusScheduleSet, errSetSchedule, "schedule_mode_failed", res)
}

// @Summary      Camera control
// @Description  Slider controls (brightness, contrast, saturation, quality, led_intensity) are debounced and answer 202.
// @Tags         camera
// @Accept       json
// @Produce      json
// @Param        body  body      CameraControlRequest  true  "Register and value"
// @Success      200   {object}  service.CameraOutcome
// @Success      202   {object}  service.CameraOutcome
// @Failure      400   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/camera/control [post]
func (h *Handler) cameraControl(c *gin.Context) {
	var req CameraControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	control := strings.TrimSpace(req.Var)
	out, err := h.services.Control.CameraControl(c.Request.Context(), control, *req.Val)
	if err != nil {
		h.log.Warnw("camera_control_rejected", "var", control, "val", *req.Val, "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if out.Debounced {
		c.JSON(http.StatusAccepted, gin.H{"status": statusCameraQueued, "outcome": out})
		return
	}
	if !out.Result.Success {
		err := out.Result.AsError()
		msg := errCameraControl
		if err != nil {
			msg += ": " + err.Error()
		}
		h.logAndJSONError(c, statusForError(err), msg, "camera_control_failed", err, "var", control)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusCameraSet, "outcome": out})
}

// @Summary      Camera slider values
// @Description  Last value submitted per slider control, including writes still waiting out the debounce delay.
// @Tags         camera
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "controls"
// @Router       /api/v1/camera/control [get]
func (h *Handler) cameraSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"controls": h.services.Control.CameraSettings()})
}

// @Summary      Capture still image
// @Tags         camera
// @Produce      image/jpeg
// @Success      200  {file}    binary
// @Failure      502  {object}  map[string]string
// @Failure      504  {object}  map[string]string
// @Router       /api/v1/camera/capture [get]
func (h *Handler) cameraCapture(c *gin.Context) {
	img, contentType, err := h.services.Control.Capture(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, statusForError(err), errCapture, "camera_capture_failed", err)
		return
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, contentType, img)
}

// @Summary      Live camera stream
// @Description  Relays the camera's MJPEG feed until the client goes away.
// @Tags         camera
// @Produce      multipart/x-mixed-replace
// @Success      200  {file}    binary
// @Failure      502  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Failure      504  {object}  map[string]string
// @Router       /api/v1/camera/stream [get]
func (h *Handler) cameraStream(c *gin.Context) {
	body, contentType, err := h.services.Control.Stream(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, statusForError(err), errCameraStream, "camera_stream_failed", err)
		return
	}
	defer body.Close()

	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)

	var sent int64
	buf := make([]byte, streamChunkSize)
	c.Stream(func(w io.Writer) bool {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return false
			}
			sent += int64(n)
		}
		return rerr == nil
	})
	h.log.Infow("camera_stream_closed", "bytes", sent)
}

// @Summary      Camera identity
// @Tags         camera
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/camera/info [get]
func (h *Handler) cameraInfo(c *gin.Context) {
	res := h.services.Control.CameraInfo(c.Request.Context())
	if !res.Success {
		err := res.AsError()
		h.logAndJSONError(c, statusForError(err), errCameraInfo, "camera_info_failed", err)
		return
	}
	if len(res.Body) == 0 {
		c.JSON(http.StatusOK, res)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", res.Body)
}

package handlers

import (
	"net/http"

	"agrismart/internal/device"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// statusForError maps a link failure to the HTTP status the dashboard sees.
func statusForError(err error) int {
	switch device.KindOf(err) {
	case device.KindInvalidCommand:
		return http.StatusBadRequest
	case device.KindTimeout:
		return http.StatusGatewayTimeout
	case device.KindTransportUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// respondResult writes a command outcome. Successful results include the
// current state so the dashboard can re-render without a second request.
func (h *Handler) respondResult(c *gin.Context, status, userMsg, logKey string, res device.Result) {
	if !res.Success {
		err := res.AsError()
		msg := userMsg
		if err != nil {
			msg = userMsg + ": " + err.Error()
		}
		h.logAndJSONError(c, statusForError(err), msg, logKey, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"result": res,
		"state":  h.services.Monitoring.GetState(c.Request.Context()),
	})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Get device state
// @Description  Merged telemetry, actuators and thresholds plus link health
// @Tags         state
// @Produce      json
// @Success      200  {object}  service.StateView
// @Router       /api/v1/state [get]
func (h *Handler) getState(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Monitoring.GetState(c.Request.Context()))
}

// @Summary      Get connection status
// @Description  Online/stale indicator, active transport and configured endpoints
// @Tags         connection
// @Produce      json
// @Success      200  {object}  service.ConnectionView
// @Router       /api/v1/connection [get]
func (h *Handler) getConnection(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Monitoring.Connection(c.Request.Context()))
}

// @Summary      Test controller connection
// @Description  Tries the open socket, then a fresh WebSocket handshake, then HTTP /ping
// @Tags         connection
// @Produce      json
// @Success      200  {object}  device.ProbeResult
// @Failure      502  {object}  device.ProbeResult
// @Router       /api/v1/connection/test [post]
func (h *Handler) testConnection(c *gin.Context) {
	res := h.services.Monitoring.TestConnection(c.Request.Context())
	if !res.OK {
		h.log.Warnw("connection_test_failed", "message", res.Message)
		c.JSON(http.StatusBadGateway, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

package metrics

import (
	"net/http"
	"strconv"

	"agrismart/internal/device"
	"agrismart/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agrismart"

// Collectors holds the link metrics on a private registry.
type Collectors struct {
	registry *prometheus.Registry

	temperature     prometheus.Gauge
	humidityAir     prometheus.Gauge
	soilMoisture    *prometheus.GaugeVec
	soilPH          *prometheus.GaugeVec
	rssi            prometheus.Gauge
	pump            *prometheus.GaugeVec
	mode            *prometheus.GaugeVec
	connectionState prometheus.Gauge
	lastUpdate      prometheus.Gauge

	reconnects   prometheus.Counter
	httpRequests *prometheus.CounterVec
	malformed    prometheus.Counter
	dispatched   *prometheus.CounterVec
}

// New builds and registers every collector.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "air_temperature_celsius",
			Help:      "Last reported air temperature in Celsius",
		}),
		humidityAir: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "air_humidity_percent",
			Help:      "Last reported relative air humidity",
		}),
		soilMoisture: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "soil_moisture_percent",
			Help:      "Last reported soil moisture per zone",
		}, []string{"zone"}),
		soilPH: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "soil_ph",
			Help:      "Last reported soil pH per zone",
		}, []string{"zone"}),
		rssi: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wifi_rssi_dbm",
			Help:      "Controller WiFi signal strength in dBm",
		}),
		pump: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pump_on",
			Help:      "Pump status (1=on, 0=off)",
		}, []string{"pump"}),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watering_mode_enabled",
			Help:      "Watering mode flags (1=enabled)",
		}, []string{"mode"}),
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "WebSocket session state (0=disconnected 1=connecting 2=connected 3=reconnecting 4=failed)",
		}),
		lastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_update_timestamp_seconds",
			Help:      "Unix timestamp of the last authoritative device frame",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "WebSocket reconnect attempts",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_fallback_requests_total",
			Help:      "Requests sent over the HTTP fallback",
		}, []string{"path", "outcome"}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_frames_total",
			Help:      "Device payloads that could not be parsed",
		}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_dispatched_total",
			Help:      "Outbound commands by name, transport and outcome",
		}, []string{"command", "transport", "outcome"}),
	}

	c.registry.MustRegister(
		c.temperature,
		c.humidityAir,
		c.soilMoisture,
		c.soilPH,
		c.rssi,
		c.pump,
		c.mode,
		c.connectionState,
		c.lastUpdate,
		c.reconnects,
		c.httpRequests,
		c.malformed,
		c.dispatched,
	)
	return c
}

// Registry exposes the private registry, mainly for tests.
func (c *Collectors) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Observer returns the device observer that feeds these collectors.
func (c *Collectors) Observer() device.Observer {
	return device.Observer{
		State: c.ObserveState,
		Connection: func(st device.ConnectionState, _ models.Transport) {
			c.connectionState.Set(float64(st.Kind))
		},
		HTTPResult: func(path string, ok bool) {
			c.httpRequests.WithLabelValues(path, outcome(ok)).Inc()
		},
		Dispatched: func(command string, transport models.Transport, ok bool) {
			c.dispatched.WithLabelValues(command, string(transport), outcome(ok)).Inc()
		},
		Malformed: c.malformed.Inc,
		Reconnect: func(int) { c.reconnects.Inc() },
	}
}

// ObserveState copies a merged device state into the gauges.
func (c *Collectors) ObserveState(st models.DeviceState) {
	c.temperature.Set(st.Telemetry.Temperature)
	c.humidityAir.Set(st.Telemetry.HumidityAir)
	c.rssi.Set(float64(st.Telemetry.RSSI))
	for zone, v := range st.Telemetry.SoilMoisture {
		c.soilMoisture.WithLabelValues(strconv.Itoa(zone)).Set(v)
	}
	for zone, v := range st.Telemetry.SoilPH {
		c.soilPH.WithLabelValues(strconv.Itoa(zone)).Set(v)
	}
	for pump, on := range st.Actuators.Pumps {
		c.pump.WithLabelValues(strconv.Itoa(pump)).Set(boolGauge(on))
	}
	c.mode.WithLabelValues("auto").Set(boolGauge(st.Actuators.AutoMode))
	c.mode.WithLabelValues("schedule").Set(boolGauge(st.Actuators.ScheduleMode))
	if !st.LastUpdate.IsZero() {
		c.lastUpdate.Set(float64(st.LastUpdate.Unix()))
	}
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Package docs registers the OpenAPI document served under /swagger.
// Regenerate with: swag init -g cmd/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {"tags": ["system"], "summary": "Health check", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}}
        },
        "/metrics": {
            "get": {"tags": ["system"], "summary": "Prometheus metrics", "produces": ["text/plain"],
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/state": {
            "get": {"tags": ["state"], "summary": "Get device state", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/service.StateView"}}}}
        },
        "/api/v1/connection": {
            "get": {"tags": ["connection"], "summary": "Get connection status", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/device.HealthStatus"}}}}
        },
        "/api/v1/connection/test": {
            "post": {"tags": ["connection"], "summary": "Test controller connection", "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/device.ProbeResult"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/device.ProbeResult"}}}}
        },
        "/api/v1/watering/start": {
            "post": {"tags": ["watering"], "summary": "Start watering", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}, "502": {"description": "Bad Gateway"}, "504": {"description": "Gateway Timeout"}}}
        },
        "/api/v1/watering/stop": {
            "post": {"tags": ["watering"], "summary": "Stop watering", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}, "502": {"description": "Bad Gateway"}, "504": {"description": "Gateway Timeout"}}}
        },
        "/api/v1/watering/auto": {
            "post": {"tags": ["watering"], "summary": "Set auto mode", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ToggleRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "502": {"description": "Bad Gateway"}}}
        },
        "/api/v1/watering/schedule": {
            "post": {"tags": ["watering"], "summary": "Set schedule mode", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ToggleRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "502": {"description": "Bad Gateway"}}}
        },
        "/api/v1/camera/control": {
            "post": {"tags": ["camera"], "summary": "Camera control", "consumes": ["application/json"], "produces": ["application/json"],
                "description": "Slider controls are debounced and answer 202.",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CameraControlRequest"}}],
                "responses": {"200": {"description": "OK"}, "202": {"description": "Accepted"}, "400": {"description": "Bad Request"}, "502": {"description": "Bad Gateway"}}},
            "get": {"tags": ["camera"], "summary": "Camera slider values", "produces": ["application/json"],
                "description": "Last value submitted per slider control, including writes still waiting out the debounce delay.",
                "responses": {"200": {"description": "controls"}}}
        },
        "/api/v1/camera/capture": {
            "get": {"tags": ["camera"], "summary": "Capture still image", "produces": ["image/jpeg"],
                "responses": {"200": {"description": "OK"}, "502": {"description": "Bad Gateway"}, "504": {"description": "Gateway Timeout"}}}
        },
        "/api/v1/camera/stream": {
            "get": {"tags": ["camera"], "summary": "Live camera stream", "produces": ["multipart/x-mixed-replace"],
                "description": "Relays the camera's MJPEG feed until the client goes away.",
                "responses": {"200": {"description": "OK"}, "502": {"description": "Bad Gateway"}, "503": {"description": "Service Unavailable"}, "504": {"description": "Gateway Timeout"}}}
        },
        "/api/v1/camera/info": {
            "get": {"tags": ["camera"], "summary": "Camera identity", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}, "502": {"description": "Bad Gateway"}}}
        },
        "/api/v1/settings": {
            "get": {"tags": ["settings"], "summary": "Get settings", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Settings"}}, "500": {"description": "Internal Server Error"}}},
            "put": {"tags": ["settings"], "summary": "Save settings", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SettingsRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "500": {"description": "Internal Server Error"}}}
        },
        "/api/v1/logs": {
            "get": {"tags": ["logs"], "summary": "List device events", "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "in": "query", "name": "from", "description": "Start of range"},
                    {"type": "string", "in": "query", "name": "to", "description": "End of range; date-only means end of day"},
                    {"enum": ["CONNECTION", "WARNING", "ERROR", "COMMAND", "TELEMETRY"], "type": "string", "in": "query", "name": "type"},
                    {"type": "integer", "in": "query", "name": "limit", "description": "Max rows (default 500, capped at 5000)"}
                ],
                "responses": {"200": {"description": "count, events"}, "400": {"description": "Bad Request"}, "500": {"description": "Internal Server Error"}}}
        }
    },
    "definitions": {
        "handlers.ToggleRequest": {
            "type": "object",
            "properties": {"enable": {"type": "boolean", "example": true}}
        },
        "handlers.CameraControlRequest": {
            "type": "object",
            "properties": {"var": {"type": "string", "example": "brightness"}, "val": {"type": "integer", "example": 1}}
        },
        "handlers.SettingsRequest": {
            "type": "object",
            "properties": {
                "esp32_ip": {"type": "string", "example": "192.168.1.11"},
                "espcam_ip": {"type": "string", "example": "192.168.1.93"},
                "sensor_interval": {"type": "integer", "example": 5},
                "thresholds": {"$ref": "#/definitions/models.Thresholds"}
            }
        },
        "models.Thresholds": {
            "type": "object",
            "properties": {
                "humidity_dry": {"type": "number"}, "humidity_wet": {"type": "number"},
                "ph_acidic": {"type": "number"}, "ph_alkaline": {"type": "number"}
            }
        },
        "models.Settings": {
            "type": "object",
            "properties": {
                "esp32_ip": {"type": "string"}, "espcam_ip": {"type": "string"},
                "sensor_interval": {"type": "integer"},
                "thresholds": {"$ref": "#/definitions/models.Thresholds"}
            }
        },
        "device.ProbeResult": {
            "type": "object",
            "properties": {"ok": {"type": "boolean"}, "transport": {"type": "string"}, "message": {"type": "string"}}
        },
        "device.HealthStatus": {
            "type": "object",
            "properties": {
                "connected": {"type": "boolean"}, "transport": {"type": "string"}, "state": {"type": "string"},
                "stale": {"type": "boolean"}, "seconds_since_last_update": {"type": "integer"},
                "last_update": {"type": "string"}, "last_update_human": {"type": "string"},
                "rssi": {"type": "integer"}, "signal_percent": {"type": "integer"}
            }
        },
        "service.StateView": {
            "type": "object",
            "properties": {
                "telemetry": {"type": "object"}, "actuators": {"type": "object"},
                "pump_status": {"type": "string"},
                "thresholds": {"$ref": "#/definitions/models.Thresholds"},
                "last_update": {"type": "string"},
                "endpoint": {"type": "object"},
                "health": {"$ref": "#/definitions/device.HealthStatus"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "AgriSmart Link API",
	Description:      "Dashboard API for an irrigation controller and its camera.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

package models

import (
	"fmt"
	"net"
	"strconv"
)

// Transport names the link currently used to reach a device.
type Transport string

const (
	TransportWebSocket Transport = "websocket"
	TransportHTTP      Transport = "http"
)

// Endpoint is the network address of a field device.
// HTTPPort 0 means the default port 80.
type Endpoint struct {
	Host      string    `json:"host"`
	WSPort    int       `json:"ws_port"`
	HTTPPort  int       `json:"http_port,omitempty"`
	Transport Transport `json:"transport"`
}

// WebSocketURL returns ws://host:port.
func (e Endpoint) WebSocketURL() string {
	return fmt.Sprintf("ws://%s", net.JoinHostPort(e.Host, strconv.Itoa(e.WSPort)))
}

// BaseURL returns the plain HTTP root of the device.
func (e Endpoint) BaseURL() string {
	if e.HTTPPort == 0 || e.HTTPPort == 80 {
		return "http://" + e.Host
	}
	return "http://" + net.JoinHostPort(e.Host, strconv.Itoa(e.HTTPPort))
}

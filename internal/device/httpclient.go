package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"agrismart/internal/logger"
	"agrismart/internal/models"
)

const (
	defaultRequestTimeout = 5 * time.Second
	ledTimeout            = 3 * time.Second
	maxResponseSize       = 1 << 20 // 1 MB
	maxCaptureSize        = 4 << 20 // 4 MB

	streamContentType = "multipart/x-mixed-replace"
)

// Request is one HTTP exchange with a device. Path may carry a query string.
type Request struct {
	Method  string
	Path    string
	Body    any
	Timeout time.Duration
}

// Result is the normalized outcome of an HTTP exchange.
type Result struct {
	Success bool            `json:"success"`
	Body    json.RawMessage `json:"body,omitempty"`
	Message string          `json:"message,omitempty"`
	Err     *Error          `json:"-"`
}

// AsError returns the failure as an error value, or a nil interface.
func (r Result) AsError() error {
	if r.Err == nil {
		return nil
	}
	return r.Err
}

// HTTPClient talks to a device's plain HTTP API.
type HTTPClient struct {
	host     string
	base     string
	client   *http.Client
	log      *logger.Logger
	onResult func(path string, ok bool)
}

// NewHTTPClient builds a client for endpoint. A nil client uses a fresh http.Client;
// per-request deadlines come from the context.
func NewHTTPClient(endpoint models.Endpoint, client *http.Client, log *logger.Logger) *HTTPClient {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPClient{
		host:   endpoint.Host,
		base:   endpoint.BaseURL(),
		client: client,
		log:    log,
	}
}

// OnResult registers an observer for every completed request.
func (c *HTTPClient) OnResult(fn func(path string, ok bool)) {
	c.onResult = fn
}

// Host returns the device host this client targets.
func (c *HTTPClient) Host() string { return c.host }

// Do performs req bounded by its timeout (5s when unset).
func (c *HTTPClient) Do(ctx context.Context, req Request) Result {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	op := req.Method + " " + routeOf(req.Path)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return c.finish(req.Path, c.fail(KindInvalidCommand, op, fmt.Errorf("encode body: %w", err)))
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.base+req.Path, body)
	if err != nil {
		return c.finish(req.Path, c.fail(KindInvalidCommand, op, err))
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Cache-Control", "no-cache")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return c.finish(req.Path, c.fail(transportKind(ctx, err), op, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return c.finish(req.Path, c.fail(transportKind(ctx, err), op, fmt.Errorf("read body: %w", err)))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := newError(KindHTTPStatus, op, c.host, nil)
		e.Status = resp.StatusCode
		return c.finish(req.Path, Result{Err: e, Message: strings.TrimSpace(string(data))})
	}

	return c.finish(req.Path, c.decode(op, resp.Header.Get("Content-Type"), data))
}

// decode turns a 2xx body into a Result. JSON bodies are kept as-is and honor
// an explicit "success": false; plain text becomes {success: true, message: text}.
func (c *HTTPClient) decode(op, contentType string, data []byte) Result {
	trimmed := bytes.TrimSpace(data)
	mediaType, _, _ := mime.ParseMediaType(contentType)
	isJSON := mediaType == "application/json"

	if !isJSON && !json.Valid(trimmed) {
		return Result{Success: true, Message: string(trimmed)}
	}
	if len(trimmed) == 0 {
		return Result{Success: true}
	}

	var envelope struct {
		Success *bool   `json:"success"`
		Message *string `json:"message"`
		Error   *string `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		var ute *json.UnmarshalTypeError
		if !errors.As(err, &ute) {
			return c.fail(KindMalformedResponse, op, err)
		}
		// valid JSON that is not an object, e.g. a bare string
		return Result{Success: true, Body: json.RawMessage(trimmed)}
	}

	res := Result{Success: true, Body: json.RawMessage(trimmed)}
	if envelope.Message != nil {
		res.Message = *envelope.Message
	}
	if envelope.Success != nil && !*envelope.Success {
		res.Success = false
		reason := res.Message
		if envelope.Error != nil {
			reason = *envelope.Error
		}
		if reason == "" {
			reason = "device reported failure"
		}
		res.Err = newError(KindRejected, op, c.host, errors.New(reason))
	}
	return res
}

func (c *HTTPClient) fail(kind Kind, op string, err error) Result {
	return Result{Err: newError(kind, op, c.host, err)}
}

func (c *HTTPClient) finish(path string, res Result) Result {
	route := routeOf(path)
	if res.Err != nil {
		c.log.Debugw("http_request_failed", "host", c.host, "path", route, "kind", res.Err.Kind.String(), "err", res.Err)
	} else {
		c.log.Debugw("http_request_ok", "host", c.host, "path", route)
	}
	if c.onResult != nil {
		c.onResult(route, res.Success)
	}
	return res
}

// transportKind separates deadline expiry from other network failures.
func transportKind(ctx context.Context, err error) Kind {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindNetworkUnreachable
}

func routeOf(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

// Ping checks liveness via GET /ping.
func (c *HTTPClient) Ping(ctx context.Context) Result {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: "/ping"})
}

// Status fetches the flat status document via GET /status.
func (c *HTTPClient) Status(ctx context.Context) Result {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: "/status"})
}

// StartWatering starts manual watering via POST /water/start.
func (c *HTTPClient) StartWatering(ctx context.Context) Result {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: "/water/start"})
}

// StopWatering stops manual watering via POST /water/stop.
func (c *HTTPClient) StopWatering(ctx context.Context) Result {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: "/water/stop"})
}

type enableBody struct {
	Enable bool `json:"enable"`
}

// SetAuto toggles automatic watering via POST /water/auto.
func (c *HTTPClient) SetAuto(ctx context.Context, enable bool) Result {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: "/water/auto", Body: enableBody{enable}})
}

// SetSchedule toggles scheduled watering via POST /water/schedule.
func (c *HTTPClient) SetSchedule(ctx context.Context, enable bool) Result {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: "/water/schedule", Body: enableBody{enable}})
}

// Control writes a camera sensor register via GET /control?var=&val=.
func (c *HTTPClient) Control(ctx context.Context, setting CameraSetting, timeout time.Duration) Result {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: setting.Query(), Timeout: timeout})
}

// DeviceInfo reads the camera identity document via GET /device.
func (c *HTTPClient) DeviceInfo(ctx context.Context) Result {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: "/device"})
}

// Capture fetches one JPEG still via GET /capture.
func (c *HTTPClient) Capture(ctx context.Context) ([]byte, string, error) {
	const op = "GET /capture"
	ctx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/capture", nil)
	if err != nil {
		return nil, "", newError(KindInvalidCommand, op, c.host, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", newError(transportKind(ctx, err), op, c.host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e := newError(KindHTTPStatus, op, c.host, nil)
		e.Status = resp.StatusCode
		return nil, "", e
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCaptureSize))
	if err != nil {
		return nil, "", newError(transportKind(ctx, err), op, c.host, err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}

// Stream opens the camera's MJPEG feed. Only the response headers are bound
// by defaultRequestTimeout; the body runs until ctx ends or the camera hangs
// up. The caller must close the returned body.
func (c *HTTPClient) Stream(ctx context.Context) (io.ReadCloser, string, error) {
	const op = "GET /stream"
	ctx, cancel := context.WithCancel(ctx)
	headers := time.AfterFunc(defaultRequestTimeout, cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/stream", nil)
	if err != nil {
		headers.Stop()
		cancel()
		return nil, "", newError(KindInvalidCommand, op, c.host, err)
	}
	resp, err := c.client.Do(req)
	expired := !headers.Stop()
	if err != nil {
		cancel()
		kind := transportKind(ctx, err)
		if expired {
			kind = KindTimeout
		}
		return nil, "", newError(kind, op, c.host, err)
	}
	if expired {
		resp.Body.Close()
		cancel()
		return nil, "", newError(KindTimeout, op, c.host, errors.New("no response headers in time"))
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		e := newError(KindHTTPStatus, op, c.host, nil)
		e.Status = resp.StatusCode
		return nil, "", e
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = streamContentType
	}
	return &streamBody{ReadCloser: resp.Body, cancel: cancel}, contentType, nil
}

// streamBody releases the request context with the body.
type streamBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *streamBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

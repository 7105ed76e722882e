package feed

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// reconnectDelay is the pause before redialing a dropped stream.
const reconnectDelay = 3 * time.Second

// SSEClient subscribes to the server's event stream and feeds each
// frame to a handler. A dropped connection is redialed after a short
// delay, and every successful reconnect triggers onConnect so the owner
// can reconcile the gap with a full re-fetch.
type SSEClient struct {
	url        string
	httpClient *http.Client
	handler    func(data []byte)
	onConnect  func(ctx context.Context)
	logger     *zap.Logger
}

// NewSSEClient creates an SSE subscriber for the given stream URL.
func NewSSEClient(url string, httpClient *http.Client, handler func([]byte), onConnect func(context.Context), logger *zap.Logger) *SSEClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if onConnect == nil {
		onConnect = func(context.Context) {}
	}
	return &SSEClient{
		url:        url,
		httpClient: httpClient,
		handler:    handler,
		onConnect:  onConnect,
		logger:     logger,
	}
}

// Run subscribes and processes events until the context is cancelled.
func (c *SSEClient) Run(ctx context.Context) {
	for {
		if err := c.stream(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("event stream dropped", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *SSEClient) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.onConnect(ctx)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			// Blank line terminates the event.
			if data.Len() > 0 {
				c.handler([]byte(data.String()))
				data.Reset()
			}
		case strings.HasPrefix(line, ":"):
			// Heartbeat comment, keeps intermediaries from timing out.
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return scanner.Err()
}

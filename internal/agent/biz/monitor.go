package biz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/clawchat/clawchat-backend/internal/pkg/errors"
	"github.com/clawchat/clawchat-backend/internal/pkg/sse"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// StateIdle means the agent is not working on anything.
const StateIdle = "idle"

// EventSink fans events to all subscriptions or to one sink
type EventSink interface {
	Broadcast(event interface{}) error
	Send(client *sse.Client, event interface{}) error
}

// TaskRunner executes fire-and-forget tasks off the request path
type TaskRunner interface {
	Submit(task func()) error
}

// AgentStatusEvent reports agent reachability
type AgentStatusEvent struct {
	Type      string `json:"type"`
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// AgentStateEvent relays the agent's self-reported work state
type AgentStateEvent struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

// AgentTypingEvent is the legacy busy/idle mirror of AgentStateEvent
type AgentTypingEvent struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// agentEvent is the wire shape of a notification to the agent's ingress
type agentEvent struct {
	Source    string      `json:"source"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp string      `json:"timestamp"`
}

// Monitor notifies the external agent of chat events and treats every
// outcome as a liveness signal. Status transitions are deduplicated: a
// broadcast goes out on a connected flip, or when a new error string
// arrives while disconnected.
type Monitor struct {
	agentURL     string
	notifyClient *http.Client
	probeClient  *http.Client
	stopTimeout  time.Duration
	bus          EventSink
	pool         TaskRunner
	logger       *zap.Logger

	mu        sync.Mutex
	reported  bool
	connected bool
	lastError string
	state     string
}

// NewMonitor creates a monitor for the agent at agentURL.
func NewMonitor(
	agentURL string,
	notifyTimeout, probeTimeout, stopTimeout time.Duration,
	bus EventSink,
	pool TaskRunner,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		agentURL:     agentURL,
		notifyClient: &http.Client{Timeout: notifyTimeout},
		probeClient:  &http.Client{Timeout: probeTimeout},
		stopTimeout:  stopTimeout,
		bus:          bus,
		pool:         pool,
		logger:       logger,
		state:        StateIdle,
	}
}

// Notify delivers a chat event to the agent's ingress endpoint. Fire
// and forget: the caller never blocks on the agent.
func (m *Monitor) Notify(eventType string, payload interface{}) {
	event := agentEvent{
		Source:    "chat",
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := m.pool.Submit(func() { m.deliver(event) }); err != nil {
		m.logger.Warn("failed to queue agent notification",
			zap.String("event", eventType), zap.Error(err))
	}
}

func (m *Monitor) deliver(event agentEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		m.logger.Error("failed to marshal agent event", zap.Error(err))
		return
	}

	resp, err := m.notifyClient.Post(m.agentURL+"/events", "application/json", bytes.NewReader(body))
	if err != nil {
		m.recordFailure(err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		m.recordSuccess()
		return
	}

	// Prefer the agent's own error message when the body carries one.
	errMsg := fmt.Sprintf("HTTP %d", resp.StatusCode)
	if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096)); readErr == nil {
		if v := gjson.GetBytes(data, "error"); v.Exists() && v.String() != "" {
			errMsg = v.String()
		}
	}
	m.recordFailure(errMsg)
}

func (m *Monitor) recordSuccess() {
	m.mu.Lock()
	changed := !m.reported || !m.connected
	m.reported = true
	m.connected = true
	m.lastError = ""
	m.mu.Unlock()

	if changed {
		m.broadcast(AgentStatusEvent{Type: sse.EventAgentStatus, Connected: true})
	}
}

func (m *Monitor) recordFailure(errMsg string) {
	m.mu.Lock()
	changed := !m.reported || m.connected || m.lastError != errMsg
	m.reported = true
	m.connected = false
	m.lastError = errMsg
	m.mu.Unlock()

	if changed {
		m.broadcast(AgentStatusEvent{Type: sse.EventAgentStatus, Connected: false, Error: errMsg})
	}

	// A failed notify means the agent cannot be assumed mid-turn.
	m.clearBusy()
}

func (m *Monitor) clearBusy() {
	m.mu.Lock()
	m.state = StateIdle
	m.mu.Unlock()

	m.broadcast(AgentStateEvent{Type: sse.EventAgentState, State: StateIdle})
	m.broadcast(AgentTypingEvent{Type: sse.EventAgentTyping, Active: false})
}

// SetState relays the agent's self-reported work state verbatim and
// mirrors it onto the legacy typing event.
func (m *Monitor) SetState(state string) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()

	m.broadcast(AgentStateEvent{Type: sse.EventAgentState, State: state})
	m.broadcast(AgentTypingEvent{Type: sse.EventAgentTyping, Active: state != StateIdle})
}

// SetTyping is the legacy boolean form of SetState.
func (m *Monitor) SetTyping(active bool) {
	if active {
		m.SetState("busy")
	} else {
		m.SetState(StateIdle)
	}
}

// State returns the agent's last reported work state.
func (m *Monitor) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns the last observed reachability and error.
func (m *Monitor) Status() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected, m.lastError
}

// Probe checks agent health for one fresh subscription and writes the
// result to that sink only. Shared dedup state is untouched so other
// subscriptions still see the next real transition.
func (m *Monitor) Probe(client *sse.Client) {
	if m.agentURL == "" {
		return
	}
	err := m.pool.Submit(func() {
		resp, err := m.probeClient.Get(m.agentURL + "/info/health")
		if err != nil {
			m.send(client, AgentStatusEvent{Type: sse.EventAgentStatus, Connected: false, Error: "Agent unreachable"})
			return
		}
		resp.Body.Close()
		m.send(client, AgentStatusEvent{Type: sse.EventAgentStatus, Connected: resp.StatusCode < 400})
	})
	if err != nil {
		m.logger.Warn("failed to queue agent probe", zap.Error(err))
	}
}

// Stop asks the agent to abort its current task. Returns the agent's
// status code and body for verbatim proxying.
func (m *Monitor) Stop(ctx context.Context) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, m.stopTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.agentURL+"/stop", nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, apperrors.Wrap(err, apperrors.ErrAgentUnreachable)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	return resp.StatusCode, body, nil
}

// ProxyInfo forwards a read-only query to the agent's /info surface
// (health, state, memory).
func (m *Monitor) ProxyInfo(ctx context.Context, endpoint string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.agentURL+"/info/"+endpoint, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, apperrors.Wrap(err, apperrors.ErrAgentUnreachable)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	return resp.StatusCode, body, nil
}

func (m *Monitor) broadcast(event interface{}) {
	if err := m.bus.Broadcast(event); err != nil {
		m.logger.Warn("failed to broadcast agent event", zap.Error(err))
	}
}

func (m *Monitor) send(client *sse.Client, event interface{}) {
	if err := m.bus.Send(client, event); err != nil {
		m.logger.Warn("failed to send agent event", zap.Error(err))
	}
}

package host

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clawchat/clawchat-backend/internal/widget/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore struct {
	mu     sync.Mutex
	states map[string]json.RawMessage
	setErr error
}

func (s *memStore) GetState(_ context.Context, conversationID, appID string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[conversationID+"/"+appID]
	if !ok {
		return nil, nil
	}
	return state, nil
}

func (s *memStore) SetState(_ context.Context, conversationID, appID string, state json.RawMessage) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states == nil {
		s.states = make(map[string]json.RawMessage)
	}
	s.states[conversationID+"/"+appID] = state
	return nil
}

type stubForwarder struct {
	mu     sync.Mutex
	calls  []string
	result json.RawMessage
	err    error
	block  chan struct{}
}

func (f *stubForwarder) Forward(_ context.Context, conversationID, appID, action string, _ json.RawMessage) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, conversationID+"/"+appID+"/"+action)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.result, f.err
}

func (f *stubForwarder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type stubReporter struct {
	mu      sync.Mutex
	reports []string
}

func (r *stubReporter) ReportWidgetError(_, _, errMsg, _ string) {
	r.mu.Lock()
	r.reports = append(r.reports, errMsg)
	r.mu.Unlock()
}

func (r *stubReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

type chanSender struct {
	msgs chan interface{}
}

func newChanSender() *chanSender {
	return &chanSender{msgs: make(chan interface{}, 16)}
}

func (s *chanSender) Send(msg interface{}) {
	s.msgs <- msg
}

func (s *chanSender) next(t *testing.T) interface{} {
	t.Helper()
	select {
	case msg := <-s.msgs:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("no message sent to widget")
		return nil
	}
}

func (s *chanSender) empty() bool {
	select {
	case <-s.msgs:
		return false
	default:
		return true
	}
}

type hostFixture struct {
	host     *Host
	store    *memStore
	forward  *stubForwarder
	reporter *stubReporter
	sender   *chanSender
	resizes  []int
	adjusts  []ScrollAdjustment
}

func newFixture(viewport ViewportFunc) *hostFixture {
	f := &hostFixture{
		store:    &memStore{},
		forward:  &stubForwarder{},
		reporter: &stubReporter{},
		sender:   newChanSender(),
	}
	f.host = NewHost(
		"default", "frame-1",
		f.store, f.forward, f.reporter, f.sender,
		protocol.NewPendingTracker(time.Second),
		viewport,
		func(height int, adjust ScrollAdjustment) {
			f.resizes = append(f.resizes, height)
			f.adjusts = append(f.adjusts, adjust)
		},
		zap.NewNop(),
	)
	return f
}

func TestForeignSourceIgnored(t *testing.T) {
	f := newFixture(nil)

	f.host.HandleMessage(context.Background(), "evil-frame",
		[]byte(`{"type":"setState","appId":"todo","state":{"x":1}}`))
	f.host.HandleMessage(context.Background(), "evil-frame",
		[]byte(`{"type":"request","id":1,"appId":"todo","action":"add"}`))

	assert.Empty(t, f.store.states)
	assert.Zero(t, f.forward.callCount())
	assert.Zero(t, f.reporter.count())
	assert.True(t, f.sender.empty())
}

func TestGetStateRepliesAndTracks(t *testing.T) {
	f := newFixture(nil)
	f.store.states = map[string]json.RawMessage{"default/todo": []byte(`{"items":[]}`)}

	f.host.HandleMessage(context.Background(), "frame-1",
		[]byte(`{"type":"getState","appId":"todo"}`))

	state := f.sender.next(t).(protocol.State)
	assert.JSONEq(t, `{"items":[]}`, string(state.State))
	assert.True(t, f.host.Tracking("todo"))
	assert.False(t, f.host.Tracking("other"))
}

func TestGetStateMissingRepliesNull(t *testing.T) {
	f := newFixture(nil)

	f.host.HandleMessage(context.Background(), "frame-1",
		[]byte(`{"type":"getState","appId":"todo"}`))

	state := f.sender.next(t).(protocol.State)
	assert.Equal(t, "null", string(state.State))
}

func TestSetStatePersistsBestEffort(t *testing.T) {
	f := newFixture(nil)

	f.host.HandleMessage(context.Background(), "frame-1",
		[]byte(`{"type":"setState","appId":"todo","state":{"count":3}}`))

	assert.JSONEq(t, `{"count":3}`, string(f.store.states["default/todo"]))
	assert.True(t, f.sender.empty(), "setState must not reply")

	// A failing store never surfaces to the widget.
	f.store.setErr = errors.New("db down")
	f.host.HandleMessage(context.Background(), "frame-1",
		[]byte(`{"type":"setState","appId":"todo","state":{"count":4}}`))
	assert.True(t, f.sender.empty())
}

func TestRequestForwardsWithSameID(t *testing.T) {
	f := newFixture(nil)
	f.forward.result = []byte(`{"ok":true,"result":42}`)

	f.host.HandleMessage(context.Background(), "frame-1",
		[]byte(`{"type":"request","id":7,"appId":"todo","action":"add","payload":{"x":1}}`))

	resp := f.sender.next(t).(protocol.Response)
	assert.Equal(t, int64(7), resp.ID)
	assert.Empty(t, resp.Error)
	assert.JSONEq(t, `{"ok":true,"result":42}`, string(resp.Data))
	assert.Equal(t, []string{"default/todo/add"}, f.forward.calls)
}

func TestRequestForwarderError(t *testing.T) {
	f := newFixture(nil)
	f.forward.err = errors.New("action rejected")

	f.host.HandleMessage(context.Background(), "frame-1",
		[]byte(`{"type":"request","id":8,"appId":"todo","action":"add"}`))

	resp := f.sender.next(t).(protocol.Response)
	assert.Equal(t, int64(8), resp.ID)
	assert.Equal(t, "action rejected", resp.Error)
}

func TestHungRequestRejectedLocally(t *testing.T) {
	f := newFixture(nil)
	f.forward.block = make(chan struct{})
	defer close(f.forward.block)

	f.host.HandleMessage(context.Background(), "frame-1",
		[]byte(`{"type":"request","id":9,"appId":"todo","action":"slow"}`))

	resp := f.sender.next(t).(protocol.Response)
	assert.Equal(t, int64(9), resp.ID)
	assert.Equal(t, "Request timeout after 30s", resp.Error)
}

func TestMalformedRequestDualSignal(t *testing.T) {
	f := newFixture(nil)

	f.host.HandleMessage(context.Background(), "frame-1",
		[]byte(`{"type":"request","id":3,"appId":"","action":"add"}`))

	resp := f.sender.next(t).(protocol.Response)
	assert.Equal(t, int64(3), resp.ID)
	assert.Equal(t, "Invalid request", resp.Error)
	assert.Equal(t, 1, f.reporter.count())
	assert.Zero(t, f.forward.callCount())
}

func TestMalformedMessageReportedOnly(t *testing.T) {
	f := newFixture(nil)

	f.host.HandleMessage(context.Background(), "frame-1", []byte(`not json`))

	assert.Equal(t, 1, f.reporter.count())
	assert.True(t, f.sender.empty())
}

func TestResizeClampsAndCompensates(t *testing.T) {
	vp := Viewport{ScrollTop: 1000, ViewportHeight: 800, ContentHeight: 3000, WidgetTop: 100, WidgetHeight: 100}
	f := newFixture(func() Viewport { return vp })

	f.host.HandleMessage(context.Background(), "frame-1",
		[]byte(`{"type":"resize","height":400}`))

	require.Len(t, f.resizes, 1)
	assert.Equal(t, 400, f.resizes[0])
	// Widget above center: scroll shifts by delta from the default height.
	assert.Equal(t, float64(400-DefaultHeight), f.adjusts[0].ScrollDelta)

	f.host.HandleMessage(context.Background(), "frame-1",
		[]byte(`{"type":"resize","height":20}`))
	require.Len(t, f.resizes, 2)
	assert.Equal(t, MinHeight, f.resizes[1])
}

func TestInvalidResizeReported(t *testing.T) {
	f := newFixture(nil)

	f.host.HandleMessage(context.Background(), "frame-1",
		[]byte(`{"type":"resize","height":-10}`))

	assert.Empty(t, f.resizes)
	assert.Equal(t, 1, f.reporter.count())
}

func TestErrorReportForwarded(t *testing.T) {
	f := newFixture(nil)

	f.host.HandleMessage(context.Background(), "frame-1",
		[]byte(`{"type":"error","error":"boom","stack":"at init"}`))

	require.Equal(t, 1, f.reporter.count())
	assert.Equal(t, "boom", f.reporter.reports[0])
}

func TestStateUpdatedOnlyForTrackedApps(t *testing.T) {
	f := newFixture(nil)

	f.host.HandleMessage(context.Background(), "frame-1",
		[]byte(`{"type":"getState","appId":"todo"}`))
	f.sender.next(t) // drain state reply

	f.host.HandleStateUpdated("default", "other")
	assert.True(t, f.sender.empty())

	f.host.HandleStateUpdated("another-conversation", "todo")
	assert.True(t, f.sender.empty())

	f.host.HandleStateUpdated("default", "todo")
	updated := f.sender.next(t).(protocol.StateUpdated)
	assert.Equal(t, "todo", updated.AppID)
}

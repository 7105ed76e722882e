package protocol

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

// Message type tags, widget to host.
const (
	TypeGetState = "getState"
	TypeSetState = "setState"
	TypeResize   = "resize"
	TypeRequest  = "request"
	TypeError    = "error"
)

// Message type tags, host to widget.
const (
	TypeState        = "state"
	TypeResponse     = "response"
	TypeStateUpdated = "stateUpdated"
)

// GetState asks the host for the persisted state of an app.
type GetState struct {
	AppID string
}

// SetState asks the host to persist state. Best-effort, no reply.
type SetState struct {
	AppID string
	State json.RawMessage
}

// Resize reports the widget's desired content height in pixels.
type Resize struct {
	Height float64
}

// Request asks the host to perform a server action on the widget's
// behalf. The reply carries the same ID.
type Request struct {
	ID      int64
	AppID   string
	Action  string
	Payload json.RawMessage
}

// ErrorReport surfaces an uncaught widget error to the host.
type ErrorReport struct {
	Error string
	Stack string
}

// State replies to GetState.
type State struct {
	Type  string          `json:"type"`
	State json.RawMessage `json:"state"`
}

// Response replies to Request. Data and Error are mutually exclusive.
type Response struct {
	Type  string          `json:"type"`
	ID    int64           `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// StateUpdated invalidates the widget's cached state for an app. The
// widget re-requests getState; no diff is pushed.
type StateUpdated struct {
	Type  string `json:"type"`
	AppID string `json:"appId"`
}

// MalformedError describes a message that failed boundary validation.
// Malformed traffic is answered with a typed failure and reported, not
// silently dropped.
type MalformedError struct {
	Reason string
	// RequestID is set when the broken message carried a usable id, so
	// the caller's pending promise can still be rejected.
	RequestID int64
	HasID     bool
}

func (e *MalformedError) Error() string {
	return e.Reason
}

// Parse validates one inbound postMessage payload and returns the
// matching variant: *GetState, *SetState, *Resize, *Request or
// *ErrorReport. Anything that does not match a known shape yields a
// *MalformedError.
func Parse(data []byte) (interface{}, error) {
	if !gjson.ValidBytes(data) {
		return nil, &MalformedError{Reason: "message is not valid JSON"}
	}

	parsed := gjson.ParseBytes(data)
	if !parsed.IsObject() {
		return nil, &MalformedError{Reason: "message is not an object"}
	}

	msgType := parsed.Get("type")
	if msgType.Type != gjson.String || msgType.String() == "" {
		return nil, &MalformedError{Reason: "missing message type"}
	}

	switch msgType.String() {
	case TypeGetState:
		appID, err := requireString(parsed, "appId")
		if err != nil {
			return nil, err
		}
		return &GetState{AppID: appID}, nil

	case TypeSetState:
		appID, err := requireString(parsed, "appId")
		if err != nil {
			return nil, err
		}
		state := parsed.Get("state")
		if !state.Exists() {
			return nil, &MalformedError{Reason: "setState: state required"}
		}
		return &SetState{AppID: appID, State: json.RawMessage(state.Raw)}, nil

	case TypeResize:
		height := parsed.Get("height")
		if height.Type != gjson.Number {
			return nil, &MalformedError{Reason: "resize: height must be a number"}
		}
		h := height.Float()
		if math.IsNaN(h) || math.IsInf(h, 0) || h <= 0 {
			return nil, &MalformedError{Reason: fmt.Sprintf("resize: invalid height %v", height.Raw)}
		}
		return &Resize{Height: h}, nil

	case TypeRequest:
		malformed := &MalformedError{}
		if id := parsed.Get("id"); id.Type == gjson.Number {
			malformed.RequestID = id.Int()
			malformed.HasID = true
		}

		appID := parsed.Get("appId")
		if appID.Type != gjson.String || appID.String() == "" {
			malformed.Reason = "request: appId must be a non-empty string"
			return nil, malformed
		}
		action := parsed.Get("action")
		if action.Type != gjson.String || action.String() == "" {
			malformed.Reason = "request: action must be a non-empty string"
			return nil, malformed
		}
		if !malformed.HasID {
			malformed.Reason = "request: id must be a number"
			return nil, malformed
		}

		var payload json.RawMessage
		if p := parsed.Get("payload"); p.Exists() {
			payload = json.RawMessage(p.Raw)
		}
		return &Request{
			ID:      malformed.RequestID,
			AppID:   appID.String(),
			Action:  action.String(),
			Payload: payload,
		}, nil

	case TypeError:
		errMsg := parsed.Get("error")
		if errMsg.Type != gjson.String || errMsg.String() == "" {
			return nil, &MalformedError{Reason: "error: error message required"}
		}
		return &ErrorReport{
			Error: errMsg.String(),
			Stack: parsed.Get("stack").String(),
		}, nil
	}

	return nil, &MalformedError{Reason: "unknown message type: " + msgType.String()}
}

func requireString(parsed gjson.Result, field string) (string, *MalformedError) {
	v := parsed.Get(field)
	if v.Type != gjson.String || v.String() == "" {
		return "", &MalformedError{Reason: field + " must be a non-empty string"}
	}
	return v.String(), nil
}

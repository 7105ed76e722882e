package errors

import "net/http"

// Business error codes. 0 means success; 1xxx are generic, 2xxx message
// store, 3xxx widget/app-state, 4xxx auth, 5xxx agent.
const (
	Success = 0

	ErrInternalServer = 1000
	ErrBadRequest     = 1001
	ErrInvalidParams  = 1002
	ErrNotFound       = 1003
	ErrUnauthorized   = 1004
	ErrForbidden      = 1005
	ErrConflict       = 1006

	ErrContentRequired   = 2000
	ErrMessageNotFound   = 2001
	ErrMessageImmutable  = 2002
	ErrAttachmentTooBig  = 2003
	ErrAttachmentStorage = 2004

	ErrStateRequired   = 3000
	ErrStateTooLarge   = 3001
	ErrAppStateMissing = 3002
	ErrActionRequired  = 3003
	ErrWidgetNotFound  = 3004

	ErrInviteInvalid = 4000
	ErrInviteUsed    = 4001
	ErrInviteExpired = 4002
	ErrSessionExpired = 4003

	ErrAgentUnreachable = 5000
	ErrPromptNotFound   = 5001
	ErrPromptSave       = 5002
)

var messages = map[int]string{
	Success: "success",

	ErrInternalServer: "internal server error",
	ErrBadRequest:     "bad request",
	ErrInvalidParams:  "invalid parameters",
	ErrNotFound:       "not found",
	ErrUnauthorized:   "unauthorized",
	ErrForbidden:      "forbidden",
	ErrConflict:       "conflict",

	ErrContentRequired:   "content required",
	ErrMessageNotFound:   "message not found",
	ErrMessageImmutable:  "cannot edit internal messages",
	ErrAttachmentTooBig:  "attachment too large",
	ErrAttachmentStorage: "failed to store attachment",

	ErrStateRequired:   "state required",
	ErrStateTooLarge:   "state too large (max 1MB)",
	ErrAppStateMissing: "app state not found",
	ErrActionRequired:  "action required",
	ErrWidgetNotFound:  "widget not found",

	ErrInviteInvalid:  "invalid invite",
	ErrInviteUsed:     "invite already used",
	ErrInviteExpired:  "invite expired",
	ErrSessionExpired: "session expired",

	ErrAgentUnreachable: "agent unreachable",
	ErrPromptNotFound:   "prompt not found",
	ErrPromptSave:       "failed to save prompt",
}

var httpStatus = map[int]int{
	Success: http.StatusOK,

	ErrInternalServer: http.StatusInternalServerError,
	ErrBadRequest:     http.StatusBadRequest,
	ErrInvalidParams:  http.StatusBadRequest,
	ErrNotFound:       http.StatusNotFound,
	ErrUnauthorized:   http.StatusUnauthorized,
	ErrForbidden:      http.StatusForbidden,
	ErrConflict:       http.StatusConflict,

	ErrContentRequired:   http.StatusBadRequest,
	ErrMessageNotFound:   http.StatusNotFound,
	ErrMessageImmutable:  http.StatusBadRequest,
	ErrAttachmentTooBig:  http.StatusRequestEntityTooLarge,
	ErrAttachmentStorage: http.StatusInternalServerError,

	ErrStateRequired:   http.StatusBadRequest,
	ErrStateTooLarge:   http.StatusBadRequest,
	ErrAppStateMissing: http.StatusNotFound,
	ErrActionRequired:  http.StatusBadRequest,
	ErrWidgetNotFound:  http.StatusNotFound,

	ErrInviteInvalid:  http.StatusNotFound,
	ErrInviteUsed:     http.StatusGone,
	ErrInviteExpired:  http.StatusGone,
	ErrSessionExpired: http.StatusUnauthorized,

	ErrAgentUnreachable: http.StatusBadGateway,
	ErrPromptNotFound:   http.StatusNotFound,
	ErrPromptSave:       http.StatusInternalServerError,
}

// GetMessage returns the canonical message for a code
func GetMessage(code int) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[ErrInternalServer]
}

// GetHTTPStatus maps a business code to an HTTP status
func GetHTTPStatus(code int) int {
	if status, ok := httpStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FormatError builds a user-facing message from a code and optional details
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return msg + ": " + details[0]
	}
	return msg
}

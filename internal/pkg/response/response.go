package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/clawchat/clawchat-backend/internal/pkg/errors"
)

// The wire contract is plain JSON bodies: resources are returned as-is,
// failures as {"error": "..."} and acknowledgements as {"ok": true}.
// Browser clients and the agent both key off these exact shapes.

// JSON writes a 200 response with the given body
func JSON(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// OK writes the {"ok": true} acknowledgement
func OK(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Error writes an error body with an explicit HTTP status
func Error(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, gin.H{"error": message})
}

// BadRequest writes a 400 error
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Unauthorized writes a 401 error
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// NotFound writes a 404 error
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// InternalError writes a 500 error
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

// HandleError maps an AppError (or plain error) onto the wire contract
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	code := apperrors.ExtractCode(err)
	httpStatus := apperrors.GetHTTPStatus(code)
	message := apperrors.FormatError(code, apperrors.GetDetails(err))

	c.JSON(httpStatus, gin.H{"error": message})
}

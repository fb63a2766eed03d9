package handler

import (
	"errors"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/service"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/workflow"
	"github.com/gin-gonic/gin"
)

// 业务错误码
const (
	CodeBadRequest      = 40000
	CodeUnauthorized    = 40100
	CodeInvalidToken    = 40101
	CodeForbidden       = 40300
	CodePendingApproval = 40301
	CodeAccountRejected = 40302
	CodeNotFound        = 40400
	CodeConflict        = 40900
	CodeInvalidState    = 40901
	CodeProjectLocked   = 40902
	CodeInternal        = 50000
	CodeStoreWrite      = 50001
)

// codeOf maps a service error to its envelope code.
func codeOf(err error) int {
	var ve *workflow.ValidationError
	var we *workflow.StoreWriteError
	switch {
	case errors.As(err, &ve):
		return CodeBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		return CodeUnauthorized
	case errors.Is(err, service.ErrInvalidToken):
		return CodeInvalidToken
	case errors.Is(err, workflow.ErrPendingApproval):
		return CodePendingApproval
	case errors.Is(err, workflow.ErrAccountRejected):
		return CodeAccountRejected
	case errors.Is(err, workflow.ErrForbidden):
		return CodeForbidden
	case errors.Is(err, workflow.ErrRecordNotFound), errors.Is(err, service.ErrGoogleDisabled):
		return CodeNotFound
	case errors.Is(err, workflow.ErrProjectLocked):
		return CodeProjectLocked
	case errors.Is(err, workflow.ErrInvalidTransition):
		return CodeInvalidState
	case errors.Is(err, workflow.ErrConflict):
		return CodeConflict
	case errors.As(err, &we):
		return CodeStoreWrite
	}
	return CodeInternal
}

// Fail writes err as an error envelope.
func Fail(c *gin.Context, err error) {
	code := codeOf(err)
	_ = c.Error(err)
	message := err.Error()
	if code >= 50000 {
		message = "internal error: " + message
	}
	Error(c, code, message)
}

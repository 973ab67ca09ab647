package responses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	domain "github.com/postora/postora-server/internal/domain/upload"
	"github.com/postora/postora-server/internal/utils/platformerrors"
)

const (
	uploadRejectedCode = "cd11fb86-6834-4bca-bdbf-e622bb479975"
	uploadFailedCode   = "2afd1f34-4dc1-4adb-99cb-5b8ef14f3c3f"
)

// ErrorResponse represents an error response with platform error details
type ErrorResponse struct {
	Code      string        `json:"code,omitempty"` // UUID from PlatformError
	Error     string        `json:"error"`
	Message   string        `json:"message,omitempty"`
	Type      string        `json:"type,omitempty"`
	Stage     string        `json:"stage,omitempty"`
	Kind      string        `json:"kind,omitempty"`
	Failures  []FileFailure `json:"failures,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// FileFailure describes one failed file of an upload request.
type FileFailure struct {
	Field  string `json:"field,omitempty"`
	File   string `json:"file,omitempty"`
	Stage  string `json:"stage"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// HandleError handles domain errors and returns appropriate HTTP responses.
// Server-side platform errors are logged through the request logger.
func HandleError(reqCtx *gin.Context, err error, message string) {
	requestID := platformerrors.RequestIDFromContext(reqCtx.Request.Context())
	_ = reqCtx.Error(err)

	platformErr := platformerrors.GetPlatformError(err)
	if platformErr != nil && platformerrors.ErrorTypeToHTTPStatus(platformErr.Type) >= http.StatusInternalServerError {
		platformerrors.LogError(*zerolog.Ctx(reqCtx.Request.Context()), platformErr)
	}

	var batchErr *domain.BatchError
	if errors.As(err, &batchErr) {
		status, errType, code := uploadStatus(batchErr.IsCallerError(), domain.StagePersist)
		resp := ErrorResponse{
			Code:      code,
			Error:     message,
			Message:   batchErr.Error(),
			Type:      string(errType),
			RequestID: requestID,
		}
		for _, f := range batchErr.Failures {
			resp.Failures = append(resp.Failures, failureOf(f))
		}
		if len(batchErr.Failures) > 0 {
			resp.Stage = string(batchErr.Failures[0].Stage)
			resp.Kind = string(batchErr.Failures[0].Kind)
			if !batchErr.IsCallerError() {
				_, errType, _ = uploadStatus(false, batchErr.Failures[0].Stage)
				resp.Type = string(errType)
			}
		}
		reqCtx.AbortWithStatusJSON(status, resp)
		return
	}

	var uploadErr *domain.Error
	if errors.As(err, &uploadErr) {
		status, errType, code := uploadStatus(uploadErr.IsCallerError(), uploadErr.Stage)
		reqCtx.AbortWithStatusJSON(status, ErrorResponse{
			Code:      code,
			Error:     message,
			Message:   uploadErr.Reason,
			Type:      string(errType),
			Stage:     string(uploadErr.Stage),
			Kind:      string(uploadErr.Kind),
			Failures:  []FileFailure{failureOf(uploadErr)},
			RequestID: requestID,
		})
		return
	}

	if domainErr := platformErr; domainErr != nil {
		statusCode := platformerrors.ErrorTypeToHTTPStatus(domainErr.Type)

		errorMessage := domainErr.Message
		if errorMessage == "" {
			errorMessage = message
		}
		if domainErr.RequestID != "" {
			requestID = domainErr.RequestID
		}

		reqCtx.AbortWithStatusJSON(statusCode, ErrorResponse{
			Code:      domainErr.UUID,
			Error:     errorMessage,
			Message:   errorMessage,
			Type:      string(domainErr.Type),
			RequestID: requestID,
		})
		return
	}

	// Non-platform errors
	reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Error:     message,
		Message:   message,
		Type:      string(platformerrors.ErrorTypeInternal),
		RequestID: requestID,
	})
}

// HandleNewError creates a new typed error at the route layer and handles it
func HandleNewError(reqCtx *gin.Context, errorType platformerrors.ErrorType, message string, uuid string) {
	ctx := reqCtx.Request.Context()
	err := platformerrors.NewError(ctx, platformerrors.LayerRoute, errorType, message, nil, uuid)

	reqCtx.AbortWithStatusJSON(platformerrors.ErrorTypeToHTTPStatus(err.Type), ErrorResponse{
		Code:      err.UUID,
		Error:     message,
		Message:   message,
		Type:      string(err.Type),
		RequestID: err.RequestID,
	})
}

func uploadStatus(callerError bool, stage domain.Stage) (int, platformerrors.ErrorType, string) {
	if callerError {
		return http.StatusBadRequest, platformerrors.ErrorTypeValidation, uploadRejectedCode
	}
	if stage == domain.StageRecord {
		return http.StatusInternalServerError, platformerrors.ErrorTypeDatabaseError, uploadFailedCode
	}
	return http.StatusInternalServerError, platformerrors.ErrorTypeStorage, uploadFailedCode
}

func failureOf(e *domain.Error) FileFailure {
	return FileFailure{
		Field:  e.Field,
		File:   e.File,
		Stage:  string(e.Stage),
		Kind:   string(e.Kind),
		Reason: e.Reason,
	}
}

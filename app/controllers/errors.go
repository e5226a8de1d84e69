package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/institution-matcher/app/responses"
	"github.com/institution-matcher/app/services"
	"github.com/institution-matcher/internal/grouping"
	"github.com/institution-matcher/internal/matcher"
	"go.uber.org/zap"
)

// errorStatus map lỗi domain sang HTTP status + mã lỗi
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, matcher.ErrInvalidInput), errors.Is(err, grouping.ErrInvalidThreshold):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, matcher.ErrUnknownStandardCode):
		return http.StatusNotFound, "UNKNOWN_STANDARD_CODE"
	case errors.Is(err, matcher.ErrLogNotFound):
		return http.StatusNotFound, "LOG_NOT_FOUND"
	case errors.Is(err, services.ErrJobNotFound):
		return http.StatusNotFound, "JOB_NOT_FOUND"
	case errors.Is(err, services.ErrJobRunning):
		return http.StatusConflict, "JOB_RUNNING"
	case matcher.IsRetryable(err):
		return http.StatusServiceUnavailable, "DEPENDENCY_UNAVAILABLE"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func newError(c *gin.Context, code, message string) responses.ErrorResponse {
	return responses.ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: c.GetHeader("X-Request-ID"),
	}
}

// badRequest trả về 400 khi bind request thất bại
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, newError(c, "INVALID_REQUEST", "Request không hợp lệ: "+err.Error()))
}

// respondError ghi log và trả về lỗi theo errorStatus
func respondError(c *gin.Context, logger *zap.Logger, op string, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.String("op", op), zap.Error(err))
	}
	resp := newError(c, code, err.Error())
	resp.Retryable = status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout
	c.JSON(status, resp)
}

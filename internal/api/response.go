package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ebookGen/internal/api/middleware"
	"ebookGen/internal/ebook"
)

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func Unauthorized(c *gin.Context)           { Error(c, http.StatusUnauthorized, "unauthorized") }
func BadRequest(c *gin.Context, msg string) { Error(c, http.StatusBadRequest, msg) }
func Forbidden(c *gin.Context, msg string)  { Error(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)   { Error(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)   { Error(c, http.StatusConflict, msg) }
func Internal(c *gin.Context, msg string)   { Error(c, http.StatusInternalServerError, msg) }

// respondError 将领域错误映射为 HTTP 响应；未知错误记录日志并返回 500。
func respondError(c *gin.Context, err error, resource string) {
	var validation *ebook.ValidationError
	switch {
	case errors.As(err, &validation):
		BadRequest(c, validation.Error())
	case errors.Is(err, ebook.ErrNotFound):
		NotFound(c, resource+" not found")
	case errors.Is(err, ebook.ErrForbidden):
		Forbidden(c, "access denied")
	case errors.Is(err, ebook.ErrConflict):
		Conflict(c, resource+" already exists")
	default:
		middleware.LoggerFromContext(c).Error("request failed",
			slog.String("resource", resource),
			slog.Any("error", err),
		)
		_ = c.Error(err)
		Internal(c, "internal error")
	}
}

// parseIDParam 解析路径中的正整数 ID，失败时直接写 400。
func parseIDParam(c *gin.Context, name, resource string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid "+resource+" id")
		return 0, false
	}
	return uint(id), true
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	return middleware.UserID(c)
}

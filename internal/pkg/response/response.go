package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quillspace/core/internal/pkg/errs"
)

// Pagination metadata returned with paginated responses.
type Pagination struct {
	Page       int   `json:"page"`
	TotalPages int   `json:"totalPages"`
	Total      int64 `json:"total"`
}

// OK sends a 200 response.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Paged sends a paginated list response with the items under itemsKey.
func Paged(c *gin.Context, itemsKey string, items interface{}, p Pagination) {
	c.JSON(http.StatusOK, gin.H{
		"page":       p.Page,
		"totalPages": p.TotalPages,
		"total":      p.Total,
		itemsKey:     items,
	})
}

// Err renders an application error as {message, kind} with the mapped status.
func Err(c *gin.Context, err error) {
	appErr := errs.From(err)
	c.AbortWithStatusJSON(appErr.Status(), gin.H{
		"message": appErr.Message,
		"kind":    appErr.Kind,
	})
}

// BadRequest sends a 400 validation error response.
func BadRequest(c *gin.Context, message string) {
	Err(c, errs.Validation(message))
}

// Unauthorized sends a 401 error response.
func Unauthorized(c *gin.Context, message string) {
	Err(c, errs.Authentication(message))
}

// Forbidden sends a 403 error response.
func Forbidden(c *gin.Context, message string) {
	Err(c, errs.Authorization(message))
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context, message string) {
	Err(c, errs.NotFound(message))
}

// Conflict sends a 409 error response.
func Conflict(c *gin.Context, message string) {
	Err(c, errs.Conflict(message))
}

package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/quillspace/core/internal/pkg/response"
	"gorm.io/gorm"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Query holds parsed pagination parameters.
type Query struct {
	Page  int
	Limit int
}

// FromContext extracts and validates page/limit params from the request.
func FromContext(c *gin.Context) Query {
	page := parseIntOr(c.DefaultQuery("page", "1"), DefaultPage)
	limit := parseIntOr(c.DefaultQuery("limit", "10"), DefaultLimit)

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Query{Page: page, Limit: limit}
}

// Paginate applies limit/offset to a GORM query and returns the pagination
// metadata. The count runs on the query before offsetting.
func Paginate[T any](db *gorm.DB, q Query, dest *[]T) (response.Pagination, error) {
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return response.Pagination{}, err
	}

	offset := (q.Page - 1) * q.Limit
	if err := db.Offset(offset).Limit(q.Limit).Find(dest).Error; err != nil {
		return response.Pagination{}, err
	}
	if *dest == nil {
		*dest = []T{}
	}

	totalPages := int((total + int64(q.Limit) - 1) / int64(q.Limit))

	return response.Pagination{
		Page:       q.Page,
		TotalPages: totalPages,
		Total:      total,
	}, nil
}

func parseIntOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

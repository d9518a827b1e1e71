package utils

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type PageParams struct {
	Page     int
	PageSize int
}

// Offset returns the row offset for the page.
func (p PageParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// ParsePageParams reads page/page_size query params with bounds.
func ParsePageParams(c *gin.Context, defaultPageSize, maxPageSize int) PageParams {
	page := 1
	pageSize := defaultPageSize
	if v := strings.TrimSpace(c.Query("page")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := strings.TrimSpace(c.Query("page_size")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			if n > maxPageSize {
				n = maxPageSize
			}
			pageSize = n
		}
	}
	return PageParams{Page: page, PageSize: pageSize}
}

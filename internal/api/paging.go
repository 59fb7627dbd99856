package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultPageLimit = 100

// pageParams reads limit/offset query params. limit defaults to 100;
// limit=all (or limit=0) means "no limit", per spec.md §4.5.
func pageParams(c *gin.Context) (limit, offset int) {
	limit = defaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		if raw == "all" {
			limit = 0
		} else if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			offset = v
		}
	}
	return limit, offset
}

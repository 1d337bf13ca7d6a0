package http

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// PaginatedResponse wraps list results with pagination metadata.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination contains offset-based pagination info.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// pageParams reads offset/limit from the query string with the list defaults.
func pageParams(c *fiber.Ctx) (offset, limit int) {
	offset = c.QueryInt("offset", 0)
	limit = c.QueryInt("limit", 50)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return offset, limit
}

// SetLinkHeaders adds RFC 8288 Link headers for paginated responses.
// Filters other than offset/limit are carried over to every link.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	base := c.Path()
	extra := ""
	if region := c.Query("region"); region != "" {
		extra = "&region=" + url.QueryEscape(region)
	}
	link := func(offset int, rel string) string {
		return fmt.Sprintf(`<%s?offset=%d&limit=%d%s>; rel="%s"`, base, offset, p.Limit, extra, rel)
	}

	links := []string{link(0, "first")}

	if p.Offset > 0 {
		prev := p.Offset - p.Limit
		if prev < 0 {
			prev = 0
		}
		links = append(links, link(prev, "prev"))
	}

	if p.Offset+p.Limit < p.Total {
		links = append(links, link(p.Offset+p.Limit, "next"))
	}

	lastOffset := p.Total - p.Limit
	if lastOffset < 0 {
		lastOffset = 0
	}
	links = append(links, link(lastOffset, "last"))

	c.Set("Link", strings.Join(links, ", "))
}

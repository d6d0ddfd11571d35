package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// Page is one slice of a list endpoint's results.
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination contains offset-based pagination info.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// paginate cuts items down to the page named by ?offset= and ?limit= and
// sets the matching Link header. Out of range values fall back to defaults.
func paginate[T any](c *fiber.Ctx, items []T) Page[T] {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", defaultPageLimit)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}

	pg := Pagination{Offset: offset, Limit: limit, Total: len(items)}
	page := []T{}
	if offset < len(items) {
		page = items[offset:min(offset+limit, len(items))]
	}
	setLinkHeader(c, pg)
	return Page[T]{Data: page, Pagination: pg}
}

// setLinkHeader adds RFC 8288 first/prev/next/last links. Query parameters
// other than offset and limit are carried over so filters survive paging.
func setLinkHeader(c *fiber.Ctx, p Pagination) {
	q := url.Values{}
	for k, v := range c.Queries() {
		q.Set(k, v)
	}
	link := func(offset int, rel string) string {
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(p.Limit))
		return fmt.Sprintf(`<%s?%s>; rel="%s"`, c.Path(), q.Encode(), rel)
	}

	links := []string{link(0, "first")}
	if p.Offset > 0 {
		links = append(links, link(max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, link(p.Offset+p.Limit, "next"))
	}
	links = append(links, link(max(p.Total-p.Limit, 0), "last"))

	c.Set("Link", strings.Join(links, ", "))
}

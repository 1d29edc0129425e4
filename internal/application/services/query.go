package services

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/taskmaster/taskboard/internal/domain/entities"
	"github.com/taskmaster/taskboard/internal/ports"
)

const (
	// MaxSearchLength caps the search term, in characters
	MaxSearchLength = 100
	// MaxPageSize caps the page size of every listing
	MaxPageSize = 100

	DefaultTaskPageSize        = 50
	DefaultProjectTaskPageSize = 20
)

// SanitizeSearch strips control characters, truncates to MaxSearchLength
// characters and trims. The result is a literal: each backend escapes it for
// its own query language.
func SanitizeSearch(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	if utf8.RuneCountInString(s) > MaxSearchLength {
		s = string([]rune(s)[:MaxSearchLength])
	}
	return strings.TrimSpace(s)
}

// Page resolves raw page and limit parameters. Non-numeric values fall back
// to the defaults; limit is clamped to [1, MaxPageSize] and page to >= 1.
// page is also capped so that (page-1)*limit cannot overflow.
func Page(rawPage, rawLimit string, defaultLimit int) (page, limit int) {
	page = parseInt(rawPage, 1)
	limit = parseInt(rawLimit, defaultLimit)

	if limit < 1 {
		limit = 1
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	if maxPage := math.MaxInt / limit; page > maxPage {
		page = maxPage
	}
	return page, limit
}

func parseInt(s string, fallback int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	// Accept "2.0" the way a numeric cast would.
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		return int(f)
	}
	return fallback
}

// taskFilter translates listing parameters into a repository filter.
// "all" and empty values mean no filter.
func taskFilter(projectIDs []string, q ports.ListTasksQuery, page, limit int) ports.TaskFilter {
	f := ports.TaskFilter{
		ProjectIDs: projectIDs,
		Search:     SanitizeSearch(q.Search),
		Limit:      limit,
		Offset:     (page - 1) * limit,
	}
	if q.Status != "" && q.Status != "all" {
		status := entities.TaskStatus(q.Status)
		f.Status = &status
	}
	if q.Priority != "" && q.Priority != "all" {
		priority := entities.Priority(q.Priority)
		f.Priority = &priority
	}
	if q.Assignee != "" && q.Assignee != "all" {
		assignee := q.Assignee
		f.AssigneeID = &assignee
	}
	return f
}

func pagination(page, limit int, total int64) ports.Pagination {
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return ports.Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

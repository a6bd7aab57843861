package api

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotLoggedIn  = errors.New("not logged in")
)

// Error is a non-2xx answer from the server.
type Error struct {
	Status int
	Code   string
	Fields map[string][]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Code, e.Status)
	}

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(e.Code)
	for _, name := range names {
		fmt.Fprintf(&b, "\n  %s: %s", name, strings.Join(e.Fields[name], " "))
	}
	return b.String()
}

// Is lets callers match 401s with errors.Is(err, ErrUnauthorized) and 503s
// with ErrUnavailable.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == 401
	case ErrUnavailable:
		return e.Status == 503
	}
	return false
}

package pagination

import (
	"fmt"
	"net/http"
	"strconv"
)

// Window defaults.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Window holds skip/limit parameters extracted from query strings.
type Window struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

// DefaultWindow returns the window used when a request names none.
func DefaultWindow() Window {
	return Window{Skip: 0, Limit: DefaultLimit}
}

// Clamp forces w into the accepted range: a negative skip becomes 0, a
// non-positive limit becomes DefaultLimit and a limit above MaxLimit is capped.
func (w Window) Clamp() Window {
	if w.Skip < 0 {
		w.Skip = 0
	}
	if w.Limit <= 0 {
		w.Limit = DefaultLimit
	}
	if w.Limit > MaxLimit {
		w.Limit = MaxLimit
	}
	return w
}

// FromRequest extracts the skip and limit query parameters from r. Values
// that are not integers are rejected; out-of-range integers are clamped.
func FromRequest(r *http.Request) (Window, error) {
	w := DefaultWindow()
	q := r.URL.Query()

	if v := q.Get("skip"); v != "" {
		skip, err := strconv.Atoi(v)
		if err != nil {
			return Window{}, fmt.Errorf("skip must be a valid integer")
		}
		w.Skip = skip
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return Window{}, fmt.Errorf("limit must be a valid integer")
		}
		w.Limit = limit
	}

	return w.Clamp(), nil
}

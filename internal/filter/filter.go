// Package filter turns view and filter selections into either server query
// parameters or a local predicate chain over an in-memory task list.
package filter

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ytakahashi/taskboard/internal/models"
)

// View is one of the task list pages.
type View int

const (
	ViewAll View = iota
	ViewCompleted
	ViewImportant
)

func (v View) String() string {
	switch v {
	case ViewCompleted:
		return "completed"
	case ViewImportant:
		return "important"
	default:
		return "all"
	}
}

// ParseView maps a view name to a View. The empty string is ViewAll.
func ParseView(name string) (View, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "all":
		return ViewAll, nil
	case "completed":
		return ViewCompleted, nil
	case "important":
		return ViewImportant, nil
	}
	return ViewAll, fmt.Errorf("unknown view %q", name)
}

// Selection is the user-adjustable part of a filter.
type Selection struct {
	// Status nil means "All".
	Status        *models.Status
	ImportantOnly bool
}

// Filter constrains a task list. The zero value matches everything.
type Filter struct {
	Status    *models.Status
	Important *bool
}

// Compose layers the fixed predicate of a view on top of a selection.
func Compose(view View, sel Selection) Filter {
	var f Filter
	if sel.Status != nil {
		s := *sel.Status
		f.Status = &s
	}
	if sel.ImportantOnly {
		f.Important = boolPtr(true)
	}

	switch view {
	case ViewCompleted:
		s := models.StatusCompleted
		f.Status = &s
	case ViewImportant:
		f.Important = boolPtr(true)
	}
	return f
}

// Match reports whether t passes every set predicate.
func (f Filter) Match(t models.Task) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Important != nil && t.Important != *f.Important {
		return false
	}
	return true
}

// Apply runs the predicate chain over tasks, keeping their order. Each set
// predicate is applied as its own step. The input slice is not modified.
func (f Filter) Apply(tasks []models.Task) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	out = append(out, tasks...)

	if f.Status != nil {
		out = keep(out, Filter{Status: f.Status})
	}
	if f.Important != nil {
		out = keep(out, Filter{Important: f.Important})
	}
	return out
}

func keep(tasks []models.Task, step Filter) []models.Task {
	kept := tasks[:0]
	for _, t := range tasks {
		if step.Match(t) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Query encodes the filter as server query parameters.
func (f Filter) Query() url.Values {
	q := url.Values{}
	if f.Status != nil {
		q.Set("status", f.Status.String())
	}
	if f.Important != nil {
		if *f.Important {
			q.Set("important", "true")
		} else {
			q.Set("important", "false")
		}
	}
	return q
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.Status == nil && f.Important == nil
}

// ParseQuery reads the status and important query parameters. Absent
// parameters leave the corresponding predicate unset.
func ParseQuery(q url.Values) (Filter, error) {
	var f Filter

	if v := q.Get("status"); v != "" {
		s, err := models.ParseStatus(v)
		if err != nil {
			return Filter{}, err
		}
		f.Status = &s
	}

	if q.Has("important") {
		switch strings.ToLower(strings.TrimSpace(q.Get("important"))) {
		case "true":
			f.Important = boolPtr(true)
		case "false":
			f.Important = boolPtr(false)
		default:
			return Filter{}, errors.New("important must be true or false")
		}
	}

	return f, nil
}

func boolPtr(b bool) *bool {
	return &b
}

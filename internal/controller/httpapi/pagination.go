package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

// parseFilter читает limit, offset и диапазон from/to (RFC3339) из query
func parseFilter(r *http.Request) (model.ListFilter, error) {
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	filter := model.ListFilter{Limit: limit, Offset: offset}

	var err error
	if filter.From, err = parseTimeParam(q.Get("from"), "from"); err != nil {
		return filter, err
	}
	if filter.To, err = parseTimeParam(q.Get("to"), "to"); err != nil {
		return filter, err
	}
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		return filter, errs.Validation("to must be after from")
	}

	return filter.Normalized(), nil
}

func parseTimeParam(raw, name string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errs.Validation(name + " must be RFC3339")
	}
	t = t.UTC()
	return &t, nil
}

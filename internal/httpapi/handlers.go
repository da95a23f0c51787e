package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/datamap/pkg/orm/model"
	"github.com/conduit-lang/datamap/pkg/orm/serializer"
)

type handler struct {
	models Models
	logger *zap.Logger
}

// fail renders err and logs it when it is a server-side failure
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if statusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	renderError(w, err)
}

func (h *handler) class(r *http.Request) (*model.Class, error) {
	name := chi.URLParam(r, "model")
	class, ok := h.models.Model(name)
	if !ok {
		return nil, fmt.Errorf("model %q: %w", name, errNotFound)
	}
	return class, nil
}

func (h *handler) index(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, jsonMediaType, map[string]any{"models": h.models.Models()})
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	class, err := h.class(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	opts, err := parseMulti(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	where := parseFilter(r.URL.Query())

	items, err := class.Some(r.Context(), where, opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	total, err := class.CountSome(r.Context(), where)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	name := serializerName(r)
	var sopts serializer.Options
	if name == serializer.JSONAPIName {
		page, limit := opts.PageOrDefault(), opts.LimitOrDefault()
		sopts = serializer.Options{
			"meta":  map[string]any{"total": total, "page": page, "limit": limit},
			"links": serializer.PaginationLinks(r.URL.RequestURI(), page, limit, total),
		}
	}

	out, err := items.Serialize(name, sopts)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	render(w, http.StatusOK, contentType(name), out)
}

func (h *handler) count(w http.ResponseWriter, r *http.Request) {
	class, err := h.class(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	n, err := class.CountSome(r.Context(), parseFilter(r.URL.Query()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	name := serializerName(r)
	if name == serializer.JSONAPIName {
		render(w, http.StatusOK, serializer.MediaType, map[string]any{"meta": map[string]any{"count": n}})
		return
	}
	render(w, http.StatusOK, jsonMediaType, map[string]any{"count": n})
}

func (h *handler) show(w http.ResponseWriter, r *http.Request) {
	class, err := h.class(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	inst, err := class.OneByID(r.Context(), id, parseSingle(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if inst == nil {
		h.fail(w, r, fmt.Errorf("%s %s: %w", class.Name(), id, errNotFound))
		return
	}

	name := serializerName(r)
	out, err := inst.Serialize(name, nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render(w, http.StatusOK, contentType(name), out)
}

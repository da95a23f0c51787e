package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/conduit-lang/datamap/pkg/orm/adapter"
	"github.com/conduit-lang/datamap/pkg/orm/model"
	"github.com/conduit-lang/datamap/pkg/orm/schema"
	"github.com/conduit-lang/datamap/pkg/orm/serializer"
	"github.com/conduit-lang/datamap/pkg/orm/types"
)

const jsonMediaType = "application/json; charset=utf-8"

// IsJSONAPI checks if the request accepts JSON:API format
func IsJSONAPI(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if accept == "" {
		return false
	}

	// Parse media type to handle parameters like charset
	mediaType, _, err := mime.ParseMediaType(accept)
	if err != nil {
		return strings.Contains(accept, serializer.MediaType)
	}
	return mediaType == serializer.MediaType
}

// serializerName picks the serializer for a request: an explicit
// ?serializer= wins over content negotiation
func serializerName(r *http.Request) string {
	if name := r.URL.Query().Get("serializer"); name != "" {
		return name
	}
	if IsJSONAPI(r) {
		return serializer.JSONAPIName
	}
	return serializer.DefaultName
}

func contentType(name string) string {
	if name == serializer.JSONAPIName {
		return serializer.MediaType
	}
	return jsonMediaType
}

// render marshals payload before touching the response so a marshal
// failure never leaves a partial write
func render(w http.ResponseWriter, status int, mediaType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		renderError(w, fmt.Errorf("failed to encode response: %w", err))
		return
	}

	w.Header().Set("Content-Type", mediaType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// apiError is one entry of a JSON:API errors document
type apiError struct {
	Status string       `json:"status"`
	Code   string       `json:"code"`
	Title  string       `json:"title"`
	Detail string       `json:"detail,omitempty"`
	Source *errorSource `json:"source,omitempty"`
}

type errorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// errNotFound is rendered when a model or record does not exist
var errNotFound = errors.New("not found")

// badRequest marks a malformed query parameter
type badRequest struct {
	Parameter string
	Err       error
}

func (e *badRequest) Error() string {
	return fmt.Sprintf("invalid %s parameter: %v", e.Parameter, e.Err)
}

func (e *badRequest) Unwrap() error { return e.Err }

// statusFor maps an error to its HTTP status
func statusFor(err error) int {
	var bad *badRequest
	switch {
	case errors.Is(err, errNotFound), model.IsNotFound(err):
		return http.StatusNotFound
	case errors.As(err, &bad),
		schema.IsInvalidAttribute(err),
		types.IsTypeError(err),
		errors.Is(err, model.ErrUnknownSerializer):
		return http.StatusBadRequest
	case types.IsValidationFailed(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, adapter.ErrUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func errorCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "validation_error"
	case http.StatusNotImplemented:
		return "not_implemented"
	default:
		return "internal_error"
	}
}

// renderError renders err as a JSON:API errors document. Unknown
// attributes produce one entry per attribute.
func renderError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	base := apiError{
		Status: strconv.Itoa(status),
		Code:   errorCodeFromStatus(status),
		Title:  http.StatusText(status),
		Detail: err.Error(),
	}
	if status == http.StatusInternalServerError {
		base.Detail = ""
	}

	var list []apiError
	var invalid *schema.InvalidAttributeError
	var bad *badRequest
	switch {
	case errors.As(err, &invalid):
		for _, attr := range invalid.Attributes {
			e := base
			e.Detail = fmt.Sprintf("unknown attribute %q", attr)
			e.Source = &errorSource{Parameter: attr}
			list = append(list, e)
		}
	case errors.As(err, &bad):
		base.Source = &errorSource{Parameter: bad.Parameter}
		list = append(list, base)
	default:
		list = append(list, base)
	}

	data, merr := json.Marshal(map[string][]apiError{"errors": list})
	if merr != nil {
		w.Header().Set("Content-Type", serializer.MediaType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"errors":[{"status":"500","code":"internal_error","title":"Internal Server Error"}]}`))
		return
	}

	w.Header().Set("Content-Type", serializer.MediaType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

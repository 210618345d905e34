package internal

import (
	"encoding/json"
	"net/http"
)

// HandlerFunc serves a request. A returned error is rendered by the app's
// ErrorHandler.
//
// Example:
//
//	func (h *employees) get(w http.ResponseWriter, r *http.Request) error {
//	    emp, err := h.dir.Get(r.Context(), chi.URLParam(r, "id"))
//	    if err != nil {
//	        return err
//	    }
//	    return writeJSON(w, http.StatusOK, emp)
//	}
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Middleware wraps an http.Handler to add cross-cutting concerns.
// It has the chi middleware signature.
type Middleware func(next http.Handler) http.Handler

// ErrorHandler renders an error returned from a handler.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Code   int    `json:"code"`
}

// DefaultErrorHandler writes err as JSON with the status from StatusFor.
// Server errors hide the underlying message.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	he := AsHTTPError(err)
	if he == nil {
		he = NewHTTPError(StatusFor(err), err.Error(), WithError(err))
	}

	body := errorBody{Error: he.Message, Detail: he.Detail, Code: he.Code}
	if he.Code >= http.StatusInternalServerError && he.Code != http.StatusBadGateway && he.Code != http.StatusGatewayTimeout {
		body.Error = http.StatusText(he.Code)
		body.Detail = ""
	}
	_ = writeJSON(w, he.Code, body)
}

// wrap adapts h to http.HandlerFunc using the app's error handler.
func (a *App) wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			a.logError(r, err)
			a.errorHandler(w, r, err)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return ErrBadRequest("invalid request body", WithDetail(err.Error()), WithError(err))
	}
	return nil
}

package kit

import (
	"encoding/json"
	"net/http"

	"github.com/hazyhaar/linkguard/idgen"
)

// HTTPDecoder turns a request into an endpoint request.
type HTTPDecoder func(r *http.Request) (any, error)

// ErrorStatus maps an endpoint error to an HTTP status.
type ErrorStatus func(err error) int

// HTTPHandler serves endpoint over HTTP with JSON responses. Decode
// failures answer 400.
func HTTPHandler(endpoint Endpoint, decode HTTPDecoder, status ErrorStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decode(r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err)
			return
		}
		ctx := WithRequestID(WithTransport(r.Context(), "http"), idgen.New())
		resp, err := endpoint(ctx, req)
		if err != nil {
			code := http.StatusInternalServerError
			if status != nil {
				code = status(err)
			}
			WriteError(w, code, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// DecodeJSON decodes the request body into a fresh T.
func DecodeJSON[T any](r *http.Request) (any, error) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// NoBody decodes nothing.
func NoBody(*http.Request) (any, error) { return nil, nil }

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, err error) {
	WriteJSON(w, status, map[string]string{"error": err.Error()})
}

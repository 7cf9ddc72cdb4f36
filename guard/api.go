package guard

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/linkguard/classify"
	"github.com/hazyhaar/linkguard/internal/kit"
)

// Router returns the HTTP control API.
//
//	GET  /health
//	GET  /features
//	PUT  /features/{name}   {"active": bool}
//	GET  /status
//	POST /classify          {"text": "..."}
func (c *Control) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		kit.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/features", kit.HTTPHandler(c.wrap("features", c.ListFeatures), kit.NoBody, errorStatus))
	r.Put("/features/{name}", kit.HTTPHandler(c.wrap("set_feature", c.SetFeature), decodeSetFeature, errorStatus))
	r.Get("/status", kit.HTTPHandler(c.wrap("status", c.Status), kit.NoBody, errorStatus))
	r.Post("/classify", kit.HTTPHandler(c.wrap("classify", c.Classify), kit.DecodeJSON[ClassifyRequest], errorStatus))
	return r
}

func decodeSetFeature(r *http.Request) (any, error) {
	v, err := kit.DecodeJSON[SetFeatureRequest](r)
	if err != nil {
		return nil, err
	}
	req := v.(*SetFeatureRequest)
	req.Name = chi.URLParam(r, "name")
	return req, nil
}

func errorStatus(err error) int {
	var ce *ClassifyError
	switch {
	case errors.Is(err, ErrUnknownFeature):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyText), errors.Is(err, ErrActiveRequired):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &ce):
		var se *classify.StatusError
		if errors.As(err, &se) && se.Status < 500 {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"meal-stub-service/config"
)

// NewRouter はルーターを生成する。metricsがnilでなければ/metricsで公開する。
func NewRouter(h *StubHandler, cfg *config.Config, metrics http.Handler) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	// ルート定義
	r.Route("/v1/batches", func(r chi.Router) {
		r.Post("/", h.CreateBatch)
		r.Get("/", h.ListBatches)
		r.Get("/{batch_id}", h.GetBatch)
		r.Get("/{batch_id}/stubs", h.ListStubs)
	})
	r.Route("/v1/stubs", func(r chi.Router) {
		r.Post("/verify", h.VerifyStub)
		r.Post("/redeem", h.RedeemStub)
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	if cfg.OtelEnabled {
		return otelhttp.NewHandler(r, cfg.OtelServiceName)
	}
	return r
}

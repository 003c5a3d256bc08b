package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/avialu/dixit-sub000/internal/auth"
	"github.com/avialu/dixit-sub000/internal/hub"
	"github.com/avialu/dixit-sub000/internal/ws"
)

type Options struct {
	AllowedOrigins []string
	MaxCardBytes   int64
	Logger         *zap.Logger
}

func SetupRoutes(h *hub.Hub, tokens *auth.Issuer, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxCardBytes <= 0 {
		opts.MaxCardBytes = 5 << 20
	}
	a := &handlers{hub: h, tokens: tokens, maxCard: opts.MaxCardBytes, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	// Public routes
	r.Get("/healthz", a.healthz)
	r.Post("/rooms", a.createRoom)
	r.Route("/rooms/{code}", func(r chi.Router) {
		r.Get("/", a.getRoom)
		r.Post("/players", a.joinRoom)

		// Bearer token routes
		r.Post("/cards", a.uploadCard)
		r.Delete("/cards/{cardID}", a.deleteCard)
	})

	// Base64 inflates images by a third; leave headroom for the envelope.
	r.Get("/ws", ws.Handler(h, tokens, ws.Options{
		OriginPatterns: opts.AllowedOrigins,
		ReadLimit:      opts.MaxCardBytes*4/3 + 4096,
		Logger:         log,
	}))
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

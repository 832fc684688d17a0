package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/tradebook/order-ledger/ledger"
	"github.com/tradebook/order-ledger/logger"
)

// UserHeader carries the owning user id on every /api request.
const UserHeader = "X-User-ID"

type userKey struct{}

// RequestLogger attaches base to the request context, tagged with the
// chi request id, and logs start and completion.
func RequestLogger(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := base.WithContext(r.Context())
			if id := middleware.GetReqID(ctx); id != "" {
				ctx = logger.WithRequestID(ctx, id)
			}
			log := zerolog.Ctx(ctx)
			log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request.start")

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Msg("request.complete")
		})
	}
}

// RequireUser rejects requests without X-User-ID and stores the id on the
// context for handlers.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserHeader))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "Missing "+UserHeader+" header", nil)
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, ledger.UserID(id))
		ctx = logger.WithUserID(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(r *http.Request) ledger.UserID {
	id, _ := r.Context().Value(userKey{}).(ledger.UserID)
	return id
}

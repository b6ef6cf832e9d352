package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

// Заголовки с личностью пользователя; их проставляет шлюз аутентификации перед сервисом
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

type actorKey struct{}

// withActor кладёт актора в контекст запроса
func withActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext актор текущего запроса
func ActorFromContext(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(model.Actor)
	return actor, ok
}

// actorMiddleware требует заголовки актора; SYSTEM снаружи не принимается
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(strings.TrimSpace(r.Header.Get(HeaderActorID)))
		if err != nil || id == uuid.Nil {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing or invalid " + HeaderActorID, Code: "UNAUTHENTICATED"})
			return
		}

		role := model.Role(strings.ToUpper(strings.TrimSpace(r.Header.Get(HeaderActorRole))))
		if !role.Valid() || role == model.RoleSystem {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing or invalid " + HeaderActorRole, Code: "UNAUTHENTICATED"})
			return
		}

		ctx := withActor(r.Context(), model.Actor{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger пишет каждый запрос в zap
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()

			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(started)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}

			if ww.Status() >= http.StatusInternalServerError {
				logger.Warn("HTTP request", fields...)
				return
			}
			logger.Debug("HTTP request", fields...)
		})
	}
}

package middleware

import (
	"net/http"
	"strings"

	"memo-backend/pkg/common"
	pkgerrors "memo-backend/pkg/errors"

	"github.com/go-chi/chi/v5/middleware"
)

// HeaderUserID carries the caller identity set by the upstream authenticator
const HeaderUserID = "X-User-ID"

// Principal puts the caller from X-User-ID into the request context.
// Requests without one are rejected with 401; authentication itself
// happens upstream.
func Principal(errorHandler *pkgerrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
			if userID == "" {
				errorHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("missing "+HeaderUserID+" header"))
				return
			}

			ctx := common.WithUserID(r.Context(), userID)
			if reqID := middleware.GetReqID(ctx); reqID != "" {
				ctx = common.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

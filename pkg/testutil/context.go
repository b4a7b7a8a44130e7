package testutil

import (
	"context"
	"net/http"
	"time"

	"ledger/pkg/requestcontext"
)

// AsActor returns req as the auth middleware would leave it for actorID.
func AsActor(req *http.Request, actorID string) *http.Request {
	return req.WithContext(requestcontext.WithActorID(req.Context(), actorID))
}

// At pins the request time seen by services handling req.
func At(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// RequestContext builds the context a request for actorID at t would carry
// once every middleware ran. Empty values are left unset.
func RequestContext(actorID, requestID string, t time.Time) context.Context {
	ctx := context.Background()
	if actorID != "" {
		ctx = requestcontext.WithActorID(ctx, actorID)
	}
	if requestID != "" {
		ctx = requestcontext.WithRequestID(ctx, requestID)
	}
	if !t.IsZero() {
		ctx = requestcontext.WithTime(ctx, t)
	}
	return ctx
}

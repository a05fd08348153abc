package auth

import "context"

type ctxKey struct{}

// WithSubject stores the authenticated user id in ctx.
func WithSubject(ctx context.Context, subject int64) context.Context {
	return context.WithValue(ctx, ctxKey{}, subject)
}

// SubjectFromContext returns the user id set by the auth middleware.
func SubjectFromContext(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(ctxKey{}).(int64)
	return v, ok && v > 0
}

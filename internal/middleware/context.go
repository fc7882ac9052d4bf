package middleware

import "context"

type holderKey struct{}

// sessionHolder carries values set deep in the handler chain back out to
// Logger.
type sessionHolder struct {
	userID string
}

func withHolder(ctx context.Context, h *sessionHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

func holderFrom(ctx context.Context) *sessionHolder {
	h, _ := ctx.Value(holderKey{}).(*sessionHolder)
	return h
}

package obs

import "context"

// routeKey carries the matched chi pattern through the request context.
type routeKey struct{}

// WithRoutePattern attaches the matched pattern to ctx. The logger and the
// metric middlewares read it back instead of re-walking the router.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routeKey{}, pattern)
}

// RoutePatternFromContext returns the pattern stored by WithRoutePattern, or
// an empty string when the request never matched a route.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(routeKey{}).(string); ok {
		return v
	}
	return ""
}

package authstate

import "context"

type userContextKey struct{}

// WithUser attaches the user decoded from a session token to ctx. The render
// guard does this before invoking a wrapped page loader.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u.clone())
}

// UserFromContext returns the user attached by [WithUser].
func UserFromContext(ctx context.Context) (User, bool) {
	if ctx == nil {
		return User{}, false
	}
	u, ok := ctx.Value(userContextKey{}).(User)
	if !ok {
		return User{}, false
	}
	return u.clone(), true
}

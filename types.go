package authstate

import (
	"context"

	"github.com/MrEthical07/authstate/apiclient"
)

// User is the identity held in memory by a [Store].
type User struct {
	Email       string
	Permissions []string
	Roles       []string
}

func (u User) clone() User {
	return User{
		Email:       u.Email,
		Permissions: cloneStrings(u.Permissions),
		Roles:       cloneStrings(u.Roles),
	}
}

// Credentials is what a user types into the sign-in form.
type Credentials = apiclient.Credentials

// Backend is the session API the store talks to. *apiclient.Client
// implements it.
type Backend interface {
	CreateSession(ctx context.Context, creds apiclient.Credentials) (apiclient.SessionResponse, error)
	Me(ctx context.Context) (apiclient.Profile, error)
}

// Navigator moves the tab to another page.
type Navigator interface {
	Push(ctx context.Context, path string)
}

// NavigatorFunc adapts a function to [Navigator].
type NavigatorFunc func(ctx context.Context, path string)

func (f NavigatorFunc) Push(ctx context.Context, path string) { f(ctx, path) }

type noopNavigator struct{}

func (noopNavigator) Push(context.Context, string) {}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

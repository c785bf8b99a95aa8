package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nexuskit/authkeeper/internal/client/services"
	"github.com/nexuskit/authkeeper/internal/common"
	"github.com/nexuskit/authkeeper/internal/shared"
)

// Me fetches a fresh profile from the server and prints it. Unlike whoami,
// this round-trips to /auth/me and exercises the token refresh path.
func (a *App) Me(ctx context.Context) error {
	user, err := a.api.Me(ctx)
	switch {
	case err == nil:
		printSnapshot(user)
	case errors.Is(err, common.ErrUnauthenticated):
		printlnFn("Not logged in.")
	case errors.Is(err, common.ErrNetworkTimeout):
		printlnFn("Server unreachable, try again later.")
	default:
		printlnFn(fmt.Sprintf("Request failed: %s", err.Error()))
	}
	return nil
}

// WhoAmI prints the locally cached profile without a network round trip.
func (a *App) WhoAmI() error {
	user := a.coordinator.CurrentUser()
	if user == nil {
		printlnFn("Not logged in.")
		return nil
	}
	printSnapshot(user)
	return nil
}

// Can checks a single permission against the cached profile.
func (a *App) Can(permission string) error {
	if a.coordinator.CurrentUser() == nil {
		printlnFn("Not logged in.")
		return nil
	}
	if a.coordinator.HasPermission(permission) {
		printlnFn(fmt.Sprintf("Yes, you have %s", permission))
	} else {
		printlnFn(fmt.Sprintf("No, you do not have %s", permission))
	}
	return nil
}

// Continue dismisses a pending idle warning. Outside the warning window it
// just reports the session state.
func (a *App) Continue() error {
	switch a.coordinator.State() {
	case services.StateIdleWarning:
		a.coordinator.Activity()
		printlnFn("Session resumed.")
	case services.StateAuthenticated:
		printlnFn("Session is active.")
	default:
		printlnFn("Not logged in.")
	}
	return nil
}

// Status prints the coordinator state and, if present, the current user.
func (a *App) Status() error {
	printlnFn(fmt.Sprintf("State: %s", a.coordinator.State()))
	if user := a.coordinator.CurrentUser(); user != nil {
		printlnFn(fmt.Sprintf("User: %s", user.Username))
	}
	return nil
}

func printSnapshot(user *shared.UserSnapshot) {
	printlnFn(fmt.Sprintf("Username: %s", user.Username))
	printlnFn(fmt.Sprintf("Email: %s", user.Email))
	if user.FullName != "" {
		printlnFn(fmt.Sprintf("Full name: %s", user.FullName))
	}
	printlnFn(fmt.Sprintf("Active: %t", user.IsActive))
	printlnFn(fmt.Sprintf("Superuser: %t", user.IsSuperuser))
	printlnFn(fmt.Sprintf("Roles: %s", strings.Join(user.Roles, ", ")))
	printlnFn(fmt.Sprintf("Permissions: %s", strings.Join(user.Permissions, ", ")))
	if user.LastLogin != nil {
		printlnFn(fmt.Sprintf("Last login: %s", user.LastLogin.Format("2006-01-02 15:04:05")))
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/nexuskit/authkeeper/internal/common"
	"github.com/nexuskit/authkeeper/internal/shared"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts the user for credentials and tries to authenticate.
//
// The outcome is printed rather than returned: invalid credentials, rate
// limiting and an unreachable server each get their own message. The
// password byte slice is securely wiped before returning. Only prompt I/O
// errors propagate to the caller.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(a.reader, os.Stdout)
	if err != nil {
		return err
	}
	defer shared.WipeByteArray(password)

	err = a.coordinator.Login(ctx, userName, string(password))
	switch {
	case err == nil:
		if user := a.coordinator.CurrentUser(); user != nil {
			printlnFn(fmt.Sprintf("Logged in as %s", user.Username))
		}
	case errors.Is(err, common.ErrInvalidCredentials):
		printlnFn("Invalid username or password.")
	case errors.Is(err, common.ErrRateLimited):
		printlnFn(fmt.Sprintf("Login failed: %s.", err.Error()))
	case errors.Is(err, common.ErrNetworkTimeout):
		printlnFn("Server unreachable, try again later.")
	default:
		printlnFn(fmt.Sprintf("Login failed: %s", err.Error()))
	}
	return nil
}

// Logout ends the session on the server and clears the local store. The
// coordinator treats server-side failures as non-fatal, so this normally
// succeeds even when offline.
func (a *App) Logout(ctx context.Context) error {
	if err := a.coordinator.Logout(ctx); err != nil {
		return err
	}
	printlnFn("Logged out.")
	return nil
}

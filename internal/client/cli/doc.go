// Package cli provides the interactive authkeeper command-line client.
//
// It wires configuration, the local session store, the HTTP API client and
// the session coordinator into an interactive REPL. Typical flow: restore a
// persisted session, then execute user commands until exit.
//
// Key features:
//   - Login / Logout against the authkeeper server
//   - whoami (cached snapshot) and me (fresh from the server)
//   - can <permission> checks against the adopted snapshot
//   - idle warning with a forced-logout countdown, dismissed by any command
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli

// Package cli provides the interactive accountkeeper command-line client.
//
// It wires configuration, the local session database and the HTTP API
// client, then runs a REPL:
//
//	Not logged in: help, register, login, verify, profile <id>, exit
//	Logged in:     help, whoami, profile [id], update, picture, verify,
//	               delete, logout, exit
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli

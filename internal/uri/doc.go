// Package uri defines the structured URI value exchanged between the main
// process and the extension host.
//
// A URI crosses the process boundary as Components, a flat wire form.
// Revive reconstructs the domain value on the receiving side. The core
// never inspects URI contents; Parse exists only for the intake surface of
// the main process, where raw deep-link strings arrive from the OS.
//
// Example Usage:
//
//	u, _ := uri.Parse("vscode://pub.ext/callback?code=42")
//	wire := u.ToComponents()
//	revived := uri.Revive(wire)
package uri

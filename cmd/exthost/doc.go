// Package main runs an extension host.
//
// The host loads an extension manifest, connects to the main process and
// registers one URI handler per extension. URIs routed to an extension are
// logged or forwarded to its webhook.
//
// Usage:
//
//	./exthost -main ws://localhost:8000/exthost -manifest extensions.yaml
//	./exthost -reconnect 2s
package main

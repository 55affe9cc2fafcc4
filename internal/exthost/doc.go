// Package exthost runs an extension host: it connects to the main process,
// installs the URI handlers named by a manifest and serves inbound
// dispatches until shut down.
//
// Connection lifecycle:
//  1. Dial the main process through a circuit breaker
//  2. Register every manifest extension with a fresh urls.Registry
//  3. Serve handleExternalUri requests
//  4. On shutdown, dispose registrations (sending unregister notifications),
//     wait for in-flight handlers, then close the connection
//
// Run repeats the cycle after a connection loss when a reconnect delay is set.
package exthost

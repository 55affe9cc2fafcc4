// Package rpc carries the URI handler protocol between the extension host
// and the main process over a WebSocket.
//
// Every frame is one JSON envelope. Notifications are one-way; requests are
// answered by a response with the same id.
//
//	ext host → main   notify   registerUriHandler   {handle, extensionId}
//	ext host → main   notify   unregisterUriHandler {handle}
//	main → ext host   request  handleExternalUri    {handle, uri}
//	ext host → main   response (empty acknowledgement)
//
// A Conn has exactly one writer goroutine fed by an unbounded queue, so
// outbound frames leave in the order they were sent and Notify never blocks.
// Inbound frames are handled on the reader goroutine in arrival order.
package rpc

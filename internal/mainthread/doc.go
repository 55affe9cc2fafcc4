// Package mainthread is the privileged side of the URI handler protocol.
//
// It learns handle → extension mappings from the notifications each
// connected extension host sends, and routes an externally opened URI to the
// extension named by the URI authority (scheme://<extension-id>/path),
// comparing identities case-insensitively.
package mainthread

package logging

import "go.uber.org/zap"

// Field keys shared by both processes.
const (
	KeyExtensionID = "extension_id"
	KeyHandle      = "handle"
	KeyDispatchID  = "dispatch_id"
	KeyConnID      = "conn_id"
)

func ExtensionID(v string) zap.Field { return zap.String(KeyExtensionID, v) }

func Handle(v int) zap.Field { return zap.Int(KeyHandle, v) }

func DispatchID(v string) zap.Field { return zap.String(KeyDispatchID, v) }

func ConnID(v string) zap.Field { return zap.String(KeyConnID, v) }

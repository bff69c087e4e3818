package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"
	FieldOrigin    = "origin"

	// Connection and actor
	FieldConnectionID = "connection_id"
	FieldParticipant  = "participant"
	FieldRole         = "role"

	// Session
	FieldPollID  = "poll_id"
	FieldEvent   = "event"
	FieldCommand = "command"
	FieldTrigger = "trigger"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)

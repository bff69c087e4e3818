package audit

import (
	"context"

	"github.com/weiawesome/live-poll/pkg/log"
)

// Audit actions for the poll session.
const (
	ActionJoin       = "session.join"
	ActionLeave      = "session.leave"
	ActionKick       = "session.kick"
	ActionPollCreate = "poll.create"
	ActionPollEnd    = "poll.end"
	ActionChatClear  = "chat.clear"
	ActionForbidden  = "session.forbidden"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, connectionID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldConnectionID, connectionID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, connectionID string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldConnectionID, connectionID).
		Str(FieldDetail, detail).
		Msg(msg)
}

package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"presente/pkg/requestcontext"
)

// Emitter enriches events with request-scoped metadata before publishing.
// Services call Emit and move on: audit failures are logged, never returned,
// so a broken sink cannot fail a roll call.
type Emitter struct {
	logger    *slog.Logger
	publisher Publisher
}

func NewEmitter(logger *slog.Logger, publisher Publisher) *Emitter {
	return &Emitter{logger: logger, publisher: publisher}
}

func (e *Emitter) Emit(ctx context.Context, event Event) {
	if e == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	if event.ActorID == "" {
		if userID := requestcontext.UserID(ctx); userID != uuid.Nil {
			event.ActorID = userID.String()
		}
	}
	if event.Role == "" {
		event.Role = string(requestcontext.Role(ctx))
	}
	event.RequestID = requestcontext.RequestID(ctx)
	event.ClientIP = requestcontext.ClientIP(ctx)
	event.ClientPlatform = PlatformFromUserAgent(requestcontext.UserAgent(ctx))

	if e.logger != nil {
		e.logger.InfoContext(ctx, event.Action,
			"log_type", "audit",
			"actor_id", event.ActorID,
			"group_id", event.GroupID,
			"session_id", event.SessionID,
			"request_id", event.RequestID,
		)
	}
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Emit(ctx, event); err != nil && e.logger != nil {
		e.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}

// PlatformFromUserAgent condenses a raw User-Agent into "browser/os" for
// audit events. Unknown agents come back as the empty string.
func PlatformFromUserAgent(rawUA string) string {
	if rawUA == "" {
		return ""
	}
	ua := useragent.New(rawUA)
	name, _ := ua.Browser()
	os := ua.OSInfo().Name
	switch {
	case name != "" && os != "":
		return name + "/" + os
	case name != "":
		return name
	default:
		return os
	}
}

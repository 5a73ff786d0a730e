package telemetry

import (
	"keel/internal/logger"
)

// LogSink routes events through the process logger. Order transitions are
// already logged by the pipeline in the canonical line format, so they go
// to debug here; everything else is a warning.
type LogSink struct{}

func (LogSink) Record(e Event) {
	e = Stamp(e)
	switch e.Kind {
	case KindOrderTransition:
		logger.Debugf("telemetry: %s client_id=%s status=%s", e.Kind, e.ClientID, e.Status)
	case KindHandleInsideQuoteError, KindHandleEventError, KindOrderUpdatedError:
		logger.Warnf("telemetry: %s advisor=%s_%s reason=%s", e.Kind, e.GroupID, e.AdvisorID, e.Reason)
		if e.Stack != "" {
			logger.Debugf("telemetry: %s stack:\n%s", e.Kind, e.Stack)
		}
	default:
		logger.Warnf("telemetry: %s venue=%s client_id=%s reason=%s", e.Kind, e.VenueID, e.ClientID, e.Reason)
	}
}

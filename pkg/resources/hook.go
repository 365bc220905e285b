package resources

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/rs/zerolog"
	otelog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
)

// otelLogBridge mirrors every zerolog record into the OTel log pipeline.
type otelLogBridge struct {
	logger otelog.Logger
}

func NewZerologHook(serviceName string) zerolog.Hook {
	return &otelLogBridge{logger: global.GetLoggerProvider().Logger(serviceName)}
}

func (h *otelLogBridge) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	fields := pendingFields(e)
	if fields == nil {
		return
	}

	var rec otelog.Record

	rec.SetTimestamp(fieldTimestamp(fields))
	rec.SetSeverity(bridgeSeverity(level))
	rec.SetSeverityText(level.String())
	rec.SetBody(otelog.StringValue(msg))

	for key, value := range fields {
		rec.AddAttributes(bridgeAttr(key, value))
	}

	h.logger.Emit(e.GetCtx(), rec)
}

// pendingFields decodes the fields accumulated on a not-yet-written event.
// zerolog exposes no structured view of a pending event, so this reads the
// event's internal JSON buffer and closes the object before decoding.
func pendingFields(e *zerolog.Event) map[string]any {
	if e == nil {
		return nil
	}

	v := reflect.ValueOf(e).Elem().FieldByName("buf")
	if !v.IsValid() || v.Kind() != reflect.Slice || v.Type().Elem().Kind() != reflect.Uint8 {
		return nil
	}

	buf := append([]byte(nil), v.Bytes()...)
	if len(buf) == 0 {
		return nil
	}

	if buf[len(buf)-1] != '}' {
		buf = append(buf, '}')
	}

	var fields map[string]any
	if json.Unmarshal(buf, &fields) != nil {
		return nil
	}

	return fields
}

func bridgeSeverity(level zerolog.Level) otelog.Severity {
	switch level {
	case zerolog.TraceLevel:
		return otelog.SeverityTrace
	case zerolog.DebugLevel:
		return otelog.SeverityDebug
	case zerolog.WarnLevel:
		return otelog.SeverityWarn
	case zerolog.ErrorLevel:
		return otelog.SeverityError
	case zerolog.FatalLevel:
		return otelog.SeverityFatal
	case zerolog.PanicLevel:
		return otelog.SeverityFatal4
	default:
		return otelog.SeverityInfo
	}
}

func bridgeAttr(key string, value any) otelog.KeyValue {
	switch x := value.(type) {
	case string:
		return otelog.String(key, x)
	case bool:
		return otelog.Bool(key, x)
	case float64: // json numbers
		if x == float64(int64(x)) {
			return otelog.Int64(key, int64(x))
		}

		return otelog.Float64(key, x)
	default:
		return otelog.String(key, fmt.Sprintf("%v", x))
	}
}

func fieldTimestamp(fields map[string]any) time.Time {
	s, ok := fields["time"].(string)
	if !ok {
		return time.Now()
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts
		}
	}

	return time.Now()
}

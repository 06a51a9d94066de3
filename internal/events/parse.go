package events

import (
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"rlmtrace/internal/jsonx"
)

// DefaultDesignator is assumed when a record carries no event line.
const DefaultDesignator = "message"

// Record is one complete framed wire record: the event designator plus the
// raw payload text from its data line.
type Record struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// Decode maps a record to a typed Event. The second return is false when the
// record is not a recognized event: unknown designator, missing payload, or
// a payload that cannot be read as a JSON object. Decode never fails the
// stream; malformed records are simply not events.
func Decode(rec Record) (Event, bool) {
	payload, ok := objectPayload(rec.Data)
	if !ok {
		return nil, false
	}

	designator := strings.TrimSpace(rec.Event)
	if designator == "" {
		designator = DefaultDesignator
	}
	if designator == DefaultDesignator {
		// Producers that omit the event line tag the variant inside the
		// payload instead.
		var tagged struct {
			Type string `json:"type"`
		}
		if err := jsonx.Unmarshal(payload, &tagged); err != nil {
			return nil, false
		}
		designator = strings.TrimSpace(tagged.Type)
	}

	switch Type(designator) {
	case TypeExecutionStart:
		return decodeAs(payload, &ExecutionStart{})
	case TypeExecutionComplete:
		return decodeAs(payload, &ExecutionComplete{})
	case TypeIterationStart:
		return decodeAs(payload, &IterationStart{})
	case TypeIterationComplete:
		return decodeAs(payload, &IterationComplete{})
	case TypeCodeExtracted:
		return decodeAs(payload, &CodeExtracted{})
	case TypeReplExecuting:
		return decodeAs(payload, &ReplExecuting{})
	case TypeReplResult:
		return decodeAs(payload, &ReplResult{})
	case TypeFinalDetected:
		return decodeAs(payload, &FinalDetected{})
	case TypeError:
		return decodeAs(payload, &Error{})
	default:
		return nil, false
	}
}

func decodeAs[T Event](payload []byte, v T) (Event, bool) {
	if err := jsonx.Unmarshal(payload, v); err != nil {
		return nil, false
	}
	return v, true
}

// objectPayload returns the payload bytes when data holds a JSON object,
// attempting one repair pass for almost-valid JSON before giving up.
func objectPayload(data string) ([]byte, bool) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, false
	}
	if isObject(data) && jsonx.Valid([]byte(data)) {
		return []byte(data), true
	}

	repaired, err := jsonrepair.JSONRepair(data)
	if err != nil {
		return nil, false
	}
	repaired = strings.TrimSpace(repaired)
	if !isObject(repaired) || !jsonx.Valid([]byte(repaired)) {
		return nil, false
	}
	return []byte(repaired), true
}

func isObject(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}

package events

// EventType classifies events for transport-specific encoding.
type EventType int

const (
	EvOutput        EventType = iota // Command output text for a player
	EvDispatchError                  // Structured dispatch error report
	EvConnect                        // Player connected
	EvDisconnect                     // Player disconnected
	EvRoutineError                   // Scheduled routine callback failed
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EvOutput:
		return "output"
	case EvDispatchError:
		return "dispatch_error"
	case EvConnect:
		return "connect"
	case EvDisconnect:
		return "disconnect"
	case EvRoutineError:
		return "routine_error"
	default:
		return "unknown"
	}
}

// Nobody is the player id used for events with no recipient; such events
// reach global subscribers only.
const Nobody int32 = -1

// Event is a structured event that flows through the bus. Transports decide
// how to encode each event: the websocket console uses Text, the audit and
// metrics subscribers read the structured fields.
type Event struct {
	Type    EventType
	Player  int32          // Recipient (Nobody for broadcast)
	Source  int32          // Who generated the event
	Command string         // Command name, when dispatch-related
	Text    string         // Pre-formatted text
	Code    int            // Dispatch error code (EvDispatchError)
	Data    map[string]any // Structured data for JSON clients
}

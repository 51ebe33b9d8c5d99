package telemetry

// DefaultKeys are the field names that mark an update as telemetry.
var DefaultKeys = []string{"CurrentSpeed", "Occupied"}

// Kind is the routing decision for an inbound update.
type Kind string

const (
	KindTelemetry Kind = "telemetry"
	KindControls  Kind = "controls"
)

// Classifier routes inbound updates: anything carrying a recognized
// telemetry key goes to the relay, everything else is a control merge.
type Classifier struct {
	keys map[string]struct{}
}

func NewClassifier(keys []string) *Classifier {
	if len(keys) == 0 {
		keys = DefaultKeys
	}
	c := &Classifier{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		c.keys[k] = struct{}{}
	}
	return c
}

func (c *Classifier) Classify(update map[string]any) Kind {
	for k := range update {
		if _, ok := c.keys[k]; ok {
			return KindTelemetry
		}
	}
	return KindControls
}

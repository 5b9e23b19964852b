package dto

import "github.com/your-org/yaic/internal/classify"

// Classification is the output payload published per processed message.
// Field order and names are a contract: downstream dashboards template
// against value_json paths in this exact shape.
type Classification struct {
	Label      string                 `json:"label"`
	Confidence float64                `json:"confidence"`
	Person     classify.PersonSummary `json:"person"`
	Source     string                 `json:"source"`
	Device     string                 `json:"device,omitempty"`
}

// Event is the derived event published alongside each classification.
type Event struct {
	EventType   string                  `json:"event_type"`
	Source      string                  `json:"source"`
	Label       string                  `json:"label"`
	Confidence  float64                 `json:"confidence"`
	PersonCount int                     `json:"person_count"`
	People      []classify.PersonDetail `json:"people"`
	Timestamp   string                  `json:"timestamp"`
}

// OperationStatus is the transient processing-phase indicator, distinct
// from availability.
type OperationStatus struct {
	Source    string `json:"source"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Operation status values.
const (
	OpProcessing = "processing"
	OpIdle       = "idle"
	OpError      = "error"
)

// WSEvent is a WebSocket message for the live event feed.
type WSEvent struct {
	Type   string `json:"type"`
	Source string `json:"source"`
	Data   Event  `json:"data"`
}

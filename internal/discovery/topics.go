package discovery

import "strings"

// Fixed topic shapes. The image and event topics are not configurable;
// consumers and the discovery descriptors below rely on them verbatim.
const (
	Prefix = "homeassistant"

	inputSegments   = 4
	operationSuffix = "operation"
)

// OutputTopic derives the classification output topic for a source.
func OutputTopic(outPrefix, sourceID string) string {
	return strings.TrimRight(outPrefix, "/") + "/" + sourceID + "/classification"
}

// StatusTopic derives the availability topic for a source.
func StatusTopic(statusPrefix, sourceID string) string {
	return strings.TrimRight(statusPrefix, "/") + "/" + sourceID
}

// OperationTopic is the availability topic with /operation appended.
func OperationTopic(statusPrefix, sourceID string) string {
	return StatusTopic(statusPrefix, sourceID) + "/" + operationSuffix
}

// ImageTopic holds the last processed image for a source, retained.
func ImageTopic(sourceID string) string {
	return "yaic/image/" + sourceID + "/last"
}

// EventTopic carries derived classification events for a source.
func EventTopic(sourceID string) string {
	return "yaic/event/" + sourceID
}

// ParseInputTopic extracts the source id from an inbound classification
// topic. Only the exact four-segment shape yaic/input/{id}/image is
// accepted, with a non-empty, non-wildcard id.
func ParseInputTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != inputSegments {
		return "", false
	}
	if parts[0] != "yaic" || parts[1] != "input" || parts[3] != "image" {
		return "", false
	}
	sourceID := strings.TrimSpace(parts[2])
	if sourceID == "" || sourceID == "+" {
		return "", false
	}
	return sourceID, true
}

// ParseStatusTopic extracts the source id from a topic under the
// configured status prefix. Any non-empty, non-wildcard first trailing
// segment counts: a liveness signal on the status subtree is enough to
// register a source.
func ParseStatusTopic(statusPrefix, topic string) (string, bool) {
	base := strings.TrimRight(statusPrefix, "/")
	if !strings.HasPrefix(topic, base+"/") {
		return "", false
	}
	remainder := topic[len(base)+1:]
	sourceID := strings.TrimSpace(strings.SplitN(remainder, "/", 2)[0])
	if sourceID == "" || sourceID == "+" {
		return "", false
	}
	return sourceID, true
}

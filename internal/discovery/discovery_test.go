package discovery

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicDerivation(t *testing.T) {
	assert.Equal(t, "yaic/output/front/classification", OutputTopic("yaic/output", "front"))
	assert.Equal(t, "yaic/output/front/classification", OutputTopic("yaic/output/", "front"))
	assert.Equal(t, "yaic/status/front", StatusTopic("yaic/status", "front"))
	assert.Equal(t, "yaic/status/front/operation", OperationTopic("yaic/status", "front"))
	assert.Equal(t, "yaic/image/front/last", ImageTopic("front"))
	assert.Equal(t, "yaic/event/front", EventTopic("front"))
}

func TestParseInputTopic(t *testing.T) {
	cases := []struct {
		topic  string
		source string
		ok     bool
	}{
		{"yaic/input/front/image", "front", true},
		{"yaic/input/back door/image", "back door", true},
		{"yaic/input/front/frame", "", false},
		{"yaic/input/front/image/extra", "", false},
		{"yaic/input/image", "", false},
		{"yaic/input//image", "", false},
		{"yaic/input/ /image", "", false},
		{"yaic/input/+/image", "", false},
		{"other/input/front/image", "", false},
	}

	for _, tc := range cases {
		source, ok := ParseInputTopic(tc.topic)
		assert.Equal(t, tc.ok, ok, tc.topic)
		assert.Equal(t, tc.source, source, tc.topic)
	}
}

func TestParseStatusTopic(t *testing.T) {
	source, ok := ParseStatusTopic("yaic/status", "yaic/status/garage")
	assert.True(t, ok)
	assert.Equal(t, "garage", source)

	source, ok = ParseStatusTopic("yaic/status/", "yaic/status/garage/operation")
	assert.True(t, ok)
	assert.Equal(t, "garage", source)

	_, ok = ParseStatusTopic("yaic/status", "yaic/other/garage")
	assert.False(t, ok)

	_, ok = ParseStatusTopic("yaic/status", "yaic/status/+")
	assert.False(t, ok)

	_, ok = ParseStatusTopic("yaic/status", "yaic/status/")
	assert.False(t, ok)
}

func TestMessagesTopicsAndRetention(t *testing.T) {
	messages := Messages("yaic/output", "yaic/status", "0.3.0", "front")
	require.Len(t, messages, 10)

	wantTopics := []string{
		"homeassistant/sensor/yaic_front_classification/config",
		"homeassistant/sensor/yaic_front_confidence/config",
		"homeassistant/sensor/yaic_front_people_count/config",
		"homeassistant/sensor/yaic_front_people_description/config",
		"homeassistant/sensor/yaic_front_people_age/config",
		"homeassistant/sensor/yaic_front_people_gender/config",
		"homeassistant/sensor/yaic_front_people_roles/config",
		"homeassistant/binary_sensor/yaic_front_person_detect/config",
		"homeassistant/camera/yaic_front_last/config",
		"homeassistant/event/yaic_front_event/config",
	}
	for i, m := range messages {
		assert.Equal(t, wantTopics[i], m.Topic)
		assert.True(t, m.Retain, m.Topic)
		assert.Equal(t, byte(1), m.QoS, m.Topic)
	}
}

func TestMessagesEntityContent(t *testing.T) {
	messages := Messages("yaic/output", "yaic/status", "0.3.0", "front")

	var classification map[string]any
	require.NoError(t, json.Unmarshal(messages[0].Payload, &classification))
	assert.Equal(t, "yaic_front_class_sensor", classification["uniq_id"])
	assert.Equal(t, "yaic/output/front/classification", classification["state_topic"])
	assert.Equal(t, "yaic/output/front/classification", classification["json_attributes_topic"])
	assert.Equal(t, "{{ value_json.label }}", classification["value_template"])
	assert.Equal(t, "yaic/status/front", classification["availability_topic"])
	assert.Equal(t, "online", classification["payload_available"])
	assert.Equal(t, "offline", classification["payload_not_available"])

	device, ok := classification["device"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"yaic_front"}, device["identifiers"])
	assert.Equal(t, "YAIC front", device["name"])
	assert.Equal(t, "0.3.0", device["sw_version"])

	var confidence map[string]any
	require.NoError(t, json.Unmarshal(messages[1].Payload, &confidence))
	assert.Equal(t, "%", confidence["unit_of_measurement"])
	assert.Equal(t, "{{ (value_json.confidence * 100) | round(1) }}", confidence["value_template"])

	var description map[string]any
	require.NoError(t, json.Unmarshal(messages[3].Payload, &description))
	assert.Equal(t, "{{ value_json.person.description | default('no data') }}", description["value_template"])

	var camera map[string]any
	require.NoError(t, json.Unmarshal(messages[8].Payload, &camera))
	assert.Equal(t, "yaic/image/front/last", camera["topic"])
	assert.NotContains(t, camera, "state_topic")

	var event map[string]any
	require.NoError(t, json.Unmarshal(messages[9].Payload, &event))
	assert.Equal(t, "yaic/event/front", event["state_topic"])
}

func TestMessagesDeterministic(t *testing.T) {
	first := Messages("yaic/output", "yaic/status", "0.3.0", "front")
	second := Messages("yaic/output", "yaic/status", "0.3.0", "front")

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Topic, second[i].Topic)
		assert.Equal(t, first[i].Payload, second[i].Payload)
	}
}

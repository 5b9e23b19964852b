// Package discovery derives every outbound topic name from configuration
// plus a source id, and builds the autodiscovery descriptors a
// home-automation hub needs to auto-configure entities for a source.
// Topic and field-path shapes are a contract with consuming dashboards.
package discovery

import "encoding/json"

// Message is one autodiscovery descriptor ready for publication. All
// descriptors are retained at QoS 1 so a hub restarting later still
// configures the entities.
type Message struct {
	Topic   string
	Payload []byte
	Retain  bool
	QoS     byte
}

// Device is the device registry block shared by every entity of a source.
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version"`
}

// entityConfig covers all entity kinds published here; optional fields
// are omitted per entity.
type entityConfig struct {
	Name                string `json:"name"`
	UniqueID            string `json:"uniq_id"`
	StateTopic          string `json:"state_topic,omitempty"`
	Topic               string `json:"topic,omitempty"`
	ValueTemplate       string `json:"value_template,omitempty"`
	JSONAttributesTopic string `json:"json_attributes_topic,omitempty"`
	UnitOfMeasurement   string `json:"unit_of_measurement,omitempty"`
	Icon                string `json:"icon,omitempty"`
	AvailabilityTopic   string `json:"availability_topic"`
	PayloadAvailable    string `json:"payload_available"`
	PayloadNotAvailable string `json:"payload_not_available"`
	Device              Device `json:"device"`
}

// DeviceBlock builds the shared device registry block for a source.
func DeviceBlock(version, sourceID string) Device {
	return Device{
		Identifiers:  []string{"yaic_" + sourceID},
		Name:         "YAIC " + sourceID,
		Manufacturer: "YAIC",
		Model:        "MQTT Vision Classifier",
		SWVersion:    version,
	}
}

// Messages builds the full descriptor set for a source: seven sensors, a
// binary sensor, a camera and an event entity. A pure function of its
// arguments; identical inputs yield byte-identical payloads.
func Messages(outPrefix, statusPrefix, version, sourceID string) []Message {
	device := DeviceBlock(version, sourceID)
	stateTopic := OutputTopic(outPrefix, sourceID)
	availabilityTopic := StatusTopic(statusPrefix, sourceID)
	id := "yaic_" + sourceID

	entity := func(name, uniqueID string) entityConfig {
		return entityConfig{
			Name:                name,
			UniqueID:            uniqueID,
			StateTopic:          stateTopic,
			AvailabilityTopic:   availabilityTopic,
			PayloadAvailable:    "online",
			PayloadNotAvailable: "offline",
			Device:              device,
		}
	}

	classification := entity("YAIC "+sourceID+" Classification", id+"_class_sensor")
	classification.ValueTemplate = "{{ value_json.label }}"
	classification.JSONAttributesTopic = stateTopic
	classification.Icon = "mdi:image-search"

	confidence := entity("YAIC "+sourceID+" Confidence", id+"_confidence")
	confidence.UnitOfMeasurement = "%"
	confidence.ValueTemplate = "{{ (value_json.confidence * 100) | round(1) }}"
	confidence.Icon = "mdi:percent"

	peopleCount := entity("YAIC "+sourceID+" People Count", id+"_people_count")
	peopleCount.ValueTemplate = "{{ value_json.person.count | default(0) }}"
	peopleCount.Icon = "mdi:account-multiple"

	peopleDescription := entity("YAIC "+sourceID+" People Description", id+"_people_description")
	peopleDescription.ValueTemplate = "{{ value_json.person.description | default('no data') }}"
	peopleDescription.Icon = "mdi:text"

	peopleAge := entity("YAIC "+sourceID+" People Age Groups", id+"_people_age")
	peopleAge.ValueTemplate = "{{ value_json.person.age_summary | default('unknown') }}"
	peopleAge.Icon = "mdi:calendar-clock"

	peopleGender := entity("YAIC "+sourceID+" People Gender", id+"_people_gender")
	peopleGender.ValueTemplate = "{{ value_json.person.gender_summary | default('unknown') }}"
	peopleGender.Icon = "mdi:account-group"

	peopleRoles := entity("YAIC "+sourceID+" People Roles", id+"_people_roles")
	peopleRoles.ValueTemplate = "{{ value_json.person.role_summary | default('unknown') }}"
	peopleRoles.Icon = "mdi:briefcase-account"

	personDetect := entity("YAIC "+sourceID+" Person Detected", id+"_person_detect")
	personDetect.ValueTemplate = "{% if value_json.person.count | default(0) | int > 0 %}\n" +
		"  on\n" +
		"{% else %}\n" +
		"  off\n" +
		"{% endif %}"
	personDetect.Icon = "mdi:account"

	camera := entity("YAIC "+sourceID+" Last Image", id+"_last")
	camera.StateTopic = ""
	camera.Topic = ImageTopic(sourceID)

	event := entity("YAIC "+sourceID+" Event", id+"_event")
	event.StateTopic = EventTopic(sourceID)

	return []Message{
		message(Prefix+"/sensor/"+id+"_classification/config", classification),
		message(Prefix+"/sensor/"+id+"_confidence/config", confidence),
		message(Prefix+"/sensor/"+id+"_people_count/config", peopleCount),
		message(Prefix+"/sensor/"+id+"_people_description/config", peopleDescription),
		message(Prefix+"/sensor/"+id+"_people_age/config", peopleAge),
		message(Prefix+"/sensor/"+id+"_people_gender/config", peopleGender),
		message(Prefix+"/sensor/"+id+"_people_roles/config", peopleRoles),
		message(Prefix+"/binary_sensor/"+id+"_person_detect/config", personDetect),
		message(Prefix+"/camera/"+id+"_last/config", camera),
		message(Prefix+"/event/"+id+"_event/config", event),
	}
}

func message(topic string, cfg entityConfig) Message {
	// entityConfig holds only strings; marshaling cannot fail.
	payload, _ := json.Marshal(cfg)
	return Message{Topic: topic, Payload: payload, Retain: true, QoS: 1}
}

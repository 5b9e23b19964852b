package classify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Unknown is the sentinel used for any free-text field the classifier
// could not fill in.
const Unknown = "unknown"

// PersonDetail describes one detected individual.
type PersonDetail struct {
	AgeGroup   string `json:"age_group"`
	Gender     string `json:"gender"`
	Appearance string `json:"appearance"`
	Role       string `json:"role"`
}

// PersonSummary aggregates analytics over zero or more detected people.
// When Count > 0, Details always holds exactly Count entries.
type PersonSummary struct {
	Count         int
	Description   string
	Details       []PersonDetail
	AgeSummary    string
	GenderSummary string
	RoleSummary   string
}

// MarshalJSON emits the external form: a bare {"count":0} when nobody was
// detected, the full analytics block otherwise. Consumers template against
// these exact field paths.
func (s PersonSummary) MarshalJSON() ([]byte, error) {
	if s.Count <= 0 {
		return []byte(`{"count":0}`), nil
	}

	details := s.Details
	if details == nil {
		details = []PersonDetail{}
	}

	out := struct {
		Count         int            `json:"count"`
		Description   string         `json:"description"`
		Details       []PersonDetail `json:"details"`
		AgeSummary    string         `json:"age_summary"`
		GenderSummary string         `json:"gender_summary"`
		RoleSummary   string         `json:"role_summary"`
	}{
		Count:         s.Count,
		Description:   orUnknown(s.Description),
		Details:       details,
		AgeSummary:    orUnknown(s.AgeSummary),
		GenderSummary: orUnknown(s.GenderSummary),
		RoleSummary:   orUnknown(s.RoleSummary),
	}
	return json.Marshal(out)
}

// ClassificationResult is the normalized outcome of one classification
// call sequence.
type ClassificationResult struct {
	Label      string        `json:"label"`
	Confidence float64       `json:"confidence"`
	Person     PersonSummary `json:"person"`
}

// parseResult normalizes the untyped JSON object returned by the classifier
// into a ClassificationResult. A fallback, when given, fills in fields the
// new answer left blank and wins outright if the new answer reports no
// people (an enrichment pass must never regress a known person count).
func parseResult(data map[string]any, fallback *ClassificationResult) ClassificationResult {
	label := coerceString(data["label"])
	if label == "" {
		if fallback != nil {
			label = fallback.Label
		} else {
			label = Unknown
		}
	}

	confidence, ok := coerceFloat(data["confidence"])
	if !ok {
		if fallback != nil {
			confidence = fallback.Confidence
		} else {
			confidence = 0.0
		}
	}

	person := normalizePerson(data["person"], label)
	if fallback != nil && person.Count <= 0 {
		person = fallback.Person
	}

	return ClassificationResult{Label: label, Confidence: confidence, Person: person}
}

// normalizePerson applies the defaulting rules for the person analytics
// block. A top-level label of "person" implies at least one detected person
// even when the analytics block is missing or incomplete.
func normalizePerson(raw any, label string) PersonSummary {
	var (
		count                                  int
		description                            string
		details                                []PersonDetail
		ageSummary, genderSummary, roleSummary string
	)

	if obj, ok := raw.(map[string]any); ok {
		count, _ = coerceInt(obj["count"])
		description = coerceString(obj["description"])
		details = parseDetails(obj["details"])
		ageSummary = coerceString(obj["age_summary"])
		genderSummary = coerceString(obj["gender_summary"])
		roleSummary = coerceString(obj["role_summary"])
	}

	if count <= 0 && label == "person" {
		count = 1
	}

	if count <= 0 {
		return PersonSummary{Count: 0}
	}

	if len(details) == 0 {
		details = make([]PersonDetail, count)
		for i := range details {
			details[i] = PersonDetail{Unknown, Unknown, Unknown, Unknown}
		}
	}

	if ageSummary == "" {
		ageSummary = summarizeField(details, func(d PersonDetail) string { return d.AgeGroup })
	}
	if genderSummary == "" {
		genderSummary = summarizeField(details, func(d PersonDetail) string { return d.Gender })
	}
	if roleSummary == "" {
		roleSummary = summarizeRoles(details)
	}

	return PersonSummary{
		Count:         count,
		Description:   orUnknown(description),
		Details:       details,
		AgeSummary:    ageSummary,
		GenderSummary: genderSummary,
		RoleSummary:   roleSummary,
	}
}

func parseDetails(raw any) []PersonDetail {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	var details []PersonDetail
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		details = append(details, PersonDetail{
			AgeGroup:   orUnknown(coerceString(obj["age_group"])),
			Gender:     orUnknown(coerceString(obj["gender"])),
			Appearance: orUnknown(coerceString(obj["appearance"])),
			Role:       orUnknown(coerceString(obj["role"])),
		})
	}
	return details
}

// summarizeField builds a human-readable aggregation such as
// "2 adults, 1 child" from per-person values, preserving first-seen order.
func summarizeField(details []PersonDetail, field func(PersonDetail) string) string {
	var order []string
	counts := make(map[string]int)
	for _, d := range details {
		v := field(d)
		if v == Unknown {
			continue
		}
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}
	if len(order) == 0 {
		return Unknown
	}

	parts := make([]string, 0, len(order))
	for _, v := range order {
		n := counts[v]
		label := strings.ReplaceAll(v, "_", " ")
		if n != 1 {
			label += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, label))
	}
	return strings.Join(parts, ", ")
}

func summarizeRoles(details []PersonDetail) string {
	var roles []string
	seen := make(map[string]bool)
	for _, d := range details {
		if !seen[d.Role] {
			seen[d.Role] = true
			roles = append(roles, d.Role)
		}
	}
	if len(roles) == 0 {
		return Unknown
	}
	return strings.Join(roles, ", ")
}

// hasPersonDetails reports whether the raw classifier answer carries any
// person-detail signal at all; its absence for a "person" label triggers
// the enrichment call.
func hasPersonDetails(data map[string]any) bool {
	person, ok := data["person"].(map[string]any)
	if !ok {
		return false
	}
	if items, ok := person["details"].([]any); ok && len(items) > 0 {
		return true
	}
	for _, key := range []string{"description", "age_summary", "gender_summary", "role_summary"} {
		if coerceString(person[key]) != "" {
			return true
		}
	}
	return false
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}

func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func coerceFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	default:
		return 0, false
	}
}

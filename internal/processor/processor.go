package processor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/your-org/yaic/internal/classify"
	"github.com/your-org/yaic/pkg/dto"
)

// Classifier runs the remote classification protocol on one image.
type Classifier interface {
	ClassifyImage(ctx context.Context, image []byte) (classify.ClassificationResult, error)
}

// Processor decodes inbound message payloads and shapes the output
// classification payload for one source.
type Processor struct {
	classifier Classifier
}

func New(classifier Classifier) *Processor {
	return &Processor{classifier: classifier}
}

// Result is the per-message processing outcome. It is built fresh per
// inbound message and not retained.
type Result struct {
	Payload    dto.Classification
	ImageBytes []byte
	People     []classify.PersonDetail
}

// ProcessMessage decodes the payload (raw image bytes, or a JSON envelope
// carrying base64 image plus optional device tag), classifies the image
// and assembles the output payload.
func (p *Processor) ProcessMessage(ctx context.Context, payload []byte, sourceID string) (*Result, error) {
	image, device, err := extractImage(payload)
	if err != nil {
		return nil, err
	}

	result, err := p.classifier.ClassifyImage(ctx, image)
	if err != nil {
		return nil, err
	}

	return &Result{
		Payload: dto.Classification{
			Label:      result.Label,
			Confidence: result.Confidence,
			Person:     result.Person,
			Source:     sourceID,
			Device:     device,
		},
		ImageBytes: image,
		People:     result.Person.Details,
	}, nil
}

// extractImage interprets the payload. Anything that does not parse as
// JSON is treated as an opaque image blob; valid JSON must be an object
// with a base64 image_b64 field.
func extractImage(payload []byte) (image []byte, device string, err error) {
	if len(payload) == 0 {
		return nil, "", fmt.Errorf("empty payload: %w", classify.ErrInvalidInput)
	}

	var data any
	if err := json.Unmarshal(payload, &data); err != nil {
		return payload, "", nil
	}

	obj, ok := data.(map[string]any)
	if !ok {
		return nil, "", fmt.Errorf("JSON payload must be an object: %w", classify.ErrInvalidInput)
	}

	raw, present := obj["image_b64"]
	if !present || raw == nil {
		return nil, "", fmt.Errorf("JSON payload missing image_b64: %w", classify.ErrInvalidInput)
	}
	encoded, ok := raw.(string)
	if !ok || encoded == "" {
		return nil, "", fmt.Errorf("image_b64 is not valid base64: %w", classify.ErrInvalidInput)
	}

	image, decodeErr := base64.StdEncoding.DecodeString(encoded)
	if decodeErr != nil {
		return nil, "", fmt.Errorf("image_b64 is not valid base64: %w", classify.ErrInvalidInput)
	}

	device, _ = obj["device"].(string)
	return image, device, nil
}

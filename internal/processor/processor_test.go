package processor

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/yaic/internal/classify"
)

type fakeClassifier struct {
	gotImage []byte
	result   classify.ClassificationResult
	err      error
}

func (f *fakeClassifier) ClassifyImage(_ context.Context, image []byte) (classify.ClassificationResult, error) {
	f.gotImage = image
	return f.result, f.err
}

func TestProcessMessageRawImage(t *testing.T) {
	fc := &fakeClassifier{result: classify.ClassificationResult{Label: "cat", Confidence: 0.9}}
	p := New(fc)

	raw := []byte{0xFF, 0xD8, 0x01, 0x02}
	result, err := p.ProcessMessage(context.Background(), raw, "cam1")
	require.NoError(t, err)

	assert.Equal(t, raw, fc.gotImage)
	assert.Equal(t, raw, result.ImageBytes)
	assert.Equal(t, "cat", result.Payload.Label)
	assert.Equal(t, "cam1", result.Payload.Source)
	assert.Empty(t, result.Payload.Device)
}

func TestProcessMessageJSONEnvelope(t *testing.T) {
	fc := &fakeClassifier{result: classify.ClassificationResult{Label: "dog", Confidence: 0.8}}
	p := New(fc)

	image := []byte("image-bytes")
	payload := []byte(`{"image_b64":"` + base64.StdEncoding.EncodeToString(image) + `","device":"doorbell"}`)

	result, err := p.ProcessMessage(context.Background(), payload, "front")
	require.NoError(t, err)

	assert.Equal(t, image, fc.gotImage)
	assert.Equal(t, "doorbell", result.Payload.Device)
	assert.Equal(t, "front", result.Payload.Source)
}

func TestProcessMessageEmptyPayload(t *testing.T) {
	p := New(&fakeClassifier{})

	_, err := p.ProcessMessage(context.Background(), nil, "cam1")
	assert.ErrorIs(t, err, classify.ErrInvalidInput)
}

func TestProcessMessageNonObjectJSON(t *testing.T) {
	p := New(&fakeClassifier{})

	// "5" parses as JSON but is not an envelope, so it is rejected rather
	// than treated as an image.
	_, err := p.ProcessMessage(context.Background(), []byte(`5`), "cam1")
	require.ErrorIs(t, err, classify.ErrInvalidInput)
	assert.Contains(t, err.Error(), "must be an object")
}

func TestProcessMessageMissingImageField(t *testing.T) {
	p := New(&fakeClassifier{})

	_, err := p.ProcessMessage(context.Background(), []byte(`{"device":"doorbell"}`), "cam1")
	require.ErrorIs(t, err, classify.ErrInvalidInput)
	assert.Contains(t, err.Error(), "image_b64")
}

func TestProcessMessageInvalidBase64(t *testing.T) {
	p := New(&fakeClassifier{})

	_, err := p.ProcessMessage(context.Background(), []byte(`{"image_b64":"not!!base64"}`), "cam1")
	require.ErrorIs(t, err, classify.ErrInvalidInput)
	assert.Contains(t, err.Error(), "not valid base64")
}

func TestProcessMessageClassifierErrorPropagates(t *testing.T) {
	wantErr := errors.New("upstream down")
	p := New(&fakeClassifier{err: wantErr})

	_, err := p.ProcessMessage(context.Background(), []byte{0xFF, 0xD8}, "cam1")
	assert.ErrorIs(t, err, wantErr)
}

func TestProcessMessageCarriesPeople(t *testing.T) {
	details := []classify.PersonDetail{{AgeGroup: "adult", Gender: "male", Appearance: "coat", Role: "visitor"}}
	fc := &fakeClassifier{result: classify.ClassificationResult{
		Label:      "person",
		Confidence: 0.95,
		Person:     classify.PersonSummary{Count: 1, Details: details},
	}}
	p := New(fc)

	result, err := p.ProcessMessage(context.Background(), []byte{0xFF, 0xD8}, "cam1")
	require.NoError(t, err)
	assert.Equal(t, details, result.People)
	assert.Equal(t, 1, result.Payload.Person.Count)
}

package ocr

import (
	"errors"
	"image"
)

var (
	// ErrNoText means the recognizer ran fine but found nothing readable.
	ErrNoText = errors.New("ocr: no text found")
	// ErrService means the OCR backend itself failed or was unreachable.
	ErrService = errors.New("ocr: service unavailable")
)

// Box is one recognized text fragment with its screen-space bounding
// rectangle and the engine's confidence score.
type Box struct {
	Text  string
	Rect  image.Rectangle
	Score float64
}

// Recognizer turns an image region into text fragments. Offset shifts the
// returned rectangles, mapping ROI-local coordinates back to full-screen
// coordinates.
type Recognizer interface {
	RecognizeText(img image.Image, offset image.Point) ([]Box, error)
}

// Texts flattens recognized fragments into their raw strings.
func Texts(boxes []Box) []string {
	out := make([]string, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, b.Text)
	}
	return out
}

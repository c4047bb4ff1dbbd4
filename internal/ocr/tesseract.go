package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// TesseractEngine is a local fallback recognizer for setups without an OCR
// server. Input is Otsu-binarized before recognition, which the price font
// needs to be readable at all.
type TesseractEngine struct {
	allowlist string
	language  string
}

func NewTesseractEngine(allowlist, language string) *TesseractEngine {
	if language == "" {
		language = "eng"
	}
	return &TesseractEngine{allowlist: allowlist, language: language}
}

func (t *TesseractEngine) RecognizeText(img image.Image, offset image.Point) ([]Box, error) {
	prepared, err := binarize(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}
	if t.allowlist != "" {
		if err := client.SetWhitelist(t.allowlist); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrService, err)
		}
	}
	if err := client.SetImageFromBytes(prepared); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}

	words, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}

	boxes := make([]Box, 0, len(words))
	for _, w := range words {
		if w.Word == "" {
			continue
		}
		boxes = append(boxes, Box{
			Text:  w.Word,
			Rect:  w.Box.Add(offset),
			Score: w.Confidence / 100,
		})
	}
	if len(boxes) == 0 {
		return nil, ErrNoText
	}
	return boxes, nil
}

func binarize(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	src, err := gocv.IMDecode(buf.Bytes(), gocv.IMReadGrayScale)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	if src.Empty() {
		return nil, fmt.Errorf("empty capture")
	}

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(src, &bin, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)

	out, err := gocv.IMEncode(".png", bin)
	if err != nil {
		return nil, err
	}
	defer out.Close()
	encoded := make([]byte, len(out.GetBytes()))
	copy(encoded, out.GetBytes())
	return encoded, nil
}

// Upscale enlarges a capture before OCR. Factors at or below 1 return the
// input unchanged.
func Upscale(img image.Image, factor float64) image.Image {
	if factor <= 1 {
		return img
	}
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return img
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, image.Point{}, factor, factor, gocv.InterpolationCubic)

	scaled, err := dst.ToImage()
	if err != nil {
		return img
	}
	return scaled
}

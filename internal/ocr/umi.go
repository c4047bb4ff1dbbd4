package ocr

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	umiCodeOK     = 100
	umiCodeNoText = 101
)

// UmiClient talks to a local Umi-OCR HTTP server.
type UmiClient struct {
	baseURL string
	httpc   *http.Client
	options map[string]any
}

func NewUmiClient(baseURL string, timeout time.Duration, options map[string]any) *UmiClient {
	if timeout <= 0 {
		timeout = 2500 * time.Millisecond
	}
	return &UmiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		options: options,
	}
}

type umiRequest struct {
	Base64  string         `json:"base64"`
	Options map[string]any `json:"options"`
}

type umiEntry struct {
	Text  string      `json:"text"`
	Box   [][]float64 `json:"box"`
	Score float64     `json:"score"`
}

type umiResponse struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

func (c *UmiClient) RecognizeText(img image.Image, offset image.Point) ([]Box, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encoding capture: %v", ErrService, err)
	}

	opts := make(map[string]any, len(c.options)+1)
	for k, v := range c.options {
		opts[k] = v
	}
	// Positions are only returned in dict format.
	opts["data.format"] = "dict"

	body, err := json.Marshal(umiRequest{
		Base64:  base64.StdEncoding.EncodeToString(buf.Bytes()),
		Options: opts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}

	resp, err := c.httpc.Post(c.baseURL+"/api/ocr", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http status %d", ErrService, resp.StatusCode)
	}

	var parsed umiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrService, err)
	}

	switch parsed.Code {
	case umiCodeNoText:
		return nil, ErrNoText
	case umiCodeOK:
	default:
		return nil, fmt.Errorf("%w: code %d, data %s", ErrService, parsed.Code, string(parsed.Data))
	}

	var entries []umiEntry
	if err := json.Unmarshal(parsed.Data, &entries); err != nil {
		return nil, fmt.Errorf("%w: decoding entries: %v", ErrService, err)
	}

	boxes := make([]Box, 0, len(entries))
	for _, e := range entries {
		r, ok := quadToRect(e.Box)
		if !ok {
			continue
		}
		boxes = append(boxes, Box{
			Text:  e.Text,
			Rect:  r.Add(offset),
			Score: e.Score,
		})
	}
	if len(boxes) == 0 {
		return nil, ErrNoText
	}
	return boxes, nil
}

// quadToRect converts the four-point polygon Umi returns into an
// axis-aligned bounding rectangle.
func quadToRect(quad [][]float64) (image.Rectangle, bool) {
	if len(quad) == 0 {
		return image.Rectangle{}, false
	}
	minX, minY := math.MaxFloat64, math.MaxFloat64
	maxX, maxY := -math.MaxFloat64, -math.MaxFloat64
	valid := false
	for _, pt := range quad {
		if len(pt) < 2 {
			continue
		}
		valid = true
		minX = math.Min(minX, pt[0])
		minY = math.Min(minY, pt[1])
		maxX = math.Max(maxX, pt[0])
		maxY = math.Max(maxY, pt[1])
	}
	if !valid {
		return image.Rectangle{}, false
	}
	w := int(maxX - minX)
	h := int(maxY - minY)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return image.Rect(int(minX), int(minY), int(minX)+w, int(minY)+h), true
}

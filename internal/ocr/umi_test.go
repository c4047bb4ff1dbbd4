package ocr

import (
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 10, 10))
}

func umiServer(t *testing.T, code int, data any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/ocr", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req["base64"])
		opts, ok := req["options"].(map[string]any)
		require.True(t, ok)
		// Positions are only returned in dict format, the client must force it.
		assert.Equal(t, "dict", opts["data.format"])

		json.NewEncoder(w).Encode(map[string]any{"code": code, "data": data})
	}))
}

func TestUmiClientParsesEntries(t *testing.T) {
	srv := umiServer(t, 100, []map[string]any{
		{
			"text":  "3,271",
			"box":   [][]float64{{4, 2}, {60, 2}, {60, 20}, {4, 20}},
			"score": 0.97,
		},
	})
	defer srv.Close()

	c := NewUmiClient(srv.URL, time.Second, nil)
	boxes, err := c.RecognizeText(testImage(), image.Pt(100, 200))
	require.NoError(t, err)
	require.Len(t, boxes, 1)

	assert.Equal(t, "3,271", boxes[0].Text)
	// ROI-local quad offset back to screen coordinates.
	assert.Equal(t, image.Rect(104, 202, 160, 220), boxes[0].Rect)
	assert.InDelta(t, 0.97, boxes[0].Score, 1e-9)
}

func TestUmiClientNoText(t *testing.T) {
	srv := umiServer(t, 101, "")
	defer srv.Close()

	c := NewUmiClient(srv.URL, time.Second, nil)
	_, err := c.RecognizeText(testImage(), image.Point{})
	assert.ErrorIs(t, err, ErrNoText)
}

func TestUmiClientErrorCode(t *testing.T) {
	srv := umiServer(t, 902, "engine crashed")
	defer srv.Close()

	c := NewUmiClient(srv.URL, time.Second, nil)
	_, err := c.RecognizeText(testImage(), image.Point{})
	assert.ErrorIs(t, err, ErrService)
}

func TestUmiClientUnreachable(t *testing.T) {
	c := NewUmiClient("http://127.0.0.1:1", 200*time.Millisecond, nil)
	_, err := c.RecognizeText(testImage(), image.Point{})
	assert.ErrorIs(t, err, ErrService)
}

func TestUmiClientSkipsMalformedQuads(t *testing.T) {
	srv := umiServer(t, 100, []map[string]any{
		{"text": "bad", "box": [][]float64{}},
		{"text": "ok", "box": [][]float64{{0, 0}, {10, 0}, {10, 5}, {0, 5}}},
	})
	defer srv.Close()

	c := NewUmiClient(srv.URL, time.Second, nil)
	boxes, err := c.RecognizeText(testImage(), image.Point{})
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	assert.Equal(t, "ok", boxes[0].Text)
}

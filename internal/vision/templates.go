package vision

import (
	"errors"
	"fmt"
	"log/slog"

	"gocv.io/x/gocv"
)

var (
	// ErrLocateMiss means the template was searched but not found with
	// enough confidence.
	ErrLocateMiss = errors.New("vision: template not found on screen")
	// ErrTemplateMissing means the template image itself is absent or
	// unreadable, so the element can never be found.
	ErrTemplateMissing = errors.New("vision: template image missing")
)

// Spec is one named template image and its match confidence threshold.
type Spec struct {
	Path       string
	Confidence float32
}

type template struct {
	gray       gocv.Mat
	confidence float32
	loaded     bool
}

// Registry holds the grayscale template mats, loaded once at startup.
// A template whose file is missing stays registered but unloaded: lookups
// report ErrTemplateMissing instead of crashing, matching the rule that a
// bad template means "never found", not a hard error.
type Registry struct {
	templates map[string]*template
}

func NewRegistry(specs map[string]Spec, log *slog.Logger) *Registry {
	r := &Registry{templates: make(map[string]*template, len(specs))}
	for name, spec := range specs {
		t := &template{confidence: spec.Confidence}
		if t.confidence <= 0 || t.confidence > 1 {
			t.confidence = 0.85
		}
		mat := gocv.IMRead(spec.Path, gocv.IMReadGrayScale)
		if mat.Empty() {
			log.Warn("template image not readable, element will never match", "template", name, "path", spec.Path)
		} else {
			t.gray = mat
			t.loaded = true
		}
		r.templates[name] = t
	}
	return r
}

func (r *Registry) get(name string) (*template, error) {
	t, ok := r.templates[name]
	if !ok || !t.loaded {
		return nil, fmt.Errorf("%w: %s", ErrTemplateMissing, name)
	}
	return t, nil
}

// Close releases the template mats.
func (r *Registry) Close() {
	for _, t := range r.templates {
		if t.loaded {
			t.gray.Close()
			t.loaded = false
		}
	}
}

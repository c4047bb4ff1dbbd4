package market

import (
	"errors"
	"image"
)

var ErrGeometryInvalid = errors.New("geometry invalid")

// GeometryConfig carries the fixed pixel offsets used to derive OCR regions
// from a located anchor. All values come from configuration.
type GeometryConfig struct {
	NameBandHeight  int     `yaml:"name_band_height"`
	PriceBandHeight int     `yaml:"price_band_height"`
	SideMargin      int     `yaml:"side_margin"`
	VerticalMargin  int     `yaml:"vertical_margin"`
	CardWidth       int     `yaml:"card_width"`
	CardHeight      int     `yaml:"card_height"`
	DetailDistance  int     `yaml:"detail_distance"`
	DetailHeight    int     `yaml:"detail_height"`
	DetailScale     float64 `yaml:"detail_scale"`
}

func DefaultGeometryConfig() GeometryConfig {
	return GeometryConfig{
		NameBandHeight:  20,
		PriceBandHeight: 30,
		SideMargin:      30,
		VerticalMargin:  20,
		CardWidth:       165,
		CardHeight:      212,
		DetailDistance:  5,
		DetailHeight:    45,
		DetailScale:     2.5,
	}
}

// CardRegions are the OCR regions derived from one card's middle anchor.
type CardRegions struct {
	Name  image.Rectangle
	Price image.Rectangle
	Card  image.Rectangle
}

type Geometry struct {
	cfg GeometryConfig
}

func NewGeometry(cfg GeometryConfig) Geometry {
	return Geometry{cfg: cfg}
}

// CardRegions derives the name band above the anchor, the price band below
// it and the overall card box. Pure function of the anchor and the
// configured constants.
func (g Geometry) CardRegions(anchor image.Rectangle) (CardRegions, error) {
	if anchor.Empty() {
		return CardRegions{}, ErrGeometryInvalid
	}

	left := anchor.Min.X - g.cfg.SideMargin
	right := anchor.Max.X + g.cfg.SideMargin

	name := image.Rect(left, anchor.Min.Y-g.cfg.NameBandHeight, right, anchor.Min.Y)
	price := image.Rect(left, anchor.Max.Y, right, anchor.Max.Y+g.cfg.PriceBandHeight)
	card := image.Rect(
		left,
		name.Min.Y-g.cfg.VerticalMargin,
		right,
		price.Max.Y+g.cfg.VerticalMargin,
	)

	if name.Empty() || price.Empty() {
		return CardRegions{}, ErrGeometryInvalid
	}
	return CardRegions{Name: name, Price: price, Card: card}, nil
}

// DetailPriceROI anchors off the buy button on the detail page: a band
// DetailHeight tall sitting DetailDistance above the button top, spanning
// the button's width.
func (g Geometry) DetailPriceROI(buyBtn image.Rectangle) (image.Rectangle, error) {
	if buyBtn.Empty() {
		return image.Rectangle{}, ErrGeometryInvalid
	}
	bottom := buyBtn.Min.Y - g.cfg.DetailDistance
	top := bottom - g.cfg.DetailHeight
	roi := image.Rect(buyBtn.Min.X, top, buyBtn.Max.X, bottom)
	if roi.Empty() || roi.Min.Y < 0 {
		return image.Rectangle{}, ErrGeometryInvalid
	}
	return roi, nil
}

// AvgPriceBand is the top half of the detail ROI, which holds the average
// unit price. The bottom half holds the order total and is ignored.
func (g Geometry) AvgPriceBand(detail image.Rectangle) image.Rectangle {
	return image.Rect(detail.Min.X, detail.Min.Y, detail.Max.X, detail.Min.Y+detail.Dy()/2)
}

// Scale returns the upscale factor applied to detail price captures before
// OCR. The price font is small enough that the recognizer misreads it at
// native resolution.
func (g Geometry) Scale() float64 {
	if g.cfg.DetailScale <= 0 {
		return 1
	}
	return g.cfg.DetailScale
}

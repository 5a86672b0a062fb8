package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// PetEngraving pairs one engraved raster with an optional pet name drawn
// beneath its slot.
type PetEngraving struct {
	Image image.Image
	Name  string
}

// Config tunes compositing behavior.
type Config struct {
	DrawLabels   bool    `mapstructure:"draw_labels"`
	LabelOpacity float64 `mapstructure:"label_opacity"`
}

// DefaultConfig returns production compositing defaults.
func DefaultConfig() Config {
	return Config{
		DrawLabels:   true,
		LabelOpacity: 0.35,
	}
}

// Compositor places engraving discs onto pendant templates with multiply
// blending so the lines darken the metal texture instead of covering it.
// Compositing is pure: identical inputs yield identical output bytes.
type Compositor struct {
	config Config
	logger *slog.Logger
}

// New builds a compositor.
func New(config Config, logger *slog.Logger) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	if config.LabelOpacity <= 0 || config.LabelOpacity > 1 {
		config.LabelOpacity = 0.35
	}
	return &Compositor{config: config, logger: logger}
}

// Composite fills the named template's slots with the given engravings, in
// slot order. Supplying fewer engravings than slots leaves the remaining
// slots as bare template background.
func (c *Compositor) Composite(template image.Image, templateName string, pets []PetEngraving) (*image.NRGBA, error) {
	if template == nil {
		return nil, errors.New("template image is nil")
	}
	if len(pets) == 0 {
		return nil, errors.New("no engravings to composite")
	}

	tmpl, err := TemplateByName(templateName)
	if err != nil {
		return nil, err
	}
	if len(pets) > len(tmpl.Slots) {
		return nil, fmt.Errorf("template %q has %d slots, got %d engravings",
			templateName, len(tmpl.Slots), len(pets))
	}

	base := imaging.Clone(template)
	for i, pet := range pets {
		if pet.Image == nil {
			continue
		}
		slot := tmpl.Slots[i]
		disc := makeDisc(pet.Image, slot.Radius, tmpl.Margin)
		multiplyOver(base, disc, slot.CenterX-slot.Radius, slot.CenterY-slot.Radius, 1.0)

		if c.config.DrawLabels && pet.Name != "" {
			c.drawLabel(base, pet.Name, slot)
		}
	}

	c.logger.Debug("composited pendant",
		"template", templateName,
		"engravings", len(pets),
		"width", base.Rect.Dx(),
		"height", base.Rect.Dy())
	return base, nil
}

// CompositeLocket overlays a single engraving onto the locket template.
func (c *Compositor) CompositeLocket(template image.Image, engraving image.Image) (*image.NRGBA, error) {
	return c.Composite(template, "locket", []PetEngraving{{Image: engraving}})
}

// makeDisc fits the engraving inside the slot diameter minus the margin,
// centers it in a transparent square, and clips it to a circle so it lands on
// the template as a disc.
func makeDisc(engraving image.Image, radius, margin int) *image.NRGBA {
	side := radius * 2
	inner := side - margin
	if inner < 1 {
		inner = side
	}
	fitted := imaging.Fit(engraving, inner, inner, imaging.Lanczos)

	square := image.NewNRGBA(image.Rect(0, 0, side, side))
	offsetX := (side - fitted.Rect.Dx()) / 2
	offsetY := (side - fitted.Rect.Dy()) / 2
	draw.Draw(square, fitted.Rect.Add(image.Pt(offsetX, offsetY)), fitted, fitted.Rect.Min, draw.Over)

	// Circular clip: alpha outside the slot radius is zeroed.
	rr := radius * radius
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			dx, dy := x-radius, y-radius
			if dx*dx+dy*dy > rr {
				square.Pix[square.PixOffset(x, y)+3] = 0
			}
		}
	}
	return square
}

// multiplyOver blends src onto dst at (x0, y0) with multiply semantics scaled
// by src alpha and a global opacity: transparent source pixels leave dst
// untouched, dark opaque pixels darken it.
func multiplyOver(dst, src *image.NRGBA, x0, y0 int, opacity float64) {
	bounds := dst.Rect
	for sy := 0; sy < src.Rect.Dy(); sy++ {
		dy := y0 + sy
		if dy < bounds.Min.Y || dy >= bounds.Max.Y {
			continue
		}
		for sx := 0; sx < src.Rect.Dx(); sx++ {
			dx := x0 + sx
			if dx < bounds.Min.X || dx >= bounds.Max.X {
				continue
			}
			si := src.PixOffset(sx, sy)
			alpha := int(float64(src.Pix[si+3]) * opacity)
			if alpha == 0 {
				continue
			}
			di := dst.PixOffset(dx, dy)
			for ch := 0; ch < 3; ch++ {
				d := int(dst.Pix[di+ch])
				s := int(src.Pix[si+ch])
				// Weighted multiply: lerp between dst and dst*s/255 by alpha.
				m := d * s / 255
				dst.Pix[di+ch] = uint8((d*(255-alpha) + m*alpha) / 255)
			}
		}
	}
}

// drawLabel renders the pet name beneath the slot and multiplies it onto the
// template at low opacity.
func (c *Compositor) drawLabel(dst *image.NRGBA, name string, slot Slot) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, name).Ceil()
	height := face.Metrics().Height.Ceil()
	if width <= 0 {
		return
	}

	label := image.NewNRGBA(image.Rect(0, 0, width, height))
	drawer := &font.Drawer{
		Dst:  label,
		Src:  image.Black,
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	drawer.DrawString(name)

	x := slot.CenterX - width/2
	y := slot.CenterY + slot.Radius + 6
	multiplyOver(dst, label, x, y, c.config.LabelOpacity)
}

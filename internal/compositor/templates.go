// Package compositor blends engraved rasters onto pendant and locket template
// images. Slot positions are hand-calibrated per template artwork and shipped
// as an embedded document; they are measured constants, never computed.
package compositor

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var calibrationYAML []byte

// Slot is one circular engraving position on a template image, in template
// pixel coordinates.
type Slot struct {
	CenterX int `yaml:"center_x"`
	CenterY int `yaml:"center_y"`
	Radius  int `yaml:"radius"`
}

// Template describes one pendant artwork: its calibrated slots in fill order
// and the margin subtracted from each slot diameter when fitting engravings.
type Template struct {
	Name   string `yaml:"name"`
	Margin int    `yaml:"margin"`
	Slots  []Slot `yaml:"slots"`
}

type calibration struct {
	Templates []Template `yaml:"templates"`
}

var (
	calibOnce sync.Once
	calibMap  map[string]Template
	calibErr  error
)

func loadCalibration() (map[string]Template, error) {
	calibOnce.Do(func() {
		var doc calibration
		if err := yaml.Unmarshal(calibrationYAML, &doc); err != nil {
			calibErr = fmt.Errorf("parse slot calibration: %w", err)
			return
		}
		calibMap = make(map[string]Template, len(doc.Templates))
		for _, t := range doc.Templates {
			calibMap[t.Name] = t
		}
	})
	return calibMap, calibErr
}

// TemplateByName returns the calibrated template descriptor.
func TemplateByName(name string) (Template, error) {
	templates, err := loadCalibration()
	if err != nil {
		return Template{}, err
	}
	t, ok := templates[name]
	if !ok {
		return Template{}, fmt.Errorf("unknown pendant template: %q", name)
	}
	return t, nil
}

// TemplateNames lists the calibrated templates in stable order.
func TemplateNames() []string {
	templates, err := loadCalibration()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

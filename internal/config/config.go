// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


// Package config loads camera and region settings from text, JSON or YAML files.
//
// The text format has one "key value" pair per line. Blank lines and lines
// starting with # are ignored. All formats must set every key exactly once,
// unknown keys are rejected.
package config

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mlnoga/groundlight/internal/geom"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Keys of the configuration, in the order they are written out
var Keys = []string{
	"ipmWidth", "ipmHeight", "ipmLeft", "ipmRight", "ipmTop", "ipmBottom", "ipmInterpolation", "vpPortion",
	"focalLengthX", "focalLengthY", "opticalCenterX", "opticalCenterY", "cameraHeight", "pitch", "yaw",
	"imageWidth", "imageHeight",
}

// Maximum size of a configuration file
const MaxFileSize = 1024 * 1024

// Camera and region settings. Angles are in degrees
type Config struct {
	IPMWidth         int     `json:"ipmWidth" yaml:"ipmWidth"`   // Output raster size
	IPMHeight        int     `json:"ipmHeight" yaml:"ipmHeight"`
	IPMLeft          float64 `json:"ipmLeft" yaml:"ipmLeft"`     // Region of interest in input pixels
	IPMRight         float64 `json:"ipmRight" yaml:"ipmRight"`
	IPMTop           float64 `json:"ipmTop" yaml:"ipmTop"`
	IPMBottom        float64 `json:"ipmBottom" yaml:"ipmBottom"`
	IPMInterpolation int     `json:"ipmInterpolation" yaml:"ipmInterpolation"` // 0 bilinear, 1 nearest
	VPPortion        float64 `json:"vpPortion" yaml:"vpPortion"`

	FocalLengthX   float64 `json:"focalLengthX" yaml:"focalLengthX"`
	FocalLengthY   float64 `json:"focalLengthY" yaml:"focalLengthY"`
	OpticalCenterX float64 `json:"opticalCenterX" yaml:"opticalCenterX"`
	OpticalCenterY float64 `json:"opticalCenterY" yaml:"opticalCenterY"`
	CameraHeight   float64 `json:"cameraHeight" yaml:"cameraHeight"`
	Pitch          float64 `json:"pitch" yaml:"pitch"`
	Yaw            float64 `json:"yaw" yaml:"yaw"`
	ImageWidth     int     `json:"imageWidth" yaml:"imageWidth"`
	ImageHeight    int     `json:"imageHeight" yaml:"imageHeight"`
}

// Settings as decoded, nil where a key was not given
type rawConfig struct {
	IPMWidth         *int     `json:"ipmWidth" yaml:"ipmWidth"`
	IPMHeight        *int     `json:"ipmHeight" yaml:"ipmHeight"`
	IPMLeft          *float64 `json:"ipmLeft" yaml:"ipmLeft"`
	IPMRight         *float64 `json:"ipmRight" yaml:"ipmRight"`
	IPMTop           *float64 `json:"ipmTop" yaml:"ipmTop"`
	IPMBottom        *float64 `json:"ipmBottom" yaml:"ipmBottom"`
	IPMInterpolation *int     `json:"ipmInterpolation" yaml:"ipmInterpolation"`
	VPPortion        *float64 `json:"vpPortion" yaml:"vpPortion"`
	FocalLengthX     *float64 `json:"focalLengthX" yaml:"focalLengthX"`
	FocalLengthY     *float64 `json:"focalLengthY" yaml:"focalLengthY"`
	OpticalCenterX   *float64 `json:"opticalCenterX" yaml:"opticalCenterX"`
	OpticalCenterY   *float64 `json:"opticalCenterY" yaml:"opticalCenterY"`
	CameraHeight     *float64 `json:"cameraHeight" yaml:"cameraHeight"`
	Pitch            *float64 `json:"pitch" yaml:"pitch"`
	Yaw              *float64 `json:"yaw" yaml:"yaw"`
	ImageWidth       *int     `json:"imageWidth" yaml:"imageWidth"`
	ImageHeight      *int     `json:"imageHeight" yaml:"imageHeight"`
}

// Returns the built-in preset of the original Unity simulation camera
func Unity() *Config {
	return &Config{
		IPMWidth:  160,
		IPMHeight: 120,
		IPMLeft:   0,
		IPMRight:  159,
		IPMTop:    12,
		IPMBottom: 119,
		VPPortion: 0.045,

		FocalLengthX:   100,
		FocalLengthY:   100,
		OpticalCenterX: 79,
		OpticalCenterY: 59,
		CameraHeight:   2000,
		Pitch:          0,
		Yaw:            0,
		ImageWidth:     160,
		ImageHeight:    120,
	}
}

// Returns the named preset, or nil if unknown
func Preset(name string) *Config {
	switch strings.ToLower(name) {
	case "unity":
		return Unity()
	}
	return nil
}

// Format of a configuration file
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatYAML
)

// Returns the format for the given file name suffix. Anything not JSON or YAML is text
func FormatFromFileName(fileName string) Format {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatText
}

// Loads and validates a configuration file
func LoadFile(fileName string) (*Config, error) {
	info, err := os.Stat(fileName)
	if err != nil {
		return nil, errors.Wrapf(geom.ErrConfiguration, "%v", err)
	}
	if info.Size() > MaxFileSize {
		return nil, errors.Wrapf(geom.ErrConfiguration, "config file %s too large: %d bytes (max %d)", fileName, info.Size(), MaxFileSize)
	}
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(geom.ErrConfiguration, "%v", err)
	}
	defer file.Close()

	c, err := Decode(file, FormatFromFileName(fileName))
	if err != nil {
		return nil, errors.WithMessagef(err, "config file %s", fileName)
	}
	return c, nil
}

// Decodes and validates a configuration in the given format
func Decode(r io.Reader, format Format) (*Config, error) {
	var raw rawConfig
	switch format {
	case FormatJSON:
		b, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
		if err != nil {
			return nil, errors.Wrap(err, "json")
		}
		if len(b) > MaxFileSize {
			return nil, errors.Wrapf(geom.ErrConfiguration, "json config larger than %d bytes", MaxFileSize)
		}
		if err := checkDuplicateKeys(b); err != nil {
			return nil, err
		}
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&raw); err != nil {
			return nil, errors.Wrapf(geom.ErrConfiguration, "json: %v", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil {
			return nil, errors.Wrapf(geom.ErrConfiguration, "yaml: %v", err)
		}
	default:
		if err := decodeText(r, &raw); err != nil {
			return nil, err
		}
	}

	c, err := raw.resolve()
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// encoding/json keeps the last of repeated object keys. Walks the token
// stream and rejects repeats at any nesting level. Syntax errors are left
// to the decoder proper
func checkDuplicateKeys(b []byte) error {
	type object struct {
		keys      map[string]bool
		expectKey bool
	}
	var stack []*object // nil entries are arrays
	dec := json.NewDecoder(bytes.NewReader(b))
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		var top *object
		if len(stack) > 0 {
			top = stack[len(stack)-1]
		}
		switch t := tok.(type) {
		case json.Delim:
			switch t {
			case '{', '[':
				if top != nil {
					top.expectKey = true
				}
				if t == '{' {
					stack = append(stack, &object{keys: map[string]bool{}, expectKey: true})
				} else {
					stack = append(stack, nil)
				}
			default:
				stack = stack[:len(stack)-1]
			}
		case string:
			if top != nil && top.expectKey {
				if top.keys[t] {
					return errors.Wrapf(geom.ErrConfiguration, "json: duplicate key %q", t)
				}
				top.keys[t] = true
				top.expectKey = false
			} else if top != nil {
				top.expectKey = true
			}
		default:
			if top != nil {
				top.expectKey = true
			}
		}
	}
}

// Decodes a JSON configuration held in memory, as embedded in API requests
func DecodeJSON(b []byte) (*Config, error) {
	return Decode(bytes.NewReader(b), FormatJSON)
}

// Parses "key value" lines. Values then pass through the strict JSON decoder for type checks
func decodeText(r io.Reader, raw *rawConfig) error {
	values := map[string]float64{}
	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return errors.Wrapf(geom.ErrConfiguration, "line %d: expected key and value, got '%s'", lineNo, line)
		}
		key := fields[0]
		if _, ok := values[key]; ok {
			return errors.Wrapf(geom.ErrConfiguration, "line %d: duplicate key %s", lineNo, key)
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return errors.Wrapf(geom.ErrConfiguration, "line %d: invalid value for %s: %v", lineNo, key, err)
		}
		values[key] = v
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(geom.ErrConfiguration, "%v", err)
	}

	b, err := json.Marshal(values)
	if err != nil {
		return errors.Wrapf(geom.ErrConfiguration, "%v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(raw); err != nil {
		return errors.Wrapf(geom.ErrConfiguration, "%v", err)
	}
	return nil
}

func (raw *rawConfig) resolve() (*Config, error) {
	var missing []string
	i := func(name string, p *int) int {
		if p == nil {
			missing = append(missing, name)
			return 0
		}
		return *p
	}
	f := func(name string, p *float64) float64 {
		if p == nil {
			missing = append(missing, name)
			return 0
		}
		return *p
	}
	c := &Config{
		IPMWidth:         i("ipmWidth", raw.IPMWidth),
		IPMHeight:        i("ipmHeight", raw.IPMHeight),
		IPMLeft:          f("ipmLeft", raw.IPMLeft),
		IPMRight:         f("ipmRight", raw.IPMRight),
		IPMTop:           f("ipmTop", raw.IPMTop),
		IPMBottom:        f("ipmBottom", raw.IPMBottom),
		IPMInterpolation: i("ipmInterpolation", raw.IPMInterpolation),
		VPPortion:        f("vpPortion", raw.VPPortion),
		FocalLengthX:     f("focalLengthX", raw.FocalLengthX),
		FocalLengthY:     f("focalLengthY", raw.FocalLengthY),
		OpticalCenterX:   f("opticalCenterX", raw.OpticalCenterX),
		OpticalCenterY:   f("opticalCenterY", raw.OpticalCenterY),
		CameraHeight:     f("cameraHeight", raw.CameraHeight),
		Pitch:            f("pitch", raw.Pitch),
		Yaw:              f("yaw", raw.Yaw),
		ImageWidth:       i("imageWidth", raw.ImageWidth),
		ImageHeight:      i("imageHeight", raw.ImageHeight),
	}
	if len(missing) > 0 {
		return nil, errors.Wrapf(geom.ErrConfiguration, "missing keys %s", strings.Join(missing, ", "))
	}
	return c, nil
}

// Returns the camera model, with angles converted to radians
func (c *Config) Camera() geom.Camera {
	return geom.NewCameraFromDegrees(c.FocalLengthX, c.FocalLengthY, c.OpticalCenterX, c.OpticalCenterY,
		c.CameraHeight, c.Pitch, c.Yaw, c.ImageWidth, c.ImageHeight)
}

// Returns the configured region of interest, before any clamping
func (c *Config) Region() geom.Region {
	return geom.Region{
		OutputWidth:   c.IPMWidth,
		OutputHeight:  c.IPMHeight,
		Left:          c.IPMLeft,
		Right:         c.IPMRight,
		Top:           c.IPMTop,
		Bottom:        c.IPMBottom,
		VPPortion:     c.VPPortion,
		Interpolation: geom.Interpolation(c.IPMInterpolation),
	}
}

// Checks camera and region settings. Errors wrap geom.ErrConfiguration
func (c *Config) Validate() error {
	if err := c.Camera().Validate(); err != nil {
		return err
	}
	return c.Region().Validate()
}

// Returns the value for each key, in the order of Keys
func (c *Config) values() []float64 {
	return []float64{
		float64(c.IPMWidth), float64(c.IPMHeight), c.IPMLeft, c.IPMRight, c.IPMTop, c.IPMBottom,
		float64(c.IPMInterpolation), c.VPPortion,
		c.FocalLengthX, c.FocalLengthY, c.OpticalCenterX, c.OpticalCenterY, c.CameraHeight, c.Pitch, c.Yaw,
		float64(c.ImageWidth), float64(c.ImageHeight),
	}
}

// Writes the configuration in the given format
func (c *Config) Write(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(c)
	}
	for i, v := range c.values() {
		if _, err := fmt.Fprintf(w, "%s %s\n", Keys[i], strconv.FormatFloat(v, 'g', -1, 64)); err != nil {
			return err
		}
	}
	return nil
}

// Writes the configuration to a file, in the format given by its suffix
func (c *Config) WriteFile(fileName string) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	if err := c.Write(file, FormatFromFileName(fileName)); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (c *Config) String() string {
	b := strings.Builder{}
	c.Write(&b, FormatText)
	return b.String()
}

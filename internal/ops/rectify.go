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

package ops

import (
	"encoding/json"
	"fmt"

	"github.com/mlnoga/groundlight/internal/config"
	"github.com/mlnoga/groundlight/internal/raster"
	"github.com/mlnoga/groundlight/internal/rectify"
	"github.com/mlnoga/groundlight/internal/stats"
	"github.com/pkg/errors"
)

// Rectifies each input frame into a top-down view of the ground plane.
// Takes n inputs, produces n outputs
type OpRectify struct {
	OpUnaryBase
	Config *config.Config `json:"config"`
	driver *rectify.Driver
}

func init() { SetOperatorFactory(func() Operator { return NewOpRectifyDefault() }) } // register the operator for JSON decoding

func NewOpRectifyDefault() *OpRectify { return NewOpRectify(config.Unity()) }

func NewOpRectify(cfg *config.Config) *OpRectify {
	op := OpRectify{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "rectify", Active: true}},
		Config:      cfg,
		driver:      rectify.NewDriver(),
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshals the operator, decoding the embedded configuration strictly
func (op *OpRectify) UnmarshalJSON(b []byte) error {
	type alias OpRectify
	aux := struct {
		*alias
		Config json.RawMessage `json:"config"`
	}{alias: (*alias)(op)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if len(aux.Config) == 0 || string(aux.Config) == "null" {
		return nil
	}
	cfg, err := config.DecodeJSON(aux.Config)
	if err != nil {
		return err
	}
	op.Config = cfg
	return nil
}

func (op *OpRectify) Apply(f *raster.Image, c *Context) (result *raster.Image, err error) {
	if op.Config == nil {
		return nil, errors.Errorf("%d: %s operator without configuration", f.ID, op.Type)
	}
	res, m, err := op.driver.Rectify(f, op.Config.Camera(), op.Config.Region())
	if err != nil {
		return nil, errors.WithMessagef(err, "%d: rectifying %s", f.ID, f.FileName)
	}
	fmt.Fprintf(c.Log, "%d: Rectified %s to %s pixels, region %v, ground %v\n",
		f.ID, f.DimensionsToString(), res.DimensionsToString(), m.Region, m)
	bins := make([]int32, 256)
	stats.Histogram(res.Data, raster.DisplayMin, raster.DisplayMax, bins)
	peak, _ := stats.GetPeak(bins, raster.DisplayMin, raster.DisplayMax)
	fmt.Fprintf(c.Log, "%d: Rectified image has %v, histogram peak at %.4g\n", res.ID, res.Stats, peak)
	return res, nil
}

// Creates the standard pipeline: load all files matching the patterns, then
// rectify each and save it under the output pattern
func NewRectifyPipeline(filePatterns []string, cfg *config.Config, outPattern string) *OpSequence {
	return NewOpSequence(
		NewOpLoadMany(filePatterns),
		NewOpForEach(NewOpSequence(
			NewOpRectify(cfg),
			NewOpSave(outPattern),
		)),
	)
}

// Runs an operator which takes no inputs, materializing its outputs with the frame limit of the context.
// Outputs are not retained. Returns the number of frames processed
func Run(op Operator, c *Context, bytesPerFrame int64) (int, error) {
	promises, err := op.MakePromises(nil, c)
	if err != nil {
		return 0, err
	}
	limit := c.FrameLimit(bytesPerFrame)
	fmt.Fprintf(c.Log, "Processing %d frames with up to %d in parallel on %s\n", len(promises), limit, c.CPU)
	if _, err := MaterializeAll(promises, limit, true); err != nil {
		return 0, err
	}
	return len(promises), nil
}

// Estimates the memory for one frame of the given configuration in flight: input, normalized copy and warped output
func BytesPerFrame(cfg *config.Config) int64 {
	in := int64(cfg.ImageWidth) * int64(cfg.ImageHeight)
	out := int64(cfg.IPMWidth) * int64(cfg.IPMHeight)
	return 4 * (2*in + 2*out)
}

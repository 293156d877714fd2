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
	"bytes"
	"encoding/json"
	"os"
	"sync"
	"testing"

	"github.com/mlnoga/groundlight/internal/config"
	"github.com/mlnoga/groundlight/internal/geom"
	"github.com/mlnoga/groundlight/internal/raster"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Changes into a fresh temporary directory, as operators only accept relative paths
func inTempDir(t *testing.T) {
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(old) })
}

// Log buffer safe for concurrent operators
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testContext() (*Context, *lockedBuffer) {
	log := &lockedBuffer{}
	return NewContext(log), log
}

func TestMaterializeAll(t *testing.T) {
	ins := []Promise{
		func() (*raster.Image, error) { return raster.NewImageFilled(2, 2, 1), nil },
		func() (*raster.Image, error) { return nil, errors.New("broken frame") },
		func() (*raster.Image, error) { return raster.NewImageFilled(2, 2, 3), nil },
	}
	outs, err := MaterializeAll(ins, 2, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken frame")
	require.Len(t, outs, 2)
	assert.Equal(t, float32(1), outs[0].Data[0])
	assert.Equal(t, float32(3), outs[1].Data[0])

	outs, err = MaterializeAll(ins[:1], 0, true)
	assert.NoError(t, err)
	assert.Empty(t, outs)
}

func TestRemoveNils(t *testing.T) {
	a, b := raster.NewImageFilled(1, 1, 0), raster.NewImageFilled(1, 1, 0)
	frames := RemoveNils([]*raster.Image{nil, a, nil, b})
	assert.Equal(t, []*raster.Image{a, b}, frames)
}

func TestFrameLimit(t *testing.T) {
	c := &Context{MaxThreads: 8, FrameMB: 10}
	assert.Equal(t, 8, c.FrameLimit(1024))
	assert.Equal(t, 2, c.FrameLimit(5*1024*1024))
	assert.Equal(t, 1, c.FrameLimit(100*1024*1024))
	assert.Equal(t, 8, c.FrameLimit(0))
}

func TestNewContext(t *testing.T) {
	c, _ := testContext()
	assert.GreaterOrEqual(t, c.MaxThreads, 1)
	assert.NotEmpty(t, c.CPU)
	assert.Equal(t, c.MemoryMB*7/10, c.FrameMB)
}

func TestPipelineJSONRoundTrip(t *testing.T) {
	cfg := config.Unity()
	cfg.Pitch = 7
	seq := NewRectifyPipeline([]string{"in/*.png"}, cfg, "out%d.png")
	b, err := json.Marshal(seq)
	require.NoError(t, err)

	op, err := UnmarshalOperator(b)
	require.NoError(t, err)
	decoded, ok := op.(*OpSequence)
	require.True(t, ok)
	require.Len(t, decoded.Steps, 2)
	assert.Equal(t, []string{"in/*.png"}, decoded.Steps[0].(*OpLoadMany).FilePatterns)

	forEach := decoded.Steps[1].(*OpForEach)
	inner := forEach.Operation.(*OpSequence)
	require.Len(t, inner.Steps, 2)
	assert.Equal(t, cfg, inner.Steps[0].(*OpRectify).Config)
	assert.Equal(t, "out%d.png", inner.Steps[1].(*OpSave).FilePattern)

	again, err := json.Marshal(op)
	require.NoError(t, err)
	assert.JSONEq(t, string(b), string(again))
}

func TestUnmarshalUnknownOperator(t *testing.T) {
	_, err := UnmarshalOperator([]byte(`{"type":"stack","active":true}`))
	assert.Error(t, err)
}

func TestOpRectifyRejectsIncompleteConfig(t *testing.T) {
	_, err := UnmarshalOperator([]byte(`{"type":"rectify","active":true,"config":{"ipmWidth":3}}`))
	assert.True(t, errors.Is(err, geom.ErrConfiguration), "got %v", err)
}

func TestLoadRejectsPathsOutsideTree(t *testing.T) {
	c, _ := testContext()
	for _, name := range []string{"/etc/passwd", "../x.png", "a/../../b.png"} {
		_, err := NewOpLoad(0, name).MakePromises(nil, c)
		assert.Error(t, err, name)
	}
}

func TestLoadManyNoMatches(t *testing.T) {
	inTempDir(t)
	c, _ := testContext()
	_, err := NewOpLoadMany([]string{"*.png"}).MakePromises(nil, c)
	assert.Error(t, err)
}

func TestRunRectifyPipeline(t *testing.T) {
	inTempDir(t)
	for _, name := range []string{"frame0.png", "frame1.png"} {
		require.NoError(t, raster.NewImageFilled(160, 120, 128).WriteMonoPNGToFile(name, raster.DisplayMin, raster.DisplayMax))
	}

	c, log := testContext()
	cfg := config.Unity()
	n, err := Run(NewRectifyPipeline([]string{"frame*.png"}, cfg, "out%d.png"), c, BytesPerFrame(cfg))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, log.String(), "Found 2 files.")
	assert.Contains(t, log.String(), "Rectified 160x120 to 80x120 pixels")

	for _, name := range []string{"out0.png", "out1.png"} {
		out, err := raster.NewImageFromFile(name, 0, nil)
		require.NoError(t, err, name)
		assert.Equal(t, []int32{80, 120}, out.Naxisn)
		assert.InDelta(t, 128, out.Stats.Min, 1)
		assert.InDelta(t, 128, out.Stats.Max, 1)
	}
}

func TestRunRectifyPipelineDegenerate(t *testing.T) {
	inTempDir(t)
	require.NoError(t, raster.NewImageFilled(160, 120, 128).WriteMonoPNGToFile("frame0.png", raster.DisplayMin, raster.DisplayMax))

	c, _ := testContext()
	cfg := config.Unity()
	cfg.Pitch = -40
	_, err := Run(NewRectifyPipeline([]string{"frame*.png"}, cfg, "out%d.png"), c, BytesPerFrame(cfg))
	assert.True(t, errors.Is(err, geom.ErrDegenerateProjection), "got %v", err)
	_, statErr := os.Stat("out0.png")
	assert.True(t, os.IsNotExist(statErr))
}

func TestBytesPerFrame(t *testing.T) {
	assert.Equal(t, int64(4*(2*160*120+2*160*120)), BytesPerFrame(config.Unity()))
}

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

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mlnoga/groundlight/internal/geom"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unityText = `# Unity simulation camera
ipmWidth 160
ipmHeight 120
ipmLeft 0
ipmRight 159
ipmTop 12
ipmBottom 119
ipmInterpolation 0
vpPortion 0.045

focalLengthX 100
focalLengthY 100
opticalCenterX 79
opticalCenterY 59
cameraHeight 2000
pitch 0
yaw 0
imageWidth 160
imageHeight 120
`

func TestDecodeText(t *testing.T) {
	c, err := Decode(strings.NewReader(unityText), FormatText)
	require.NoError(t, err)
	assert.Equal(t, Unity(), c)
}

func TestDecodeTextErrors(t *testing.T) {
	cases := map[string]string{
		"missing key":     strings.Replace(unityText, "yaw 0\n", "", 1),
		"unknown key":     unityText + "roll 3\n",
		"duplicate key":   unityText + "pitch 3\n",
		"not a number":    strings.Replace(unityText, "pitch 0", "pitch level", 1),
		"extra field":     strings.Replace(unityText, "pitch 0", "pitch 0 deg", 1),
		"fractional size": strings.Replace(unityText, "ipmWidth 160", "ipmWidth 160.5", 1),
		"zero focal":      strings.Replace(unityText, "focalLengthX 100", "focalLengthX 0", 1),
		"zero output":     strings.Replace(unityText, "ipmHeight 120", "ipmHeight 0", 1),
		"bad portion":     strings.Replace(unityText, "vpPortion 0.045", "vpPortion 2", 1),
		"bad mode":        strings.Replace(unityText, "ipmInterpolation 0", "ipmInterpolation 5", 1),
		"empty":           "",
	}
	for name, text := range cases {
		_, err := Decode(strings.NewReader(text), FormatText)
		assert.True(t, errors.Is(err, geom.ErrConfiguration), "%s: got %v", name, err)
	}
}

func TestDecodeMissingKeysListed(t *testing.T) {
	_, err := Decode(strings.NewReader("ipmWidth 10\n"), FormatText)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ipmHeight")
	assert.Contains(t, err.Error(), "imageHeight")
	assert.NotContains(t, err.Error(), "ipmWidth,")
}

func TestDecodeJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Unity().Write(&buf, FormatJSON))
	c, err := DecodeJSON(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, Unity(), c)

	_, err = DecodeJSON([]byte(`{"ipmWidth": 160}`))
	assert.True(t, errors.Is(err, geom.ErrConfiguration))

	withExtra := strings.Replace(buf.String(), "{", `{"roll": 1,`, 1)
	_, err = DecodeJSON([]byte(withExtra))
	assert.True(t, errors.Is(err, geom.ErrConfiguration))

	// later value must not silently win
	repeated := strings.Replace(buf.String(), "{", `{"ipmWidth": 320,`, 1)
	_, err = DecodeJSON([]byte(repeated))
	assert.True(t, errors.Is(err, geom.ErrConfiguration), "got %v", err)
	assert.Contains(t, err.Error(), "ipmWidth")

	_, err = Decode(strings.NewReader(repeated), FormatJSON)
	assert.True(t, errors.Is(err, geom.ErrConfiguration))
}

func TestCheckDuplicateKeys(t *testing.T) {
	for _, ok := range []string{
		`{"a": 1, "b": "a"}`,
		`{"a": {"a": 1}, "b": [{"a": 1}, {"a": 2}]}`,
		`{"a": ["a", "a"], "b": {}}`,
		`[{"a": 1}, {"a": 1}]`,
		`{"a": 1`, // syntax errors are the decoder's business
	} {
		assert.NoError(t, checkDuplicateKeys([]byte(ok)), ok)
	}
	for _, dup := range []string{
		`{"a": 1, "a": 1}`,
		`{"a": {"b": 1, "b": 2}}`,
		`{"a": [1, 2], "b": [{"c": 1, "c": 2}]}`,
		`{"a": {"x": 1}, "a": 2}`,
	} {
		assert.True(t, errors.Is(checkDuplicateKeys([]byte(dup)), geom.ErrConfiguration), dup)
	}
}

func TestDecodeYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Unity().Write(&buf, FormatYAML))
	c, err := Decode(&buf, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, Unity(), c)

	_, err = Decode(strings.NewReader("ipmWidth: 160\nroll: 2\n"), FormatYAML)
	assert.True(t, errors.Is(err, geom.ErrConfiguration))

	_, err = Decode(strings.NewReader("ipmWidth: 320\n"+unityYAML(t)), FormatYAML)
	assert.True(t, errors.Is(err, geom.ErrConfiguration), "got %v", err)
}

func unityYAML(t *testing.T) string {
	var buf bytes.Buffer
	require.NoError(t, Unity().Write(&buf, FormatYAML))
	return buf.String()
}

func TestFormatFromFileName(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFromFileName("cam.JSON"))
	assert.Equal(t, FormatYAML, FormatFromFileName("cam.yml"))
	assert.Equal(t, FormatYAML, FormatFromFileName("dir/cam.yaml"))
	assert.Equal(t, FormatText, FormatFromFileName("camera.conf"))
}

func TestWriteLoadFile(t *testing.T) {
	dir := t.TempDir()
	c := Unity()
	c.Pitch, c.Yaw = 12.5, -3
	for _, name := range []string{"camera.conf", "camera.json", "camera.yaml"} {
		fileName := filepath.Join(dir, name)
		require.NoError(t, c.WriteFile(fileName))
		loaded, err := LoadFile(fileName)
		require.NoError(t, err, name)
		assert.Equal(t, c, loaded, name)
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.conf"))
	assert.True(t, errors.Is(err, geom.ErrConfiguration))
}

func TestLoadFileTooLarge(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "big.conf")
	require.NoError(t, os.WriteFile(fileName, bytes.Repeat([]byte("#\n"), MaxFileSize), 0644))
	_, err := LoadFile(fileName)
	assert.True(t, errors.Is(err, geom.ErrConfiguration))
}

func TestCameraAndRegion(t *testing.T) {
	c := Unity()
	c.Pitch, c.IPMInterpolation = 90, 1
	cam := c.Camera()
	assert.InDelta(t, 1.5707963, cam.Pitch, 1e-6)
	assert.Equal(t, 160, cam.ImageWidth)
	r := c.Region()
	assert.Equal(t, geom.InterpolationNearest, r.Interpolation)
	assert.Equal(t, 12.0, r.Top)
}

func TestPreset(t *testing.T) {
	assert.Equal(t, Unity(), Preset("Unity"))
	assert.Nil(t, Preset("carla"))
}

func TestStringIsText(t *testing.T) {
	c, err := Decode(strings.NewReader(Unity().String()), FormatText)
	require.NoError(t, err)
	assert.Equal(t, Unity(), c)
}

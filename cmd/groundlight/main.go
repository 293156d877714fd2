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

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	nl "github.com/mlnoga/groundlight/internal"
	"github.com/mlnoga/groundlight/internal/config"
	"github.com/mlnoga/groundlight/internal/geom"
	"github.com/mlnoga/groundlight/internal/ops"
	"github.com/mlnoga/groundlight/internal/points"
	"github.com/mlnoga/groundlight/internal/projection"
	"github.com/mlnoga/groundlight/internal/rest"
	"github.com/mlnoga/groundlight/internal/scale"
	"github.com/pkg/errors"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")

var configFile = flag.String("config", "", "read camera and region configuration from `file` (.conf text, .json or .yaml)")
var preset = flag.String("preset", "unity", "use the named built-in configuration if no -config is given")

var out = flag.String("out", "ipm%d.png", "save rectified frames with given filename pattern, e.g. `ipm%04d.png`. Suffix selects .png, .jpg or .tif")
var log = flag.String("log", "", "save log output to `file`. `%auto` replaces suffix of output pattern with .log")
var threads = flag.Int("threads", 0, "maximum number of frames processed in parallel, 0=auto")

var addr = flag.String("addr", ":8080", "listen on `host:port` for the serve command")
var chroot = flag.String("chroot", "", "chroot to the given directory before serving")
var setuid = flag.Int("setuid", -1, "set user id before serving, -1=keep")

func main() {
	logWriter := nl.LogWriter()
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(logWriter, `Groundlight Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (mapping|image2ground|ipm2image|rectify|run|config|serve|legal|version) (args)

Commands:
  mapping       Show the ground mapping for the configured camera and region
  image2ground  Map image points x,y ... to ground coordinates
  ipm2image     Map rectified raster points x,y ... to image coordinates
  rectify       Rectify input images img0.png ... imgn.png into top-down views
  run           Run the operator pipeline given as JSON file
  config        Show the effective configuration
  serve         Serve the REST API
  legal         Show license and attribution information
  version       Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Initialize logging to file in addition to stdout, if selected
	if *log == "%auto" {
		if *out != "" {
			*log = strings.ReplaceAll(strings.TrimSuffix(*out, filepath.Ext(*out)), "%d", "") + ".log"
		} else {
			*log = ""
		}
	}
	if *log != "" {
		if err := nl.LogAlsoToFile(*log); err != nil {
			nl.LogFatalf("Unable to open logfile '%s': %s\n", *log, err.Error())
		}
	}

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			nl.LogFatal("Could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			nl.LogFatal("Could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	var err error
	switch args[0] {
	case "mapping":
		err = cmdMapping(logWriter)

	case "image2ground":
		err = cmdPoints(args[1:], logWriter, false)

	case "ipm2image":
		err = cmdPoints(args[1:], logWriter, true)

	case "rectify":
		err = cmdRectify(args[1:], logWriter)

	case "run":
		err = cmdRun(args[1:], logWriter)

	case "config":
		var cfg *config.Config
		if cfg, err = loadConfig(); err == nil {
			err = cfg.Write(logWriter, config.FormatText)
		}

	case "serve":
		err = cmdServe(logWriter)

	case "legal":
		fmt.Fprint(logWriter, legal)

	case "version":
		fmt.Fprintf(logWriter, "Version %s\n", version)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		nl.LogSync()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(logWriter, "Error (%s): %s\n", kindOrGeneric(err), err.Error())
		pprof.StopCPUProfile()
		nl.LogCloseFile()
		os.Exit(1)
	}
	fmt.Fprintf(logWriter, "\nDone after %v\n", time.Since(start))
	nl.LogSync()
}

func kindOrGeneric(err error) string {
	if k := geom.Kind(err); k != "" {
		return k
	}
	return "error"
}

// Loads the configuration file if given, else the preset
func loadConfig() (*config.Config, error) {
	if *configFile != "" {
		return config.LoadFile(*configFile)
	}
	if cfg := config.Preset(*preset); cfg != nil {
		return cfg, nil
	}
	return nil, errors.Wrapf(geom.ErrConfiguration, "unknown preset '%s'", *preset)
}

// Shows the ground mapping for the configuration
func cmdMapping(logWriter io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := scale.Derive(projection.Pinhole{}, cfg.Camera(), cfg.Region())
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "Camera %v\nRegion %v\nMapping %v\n%s\n", cfg.Camera(), m.Region, m, string(b))
	return nil
}

// Parses arguments of the form x,y into coordinate batches
func parsePoints(args []string) (xs, ys []float64, err error) {
	for _, arg := range args {
		parts := strings.Split(arg, ",")
		if len(parts) != 2 {
			return nil, nil, errors.Wrapf(geom.ErrInvalidArgument, "point '%s' is not of the form x,y", arg)
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errX != nil || errY != nil {
			return nil, nil, errors.Wrapf(geom.ErrInvalidArgument, "point '%s' is not numeric", arg)
		}
		xs, ys = append(xs, x), append(ys, y)
	}
	return xs, ys, nil
}

// Maps points from image to ground, or from rectified raster to image
func cmdPoints(args []string, logWriter io.Writer, fromIPM bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	xs, ys, err := parsePoints(args)
	if err != nil {
		return err
	}

	mapper := points.NewMapper()
	var rxs, rys []float64
	var m geom.Mapping
	if fromIPM {
		rxs, rys, m, err = mapper.IPMToImage(xs, ys, cfg.Camera(), cfg.Region())
	} else {
		rxs, rys, m, err = mapper.ImageToGround(xs, ys, cfg.Camera(), cfg.Region())
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "Mapping %v\n", m)
	for i := range xs {
		fmt.Fprintf(logWriter, "%d: (%.6g,%.6g) -> (%.6g,%.6g)\n", i, xs[i], ys[i], rxs[i], rys[i])
	}
	return nil
}

func newContext(logWriter io.Writer) *ops.Context {
	c := ops.NewContext(logWriter)
	if *threads > 0 {
		c.MaxThreads = *threads
	}
	fmt.Fprintf(logWriter, "Physical memory is %d MB, %d MB for frames in flight, up to %d threads on %s.\n",
		c.MemoryMB, c.FrameMB, c.MaxThreads, c.CPU)
	return c
}

// Rectifies the given input files
func cmdRectify(args []string, logWriter io.Writer) error {
	if len(args) == 0 {
		return errors.Wrap(geom.ErrInvalidArgument, "no input files")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pipeline := ops.NewRectifyPipeline(args, cfg, *out)
	b, err := json.MarshalIndent(pipeline, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "Rectifying with these settings:\n%s\n", string(b))

	n, err := ops.Run(pipeline, newContext(logWriter), ops.BytesPerFrame(cfg))
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "Rectified %d frames.\n", n)
	return nil
}

// Runs an operator pipeline read from a JSON file
func cmdRun(args []string, logWriter io.Writer) error {
	if len(args) != 1 {
		return errors.Wrap(geom.ErrInvalidArgument, "run needs exactly one pipeline file")
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	op, err := ops.UnmarshalOperator(b)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	n, err := ops.Run(op, newContext(logWriter), ops.BytesPerFrame(cfg))
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "Processed %d frames.\n", n)
	return nil
}

// Serves the REST API with the loaded configuration as default
func cmdServe(logWriter io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := rest.MakeSandbox(*chroot, *setuid); err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "Serving on %s\n", *addr)
	return rest.Serve(*addr, cfg, logWriter)
}

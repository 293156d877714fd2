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

// Package rest serves the mapping operations over HTTP.
package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/mlnoga/groundlight/internal/config"
	"github.com/mlnoga/groundlight/internal/geom"
	"github.com/mlnoga/groundlight/internal/ops"
	"github.com/mlnoga/groundlight/internal/points"
	"github.com/mlnoga/groundlight/internal/projection"
	"github.com/mlnoga/groundlight/internal/scale"
	"github.com/pkg/errors"
)

// Handlers with the configuration used when a request brings none
type server struct {
	defaultConfig *config.Config
	mapper        *points.Mapper
}

// Creates the router. Requests without a config field use defaultConfig.
// Access logs go to logWriter
func NewRouter(defaultConfig *config.Config, logWriter io.Writer) *gin.Engine {
	s := &server{defaultConfig: defaultConfig, mapper: points.NewMapper()}

	r := gin.New()
	r.Use(gin.LoggerWithWriter(logWriter), gin.Recovery())
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/mapping", s.postMapping)
			v1.POST("/image2ground", s.postImageToGround)
			v1.POST("/ipm2image", s.postIPMToImage)
			v1.POST("/rectify", s.postRectify)
		}
	}
	return r
}

// Listens and serves on the given address, e.g. ":8080"
func Serve(addr string, defaultConfig *config.Config, logWriter io.Writer) error {
	return NewRouter(defaultConfig, logWriter).Run(addr)
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

// Returns the HTTP status for an error of the given kind
func statusFor(err error) int {
	switch {
	case errors.Is(err, geom.ErrConfiguration), errors.Is(err, geom.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, geom.ErrDegenerateProjection):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error(), "kind": geom.Kind(err)})
}

func (s *server) resolveConfig(raw json.RawMessage) (*config.Config, error) {
	if len(raw) == 0 || string(raw) == "null" {
		if s.defaultConfig == nil {
			return nil, errors.Wrap(geom.ErrConfiguration, "request without config, and no default")
		}
		return s.defaultConfig, nil
	}
	return config.DecodeJSON(raw)
}

// JSON cannot carry NaN or infinities. Points at or beyond the horizon produce them
func checkFinite(xs, ys []float64) error {
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsInf(xs[i], 0) || math.IsNaN(ys[i]) || math.IsInf(ys[i], 0) {
			return errors.Wrapf(geom.ErrDegenerateProjection, "point %d maps to (%v,%v)", i, xs[i], ys[i])
		}
	}
	return nil
}

type mappingArgs struct {
	Config json.RawMessage `json:"config"`
}

func (s *server) postMapping(c *gin.Context) {
	var args mappingArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, err := s.resolveConfig(args.Config)
	if err != nil {
		abortWithError(c, err)
		return
	}
	m, err := scale.Derive(projection.Pinhole{}, cfg.Camera(), cfg.Region())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

type pointsArgs struct {
	Config json.RawMessage `json:"config"`
	Xs     []float64       `json:"xs"`
	Ys     []float64       `json:"ys"`
}

type pointsResult struct {
	Xs      []float64    `json:"xs"`
	Ys      []float64    `json:"ys"`
	Mapping geom.Mapping `json:"mapping"`
}

type pointsFunc func(xs, ys []float64, cam geom.Camera, region geom.Region) ([]float64, []float64, geom.Mapping, error)

func (s *server) handlePoints(c *gin.Context, f pointsFunc) {
	var args pointsArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, err := s.resolveConfig(args.Config)
	if err != nil {
		abortWithError(c, err)
		return
	}
	xs, ys, m, err := f(args.Xs, args.Ys, cfg.Camera(), cfg.Region())
	if err == nil {
		err = checkFinite(xs, ys)
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pointsResult{Xs: xs, Ys: ys, Mapping: m})
}

func (s *server) postImageToGround(c *gin.Context) {
	s.handlePoints(c, s.mapper.ImageToGround)
}

func (s *server) postIPMToImage(c *gin.Context) {
	s.handlePoints(c, s.mapper.IPMToImage)
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

type rectifyArgs struct {
	Config       json.RawMessage `json:"config,omitempty"`
	FilePatterns []string        `json:"filePatterns"`
	Out          string          `json:"out"`
}

// Writer serializing concurrent operator log output into the response
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Rectifies files on the server. Streams the log as plain text
func (s *server) postRectify(c *gin.Context) {
	var args rectifyArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, err := s.resolveConfig(args.Config)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if len(args.FilePatterns) == 0 || args.Out == "" {
		abortWithError(c, errors.Wrap(geom.ErrInvalidArgument, "need filePatterns and out"))
		return
	}

	header := c.Writer.Header()
	header.Set("Content-Type", "text/plain")
	c.Writer.WriteHeader(http.StatusOK)
	logWriter := &syncWriter{w: c.Writer}

	if err := printArgs(logWriter, "Arguments:\n", "\n", args); err != nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	ctx := ops.NewContext(logWriter)
	n, err := ops.Run(ops.NewRectifyPipeline(args.FilePatterns, cfg, args.Out), ctx, ops.BytesPerFrame(cfg))
	if err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
	} else {
		fmt.Fprintf(logWriter, "Rectified %d frames.\n", n)
	}
	c.Writer.Flush()
}

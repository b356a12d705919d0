// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Serves converted trace-sets for browsing.
package viewer

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/trsconv"
	"github.com/google/trsconv/util"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/golang/glog"
	"github.com/labstack/echo"
)

const manifestExt = ".config"

type TraceMetadata struct {
	Id         int    `json:"Id"`
	Pt         string `json:"PT"`
	NumSamples int    `json:"NumSamples"`
}

type TraceSetInfo struct {
	Name       string          `json:"Name"`
	Format     string          `json:"Format"`
	NumTraces  int             `json:"NumTraces"`
	NSamples   int             `json:"NSamples"`
	InputWidth int             `json:"InputWidth"`
	Algorithm  string          `json:"Algorithm"`
	Position   string          `json:"Position"`
	Verified   bool            `json:"Verified"`
	Traces     []TraceMetadata `json:"Traces"`
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html><head><title>Trace-sets</title></head><body>
<h1>Trace-sets in {{.Dir}}</h1>
<ul>{{range .Names}}
<li><a href="/data/{{.}}">{{.}}</a> <a href="/chart/{{.}}/0">trace 0</a></li>{{end}}
</ul></body></html>
`))

type Server struct {
	dir    string
	broker *util.Broker
	echo   *echo.Echo
	// How long /tracesets waits for a directory change.
	WaitTimeout time.Duration
}

// Serves the trace-sets in dir. Change notifications published on broker
// release clients long-polling /tracesets.
func New(dir string, broker *util.Broker) *Server {
	s := &Server{
		dir:         dir,
		broker:      broker,
		echo:        echo.New(),
		WaitTimeout: 5 * time.Minute,
	}
	s.echo.HideBanner = true
	s.echo.GET("/", s.index)
	s.echo.GET("/tracesets", s.traceSets)
	s.echo.GET("/data/:set", s.traceSetInfo)
	s.echo.GET("/data/:set/:trace", s.traceData)
	s.echo.GET("/chart/:set/:trace", s.traceChart)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Reports whether name is a trace-set manifest.
func IsManifest(name string) bool {
	return strings.HasSuffix(name, manifestExt)
}

func (s *Server) names() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, "*"+manifestExt))
	if err != nil {
		return nil, err
	}
	for i, f := range files {
		files[i] = strings.TrimSuffix(filepath.Base(f), manifestExt)
	}
	return files, nil
}

func (s *Server) open(name string) (*trsconv.TraceSet, error) {
	return trsconv.OpenTraceSet(filepath.Join(s.dir, filepath.Base(name)+manifestExt))
}

func (s *Server) waitForChange(c echo.Context) {
	if s.broker == nil {
		return
	}
	changed := s.broker.Subscribe()
	defer s.broker.Unsubscribe(changed)

	timedOut := time.NewTimer(s.WaitTimeout)
	defer timedOut.Stop()
	select {
	case <-timedOut.C:
		glog.V(1).Infof("Timed out")
	case <-c.Request().Context().Done():
		glog.V(1).Infof("Client disconnected")
	case ev := <-changed:
		glog.V(1).Infof("Received change of %s from broker", ev.Path)
	}
}

func (s *Server) index(c echo.Context) error {
	names, err := s.names()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err = indexTemplate.Execute(&buf, struct {
		Dir   string
		Names []string
	}{s.dir, names}); err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// Lists trace-sets. Unless wait=false, responds only after the directory
// changes.
func (s *Server) traceSets(c echo.Context) error {
	if c.QueryParam("wait") != "false" {
		s.waitForChange(c)
	}
	names, err := s.names()
	if err != nil {
		glog.Errorf("Glob failed: %v", err)
		return err
	}
	return c.JSON(http.StatusOK, names)
}

func (s *Server) traceSetInfo(c echo.Context) error {
	ts, err := s.open(c.Param("set"))
	if err != nil {
		glog.Errorf("Error opening trace-set: %v", err)
		return c.String(http.StatusNotFound, "Unknown trace-set")
	}
	defer ts.Close()

	m := ts.Manifest
	info := TraceSetInfo{
		Name:       c.Param("set"),
		Format:     m.Format.String(),
		NumTraces:  m.NumTraces,
		NSamples:   m.NSamples,
		InputWidth: m.InputWidth,
		Algorithm:  m.General.Algorithm,
		Position:   m.General.Position,
		Verified:   ts.Verify() == nil,
	}
	for i := 0; i < ts.Len(); i++ {
		pt, err := ts.Input(i)
		if err != nil {
			return err
		}
		info.Traces = append(info.Traces, TraceMetadata{i, hex.EncodeToString(pt), m.SamplesPerTrace()})
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) loadTrace(c echo.Context) (*trsconv.TraceSet, int, []float64, error) {
	ts, err := s.open(c.Param("set"))
	if err != nil {
		glog.Errorf("Error opening trace-set: %v", err)
		return nil, 0, nil, c.String(http.StatusNotFound, "Unknown trace-set")
	}
	idx, err := strconv.Atoi(c.Param("trace"))
	if err != nil || idx < 0 || idx >= ts.Len() {
		ts.Close()
		return nil, 0, nil, c.String(http.StatusBadRequest, "Invalid trace")
	}
	samples, err := ts.Trace(idx)
	if err != nil {
		ts.Close()
		return nil, 0, nil, err
	}
	return ts, idx, samples, nil
}

func (s *Server) traceData(c echo.Context) error {
	ts, _, samples, err := s.loadTrace(c)
	if ts == nil {
		return err
	}
	defer ts.Close()
	return c.JSON(http.StatusOK, samples)
}

func (s *Server) traceChart(c echo.Context) error {
	ts, idx, samples, err := s.loadTrace(c)
	if ts == nil {
		return err
	}
	defer ts.Close()

	pt, err := ts.Input(idx)
	if err != nil {
		return err
	}
	x := make([]int, len(samples))
	data := make([]opts.LineData, len(samples))
	for i, v := range samples {
		x[i] = i
		data[i] = opts.LineData{Value: v}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: c.Param("set"), Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s trace %d", c.Param("set"), idx),
			Subtitle: fmt.Sprintf("pt=%s format=%s", hex.EncodeToString(pt), ts.Manifest.Format),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}, opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(x).AddSeries(fmt.Sprintf("trace %d", idx), data)

	var buf bytes.Buffer
	if err = line.Render(&buf); err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// Copyright 2016-2019 DutchSec (https://dutchsec.com/)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package web serves a read-only JSON status API for the attached devices.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dthkhang/adbrv/adb"
	"github.com/dthkhang/adbrv/device"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	logging "github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("adbrv:web")

// Lister enumerates the attached devices.
type Lister interface {
	Devices(ctx context.Context) ([]string, error)
}

// Collector builds the report of a single device.
type Collector interface {
	Collect(ctx context.Context, serial string) device.Report
}

type web struct {
	ListenAddress string
	Version       string

	devices Lister
	reports Collector

	engine *gin.Engine
}

// WithListen sets the address the API listens on.
func WithListen(addr string) func(*web) error {
	return func(w *web) error {
		if addr == "" {
			return errors.New("empty listen address")
		}

		w.ListenAddress = addr
		return nil
	}
}

// WithVersion sets the version reported by /api/v1/version.
func WithVersion(version string) func(*web) error {
	return func(w *web) error {
		w.Version = version
		return nil
	}
}

// New returns the API for the devices of l, reported through c.
func New(l Lister, c Collector, options ...func(*web) error) (*web, error) {
	hc := web{
		ListenAddress: "127.0.0.1:8089",

		devices: l,
		reports: c,
	}

	for _, optionFn := range options {
		if err := optionFn(&hc); err != nil {
			return nil, err
		}
	}

	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet},
		AllowHeaders:    []string{"Origin", "Content-Type"},
		MaxAge:          12 * time.Hour,
	}))

	api := engine.Group("/api/v1")
	api.GET("/devices", hc.listDevices)
	api.GET("/devices/:serial", hc.getDevice)
	api.GET("/version", hc.version)

	hc.engine = engine
	return &hc, nil
}

// Handler returns the http handler of the API.
func (web *web) Handler() http.Handler {
	return web.engine
}

// Serve listens until ctx is done.
func (web *web) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:    web.ListenAddress,
		Handler: web.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Web interface started: %s", web.ListenAddress)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrapf(err, "could not listen on %s", web.ListenAddress)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debugf("%s %s %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (web *web) listDevices(c *gin.Context) {
	ctx := c.Request.Context()

	serials, err := web.devices.Devices(ctx)
	if err != nil {
		renderError(c, http.StatusServiceUnavailable, err)
		return
	}

	reports := make([]device.Report, 0, len(serials))
	for _, serial := range serials {
		reports = append(reports, web.reports.Collect(ctx, serial))
	}

	renderList(c, reports, len(reports))
}

func (web *web) getDevice(c *gin.Context) {
	ctx := c.Request.Context()
	serial := c.Param("serial")

	serials, err := web.devices.Devices(ctx)
	if err != nil {
		renderError(c, http.StatusServiceUnavailable, err)
		return
	}

	if !device.Contains(serials, serial) {
		renderError(c, http.StatusNotFound, fmt.Errorf("device %s not found", serial))
		return
	}

	render(c, web.reports.Collect(ctx, serial))
}

func (web *web) version(c *gin.Context) {
	render(c, gin.H{"version": web.Version})
}

var _ Lister = (*adb.Client)(nil)
var _ Collector = (*device.Reporter)(nil)

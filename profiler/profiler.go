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

// Package profiler wraps pkg/profile for the --cpu-profile and
// --mem-profile flags.
package profiler

import (
	logging "github.com/op/go-logging"
	"github.com/pkg/profile"
)

var log = logging.MustGetLogger("adbrv:profiler")

type Profiler interface {
	Start()
	Stop()
}

func Dummy() *dummyProfiler {
	return &dummyProfiler{}
}

type dummyProfiler struct {
}

func (p *dummyProfiler) Start() {
}

func (p *dummyProfiler) Stop() {
}

// New returns a profiler writing its profile to dir.
func New(dir string, options ...func(*profile.Profile)) *profiler {
	return &profiler{
		options: append(options, profile.ProfilePath(dir), profile.NoShutdownHook, profile.Quiet),
	}
}

// CPU profiles the cpu into dir.
func CPU(dir string) *profiler {
	return New(dir, profile.CPUProfile)
}

// Memory profiles heap allocations into dir.
func Memory(dir string) *profiler {
	return New(dir, profile.MemProfile)
}

type profiler struct {
	p interface {
		Stop()
	}

	options []func(*profile.Profile)
}

func (p *profiler) Start() {
	p.p = profile.Start(p.options...)
	log.Info("Profiler started.")
}

// Stop writes the profile. Stopping a profiler that never started is a no-op.
func (p *profiler) Stop() {
	if p.p == nil {
		return
	}

	p.p.Stop()
	p.p = nil
	log.Info("Profiler stopped.")
}

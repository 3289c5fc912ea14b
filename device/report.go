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

package device

import (
	"context"
	"io"
	"strings"

	"github.com/dthkhang/adbrv/adb"
	"github.com/dthkhang/adbrv/ui"
	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("adbrv:device")

// Unknown is shown for every field that could not be read.
const Unknown = "?"

// Report is the state of a single device.
type Report struct {
	Serial  string            `json:"serial"`
	Model   string            `json:"model"`
	Android string            `json:"android"`
	Root    string            `json:"root"`
	Frida   string            `json:"frida"`
	Proxy   string            `json:"proxy"`
	Reverse []adb.ReverseItem `json:"reverse"`

	// ReverseKnown is false when the reverse list could not be read.
	ReverseKnown bool `json:"-"`
}

// ReverseString renders the reverse mappings for display.
func (r Report) ReverseString() string {
	if !r.ReverseKnown {
		return Unknown
	}

	if len(r.Reverse) == 0 {
		return "(none)"
	}

	items := make([]string, len(r.Reverse))
	for i, item := range r.Reverse {
		items[i] = item.String()
	}

	return strings.Join(items, ", ")
}

// FridaStatus reports whether frida-server runs on a device.
type FridaStatus interface {
	Status(ctx context.Context, serial string) (string, error)
}

// Reporter collects device reports. Every field is read independently; a
// failing read yields Unknown for that field only.
type Reporter struct {
	Client *adb.Client
	Frida  FridaStatus
}

// Collect reads the report of serial.
func (r *Reporter) Collect(ctx context.Context, serial string) Report {
	report := Report{
		Serial:  serial,
		Model:   r.prop(ctx, serial, "ro.product.model"),
		Android: r.prop(ctx, serial, "ro.build.version.release"),
		Root:    r.root(ctx, serial),
		Frida:   Unknown,
		Proxy:   Unknown,
	}

	if r.Frida != nil {
		if status, err := r.Frida.Status(ctx, serial); err != nil {
			log.Debugf("Could not read frida status of %s: %s", serial, err)
		} else {
			report.Frida = status
		}
	}

	if proxy, err := r.Client.GlobalSetting(ctx, serial, "http_proxy"); err != nil {
		log.Debugf("Could not read proxy of %s: %s", serial, err)
	} else {
		report.Proxy = proxy
	}

	if items, err := r.Client.ReverseList(ctx, serial); err != nil {
		log.Debugf("Could not read reverse list of %s: %s", serial, err)
	} else {
		report.Reverse = items
		report.ReverseKnown = true
	}

	return report
}

func (r *Reporter) prop(ctx context.Context, serial, name string) string {
	v, err := r.Client.Prop(ctx, serial, name)
	if err != nil || v == "" {
		log.Debugf("Could not read %s of %s: %v", name, serial, err)
		return Unknown
	}

	return v
}

// root reports Yes when su is on the device PATH. which exits non-zero when
// it finds nothing, so a failure reads as No.
func (r *Reporter) root(ctx context.Context, serial string) string {
	v, err := r.Client.Shell(ctx, serial, "which", "su")
	if err != nil || v == "" {
		return "No"
	}

	return "Yes"
}

// Print writes the report as a tree.
func Print(w io.Writer, report Report) {
	ui.Tree(w, "Device "+report.Serial, []ui.Field{
		{Label: "Model", Value: report.Model},
		{Label: "Android", Value: report.Android},
		{Label: "Root Access", Value: report.Root},
		{Label: "Frida", Value: report.Frida},
		{Label: "Proxy", Value: report.Proxy},
		{Label: "Reverse", Value: report.ReverseString()},
	})
}

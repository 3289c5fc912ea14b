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

// Package proxy points a device's global HTTP proxy at a host port through
// an adb reverse mapping.
package proxy

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dthkhang/adbrv/adb"
	"github.com/dthkhang/adbrv/event"
	"github.com/dthkhang/adbrv/ui"
	logging "github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("adbrv:proxy")

// ErrInvalidPort is returned for a port outside 1-65535.
var ErrInvalidPort = errors.New("Invalid port. Port must be an integer between 1 and 65535.")

// Hint is shown after a failed operation.
const Hint = "Device may have been disconnected during operation. Retry the command."

// ValidPort returns true for 1 <= port <= 65535.
func ValidPort(port int) bool {
	return port >= 1 && port <= 65535
}

// ParsePort parses a decimal port number.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || !ValidPort(port) {
		log.Debugf("Rejected port %q", s)
		return 0, ErrInvalidPort
	}

	return port, nil
}

// Emitter receives audit events.
type Emitter interface {
	Emit(opts ...event.Option)
}

// Controller sets and clears the device proxy. The two bridge calls of each
// operation are not transactional; a failure in the second leaves the first
// applied.
type Controller struct {
	Client *adb.Client
	Out    io.Writer
	Events Emitter
}

func (pc *Controller) emit(opts ...event.Option) {
	if pc.Events == nil {
		return
	}

	pc.Events.Emit(append([]event.Option{event.ProxyCategory}, opts...)...)
}

// Set maps device port devicePort to host port local and sets the device
// proxy to localhost:local.
func (pc *Controller) Set(ctx context.Context, serial string, local, devicePort int) error {
	if !ValidPort(local) || !ValidPort(devicePort) {
		return ErrInvalidPort
	}

	ui.Success(pc.Out, "Reversing tcp:%d -> tcp:%d", local, devicePort)

	if err := pc.Client.Reverse(ctx, serial, fmt.Sprintf("tcp:%d", local), fmt.Sprintf("tcp:%d", devicePort)); err != nil {
		return errors.Wrap(err, "Error setting proxy or reverse")
	}

	pc.emit(event.ReverseSet, event.Serial(serial), event.Custom("local-port", local), event.Custom("device-port", devicePort))

	ui.Success(pc.Out, "Setting proxy on device to localhost:%d", local)

	value := fmt.Sprintf("localhost:%d", local)
	if err := pc.Client.PutGlobalSetting(ctx, serial, "http_proxy", value); err != nil {
		log.Warningf("Reverse tcp:%d stays active on %s after the proxy failed", local, serial)
		return errors.Wrap(err, "Error setting proxy or reverse")
	}

	pc.emit(event.ProxySet, event.Serial(serial), event.Custom("proxy", value))
	return nil
}

// Unset clears the device proxy and removes every reverse mapping.
func (pc *Controller) Unset(ctx context.Context, serial string) error {
	ui.Success(pc.Out, "Unsetting proxy on device")

	if err := pc.Client.PutGlobalSetting(ctx, serial, "http_proxy", ":0"); err != nil {
		return errors.Wrap(err, "Error unsetting proxy or reverse")
	}

	pc.emit(event.ProxyCleared, event.Serial(serial))

	ui.Success(pc.Out, "Removing all reverse ports on device")

	if err := pc.Client.ReverseRemoveAll(ctx, serial); err != nil {
		return errors.Wrap(err, "Error unsetting proxy or reverse")
	}

	pc.emit(event.ReverseRemoved, event.Serial(serial))
	return nil
}

// UnsetAll clears every serial in order. A failing device does not stop the
// others; the failures are returned together.
func (pc *Controller) UnsetAll(ctx context.Context, serials []string) error {
	var failed []string

	for _, serial := range serials {
		if err := pc.Unset(ctx, serial); err != nil {
			ui.Error(pc.Out, "%s: %s", serial, err)
			failed = append(failed, serial)
		}
	}

	if len(failed) > 0 {
		return errors.Errorf("Unset failed on %d device(s): %s", len(failed), strings.Join(failed, ", "))
	}

	return nil
}

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

// Package device decides which attached device an operation targets and
// reports the state of a device.
package device

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoDevices is returned when no device is attached.
	ErrNoDevices = errors.New("No devices connected.")

	// ErrAmbiguous is returned when several devices are attached and none
	// was named.
	ErrAmbiguous = errors.New("Multiple devices connected. Please specify --device <serial>.")

	// ErrUnknownDevice is returned when the named device is not attached.
	ErrUnknownDevice = errors.New("device not found")
)

// NotFoundError names the serial that is not attached.
type NotFoundError struct {
	Serial string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Device %s not found.", e.Serial)
}

// Is makes NotFoundError match ErrUnknownDevice.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrUnknownDevice
}

// Contains returns true when serial is in devices.
func Contains(devices []string, serial string) bool {
	for _, d := range devices {
		if d == serial {
			return true
		}
	}

	return false
}

// Select returns the device an operation acts on. A named serial must be
// attached. Without one, exactly one device must be attached.
func Select(devices []string, serial string) (string, error) {
	if len(devices) == 0 {
		return "", ErrNoDevices
	}

	if serial != "" {
		if !Contains(devices, serial) {
			return "", &NotFoundError{Serial: serial}
		}

		return serial, nil
	}

	if len(devices) > 1 {
		return "", ErrAmbiguous
	}

	return devices[0], nil
}

// Targets returns the devices a fan-out operation acts on: the named serial,
// or every attached device.
func Targets(devices []string, serial string) ([]string, error) {
	if serial == "" {
		return devices, nil
	}

	if !Contains(devices, serial) {
		return nil, &NotFoundError{Serial: serial}
	}

	return []string{serial}, nil
}

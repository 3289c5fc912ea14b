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

// Package event defines the audit events emitted by the operations that
// change device or host state.
package event

import (
	"fmt"

	uuid "github.com/satori/go.uuid"
)

// Contains the event types emitted by adbrv.
var (
	ReverseSet     = Type("REVERSE:SET")
	ReverseRemoved = Type("REVERSE:REMOVED")
	ProxySet       = Type("PROXY:SET")
	ProxyCleared   = Type("PROXY:CLEARED")
	FridaStarted   = Type("FRIDA:STARTED")
	FridaKilled    = Type("FRIDA:KILLED")
	APKResigned    = Type("APK:RESIGNED")
	SelfUpdated    = Type("SELF:UPDATED")
)

// Contains the event categories.
var (
	ProxyCategory  = Category("proxy")
	FridaCategory  = Category("frida")
	APKCategory    = Category("apk")
	UpdateCategory = Category("update")
)

// Option defines a function type for events modifications.
type Option func(Event)

// Apply applies all options to the Event returning it after it's done.
func Apply(e Event, opts ...Option) Event {
	for _, option := range opts {
		option(e)
	}

	return e
}

// NewWith combines the set of option into a single option which
// applies all the series when called.
func NewWith(opts ...Option) Option {
	return func(e Event) {
		for _, option := range opts {
			option(e)
		}
	}
}

// Token adds the provided token into the giving Event.
func Token(token string) Option {
	return func(m Event) {
		m.Store("token", token)
	}
}

// ID sets a fresh unique id on the event.
func ID() Option {
	return func(m Event) {
		m.Store("id", uuid.NewV4().String())
	}
}

// Category returns an option for setting the category value.
func Category(s string) Option {
	return func(m Event) {
		m.Store("category", s)
	}
}

// Error returns an option for setting the error value.
func Error(err error) Option {
	return func(m Event) {
		if err == nil {
			return
		}

		m.Store("error", err.Error())
	}
}

// Type returns an option for setting the type value.
func Type(s string) Option {
	return func(m Event) {
		m.Store("type", s)
	}
}

// Serial returns an option for setting the device serial.
func Serial(s string) Option {
	return func(m Event) {
		if s == "" {
			return
		}

		m.Store("serial", s)
	}
}

// Message returns an option for setting the message value.
func Message(format string, a ...interface{}) Option {
	return func(m Event) {
		m.Store("message", fmt.Sprintf(format, a...))
	}
}

// Custom returns an option for setting the custom key-value pair.
func Custom(name string, value interface{}) Option {
	return func(m Event) {
		m.Store(name, value)
	}
}

// ToMap returns a map containing all available data which map
// a string key and value type.
func ToMap(ev Event) map[string]interface{} {
	mp := make(map[string]interface{})

	ev.Range(func(key, value interface{}) bool {
		if keyName, ok := key.(string); ok {
			mp[keyName] = value
		}
		return true
	})

	return mp
}

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

// Package pushers delivers audit events to the configured channels.
package pushers

import (
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dthkhang/adbrv/config"
	"github.com/dthkhang/adbrv/event"
	logging "github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("adbrv:channels")

// Channel defines a interface which exposes a single method for delivering
// events to a giving underline service.
type Channel interface {
	Send(event.Event)
}

// ChannelFunc creates a channel from the giving options.
type ChannelFunc func(...func(Channel) error) (Channel, error)

var channels = map[string]ChannelFunc{}

// Register adds the giving backend to the list of available backends.
func Register(key string, fn ChannelFunc) ChannelFunc {
	channels[key] = fn
	return fn
}

// Get returns the backend registered under key.
func Get(key string) (ChannelFunc, bool) {
	fn, ok := channels[key]
	return fn, ok
}

// Range calls fn with the name of every registered backend.
func Range(fn func(string)) {
	var keys []string
	for k := range channels {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		fn(k)
	}
}

// TomlDecoder decodes a primitive into v.
type TomlDecoder interface {
	PrimitiveDecode(primValue toml.Primitive, v interface{}) error
}

// WithConfig decodes the channel configuration into the channel.
func WithConfig(c toml.Primitive, decoder TomlDecoder) func(Channel) error {
	return func(d Channel) error {
		return decoder.PrimitiveDecode(c, d)
	}
}

// Bus fans events out to its subscribers.
type Bus interface {
	Subscribe(Channel) error
}

// FromConfig creates every [channel.<name>] of conf and subscribes it to bus.
// Events are stamped with token.
func FromConfig(conf *config.Config, token string, bus Bus) error {
	var names []string
	for name := range conf.Channels {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		p := conf.Channels[name]

		x := struct {
			Backend    string   `toml:"backend"`
			Categories []string `toml:"categories"`
			Types      []string `toml:"types"`
		}{}

		if err := conf.PrimitiveDecode(p, &x); err != nil {
			return errors.Wrapf(err, "could not parse channel %s", name)
		}

		if x.Backend == "" {
			return errors.Errorf("channel %s: backend not set", name)
		}

		for _, expr := range append(x.Categories, x.Types...) {
			if _, err := regexp.Compile(expr); err != nil {
				return errors.Wrapf(err, "channel %s: invalid filter", name)
			}
		}

		fn, ok := Get(x.Backend)
		if !ok {
			var available []string
			Range(func(k string) {
				available = append(available, k)
			})

			return errors.Errorf("channel %s: backend %q not supported (available: %s)", name, x.Backend, strings.Join(available, ", "))
		}

		c, err := fn(WithConfig(p, conf))
		if err != nil {
			return errors.Wrapf(err, "could not initialize channel %s", name)
		}

		log.Debugf("Initialized channel %s (%s)", name, x.Backend)

		if len(x.Categories) != 0 {
			c = FilterChannel(c, RegexFilterFunc("category", x.Categories))
		}

		if len(x.Types) != 0 {
			c = FilterChannel(c, RegexFilterFunc("type", x.Types))
		}

		if err := bus.Subscribe(TokenChannel(c, token)); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the channel when it holds resources.
func Close(c Channel) error {
	if closer, ok := c.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

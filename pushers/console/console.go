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

package console

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dthkhang/adbrv/event"
	"github.com/dthkhang/adbrv/pushers"
)

var (
	_ = pushers.Register("console", New)
)

// New returns a new instance of a Console writing to stderr.
func New(options ...func(pushers.Channel) error) (pushers.Channel, error) {
	c := Console{
		Writer: os.Stderr,
	}

	for _, optionFn := range options {
		if err := optionFn(&c); err != nil {
			return nil, err
		}
	}

	return &c, nil
}

// WithWriter sets the destination of the console.
func WithWriter(w io.Writer) func(pushers.Channel) error {
	return func(c pushers.Channel) error {
		c.(*Console).Writer = w
		return nil
	}
}

// Console provides a backend for outputing event details directly to
// the current console.
type Console struct {
	io.Writer `toml:"-"`

	m sync.Mutex
}

func printify(s string) string {
	o := ""
	for _, rune := range s {
		if !unicode.IsPrint(rune) {
			buf := make([]byte, 4)

			n := utf8.EncodeRune(buf, rune)
			o += fmt.Sprintf("\\x%s", hex.EncodeToString(buf[:n]))
			continue
		}

		o += string(rune)
	}

	return o
}

// Send writes the event as a single category > type > key=value line.
func (b *Console) Send(e event.Event) {
	var params []string

	for k, v := range event.ToMap(e) {
		if k == "category" || k == "type" {
			continue
		}

		switch x := v.(type) {
		case uint32, uint16, uint8, uint,
			int32, int16, int8, int, int64:
			params = append(params, fmt.Sprintf("%s=%d", k, v))
		case time.Time:
			params = append(params, fmt.Sprintf("%s=%s", k, x.Format(time.RFC3339)))
		case string:
			params = append(params, fmt.Sprintf("%s=%s", k, printify(x)))
		default:
			params = append(params, fmt.Sprintf("%s=%#v", k, v))
		}
	}

	sort.Strings(params)

	b.m.Lock()
	defer b.m.Unlock()

	fmt.Fprintf(b.Writer, "%s > %s > %s\n", e.Get("category"), e.Get("type"), strings.Join(params, ", "))
}

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

// Package file writes audit events as JSON lines into a size-rotated file.
package file

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/dthkhang/adbrv/config"
	"github.com/dthkhang/adbrv/event"
	"github.com/dthkhang/adbrv/pushers"
	jsoniter "github.com/json-iterator/go"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	_ = pushers.Register("file", New)
)

var (
	defaultMaxSize = int64(10 * 1024 * 1024)

	log = logging.MustGetLogger("adbrv:channels:file")

	json = jsoniter.ConfigCompatibleWithStandardLibrary
)

// New returns a new instance of a FileBackend.
func New(options ...func(pushers.Channel) error) (pushers.Channel, error) {
	fc := FileBackend{
		FileConfig: FileConfig{
			MaxSize: defaultMaxSize,
			Mode:    os.FileMode(0600),
		},
	}

	for _, optionFn := range options {
		if err := optionFn(&fc); err != nil {
			return nil, err
		}
	}

	if fc.File == "" {
		return nil, errors.New("File channel: filename not set")
	}

	if fc.MaxSize < 1024 {
		return nil, errors.New("File channel: minimal max size is 1024")
	}

	p, err := config.Expand(fc.File)
	if err != nil {
		return nil, err
	}

	if p, err = filepath.Abs(p); err != nil {
		return nil, err
	}

	fc.File = p

	if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
		return nil, errors.Wrap(err, "File channel: could not create directory")
	}

	dest, err := openLineFile(fc.File, fc.Mode, fc.MaxSize)
	if err != nil {
		return nil, errors.Wrap(err, "File channel: could not open file")
	}

	fc.dest = dest
	return &fc, nil
}

// WithPath sets the file events are written to.
func WithPath(path string) func(pushers.Channel) error {
	return func(c pushers.Channel) error {
		c.(*FileBackend).File = path
		return nil
	}
}

// WithMaxSize sets the size after which the file is rotated.
func WithMaxSize(maxSize int64) func(pushers.Channel) error {
	return func(c pushers.Channel) error {
		c.(*FileBackend).MaxSize = maxSize
		return nil
	}
}

// FileConfig defines the config used to setup the FileBackend.
type FileConfig struct {
	MaxSize int64       `toml:"maxsize"`
	File    string      `toml:"filename"`
	Mode    os.FileMode `toml:"mode"`
}

// FileBackend writes every event as one JSON line. When the next line would
// exceed MaxSize the file is renamed with the current timestamp and a new file
// created.
type FileBackend struct {
	FileConfig

	m    sync.Mutex
	dest *lineFile
}

// Send encodes the event and appends it to the file.
func (f *FileBackend) Send(e event.Event) {
	data, err := json.Marshal(event.ToMap(e))
	if err != nil {
		log.Errorf("Failed to marshal event to JSON : %+q", err)
		return
	}

	f.m.Lock()
	defer f.m.Unlock()

	if f.dest == nil {
		return
	}

	if err := f.dest.WriteLine(data); err != nil {
		log.Errorf("Failed to write event to File : %+q", err)
	}
}

// Close syncs and closes the file.
func (f *FileBackend) Close() error {
	f.m.Lock()
	defer f.m.Unlock()

	if f.dest == nil {
		return nil
	}

	if err := f.dest.Sync(); err != nil {
		log.Errorf("Failed to sync File : %+q", err)
	}

	err := f.dest.Close()
	f.dest = nil
	return err
}

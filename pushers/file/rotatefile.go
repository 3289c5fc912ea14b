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
package file

import (
	"fmt"
	"os"
	"time"
)

// lineFile appends whole lines to path. Before a line would push the file
// past maxSize the file is renamed aside and a new one started, so a line
// never spans two files. A line longer than maxSize gets a file of its own.
type lineFile struct {
	f *os.File

	path    string
	mode    os.FileMode
	size    int64
	maxSize int64
}

func openLineFile(path string, mode os.FileMode, maxSize int64) (*lineFile, error) {
	lf := &lineFile{
		path:    path,
		mode:    mode,
		maxSize: maxSize,
	}

	if err := lf.open(); err != nil {
		return nil, err
	}

	if lf.size >= maxSize {
		return lf, lf.rotate()
	}

	return lf, nil
}

func (lf *lineFile) open() error {
	f, err := os.OpenFile(lf.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, lf.mode)
	if err != nil {
		return err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	lf.f = f
	lf.size = fi.Size()
	return nil
}

// rotated returns a free name for the current file. Several rotations within
// one second get a counter.
func (lf *lineFile) rotated() string {
	name := fmt.Sprintf("%s.%s", lf.path, time.Now().Format("20060102150405"))

	candidate := name
	for i := 1; ; i++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}

		candidate = fmt.Sprintf("%s.%d", name, i)
	}
}

func (lf *lineFile) rotate() error {
	lf.f.Sync()
	lf.f.Close()

	if err := os.Rename(lf.path, lf.rotated()); err != nil {
		return err
	}

	return lf.open()
}

// WriteLine appends line followed by a newline.
func (lf *lineFile) WriteLine(line []byte) error {
	// the file was removed underneath us
	if _, err := os.Stat(lf.path); err != nil {
		lf.f.Close()

		if err := lf.open(); err != nil {
			return err
		}
	}

	n := int64(len(line)) + 1
	if lf.size > 0 && lf.size+n > lf.maxSize {
		if err := lf.rotate(); err != nil {
			return err
		}
	}

	written, err := lf.f.Write(append(line, '\n'))
	lf.size += int64(written)
	return err
}

func (lf *lineFile) Sync() error {
	return lf.f.Sync()
}

func (lf *lineFile) Close() error {
	return lf.f.Close()
}

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

package utils

import (
	"runtime"

	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("adbrv:utils")

// RecoverHandler calls fn within a protective recover() and returns its exit
// status, or 1 when fn panicked.
func RecoverHandler(fn func() int) (code int) {
	defer func() {
		if err := recover(); err != nil {
			trace := make([]byte, 1024)
			count := runtime.Stack(trace, true)
			log.Errorf("Error: %s", err)
			log.Debugf("Stack of %d bytes: %s\n", count, string(trace))
			code = 1
		}
	}()

	return fn()
}

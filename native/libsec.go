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

package native

import (
	"context"
	"fmt"
	"strings"

	"github.com/dthkhang/adbrv/config"
	"github.com/dthkhang/adbrv/process"
	"github.com/pkg/errors"
)

// MASTG test identifiers of the library checks.
const (
	TestPIE    = "MASTG-TEST-0222"
	TestCanary = "MASTG-TEST-0223"
	TestDebug  = "MASTG-TEST-0288"
)

// LibReport holds the hardening checks of one library.
type LibReport struct {
	File   string  `json:"file"`
	Checks []Check `json:"checks"`
}

// ClassifyPIE inspects readelf -h output.
func ClassifyPIE(out string) Check {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "Type:") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}

		switch typ := fields[1]; typ {
		case "DYN":
			return Check{TestPIE, Pass, "PIE/PIC enabled - Type: DYN"}
		case "EXEC":
			return Check{TestPIE, Fail, "PIE/PIC not enabled - Type: EXEC"}
		default:
			return Check{TestPIE, Warn, fmt.Sprintf("Unknown type (%s)", typ)}
		}
	}

	return Check{TestPIE, Error, "Cannot determine type"}
}

// ClassifyCanary inspects strings output.
func ClassifyCanary(out string) Check {
	if strings.Contains(out, "__stack_chk_fail") {
		return Check{TestCanary, Pass, "Stack Canary detected"}
	}

	return Check{TestCanary, Fail, "Stack Canaries Not Enabled"}
}

// ClassifyDebug inspects readelf -S output.
func ClassifyDebug(out string) Check {
	if strings.Contains(out, ".debug") {
		return Check{TestDebug, Fail, "Debugging symbols present"}
	}

	return Check{TestDebug, Pass, "No debugging symbols"}
}

type libCheck struct {
	test     string
	tool     func(config.Tools) string
	args     func(file string) []string
	readErr  string
	classify func(string) Check
}

var libChecks = []libCheck{
	{
		test:     TestPIE,
		tool:     func(t config.Tools) string { return t.ReadElf },
		args:     func(file string) []string { return []string{"-h", file} },
		readErr:  "Cannot read ELF header",
		classify: ClassifyPIE,
	},
	{
		test:     TestCanary,
		tool:     func(t config.Tools) string { return t.Strings },
		args:     func(file string) []string { return []string{file} },
		readErr:  "Cannot read strings",
		classify: ClassifyCanary,
	},
	{
		test:     TestDebug,
		tool:     func(t config.Tools) string { return t.ReadElf },
		args:     func(file string) []string { return []string{"-S", file} },
		readErr:  "Cannot read sections",
		classify: ClassifyDebug,
	},
}

// LibSecurity runs the hardening checks against every .so below dir.
func (i *Inspector) LibSecurity(ctx context.Context, dir string) ([]LibReport, error) {
	stdout, _, err := i.capture(ctx, i.Tools.Find, dir, "-name", "*.so")
	if process.IsNotFound(err) {
		return nil, errors.Errorf("'%s' command not found. Please ensure you're on a Unix-like system.", i.Tools.Find)
	} else if err != nil {
		return nil, errors.Wrap(err, "Error finding .so files")
	}

	var files []string
	for _, line := range strings.Split(stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}

	if len(files) == 0 {
		return nil, errors.New("No .so files found in current directory")
	}

	reports := make([]LibReport, 0, len(files))
	for _, file := range files {
		report := LibReport{File: file}

		fmt.Fprintf(i.Out, "%s:\n", file)

		for _, lc := range libChecks {
			check := i.runCheck(ctx, lc, file)
			report.Checks = append(report.Checks, check)

			fmt.Fprintf(i.Out, "   %s\n", check.Colored())
		}

		fmt.Fprintln(i.Out)

		reports = append(reports, report)
	}

	return reports, nil
}

func (i *Inspector) runCheck(ctx context.Context, lc libCheck, file string) Check {
	name := lc.tool(i.Tools)

	stdout, _, err := i.capture(ctx, name, lc.args(file)...)
	if process.IsNotFound(err) {
		return Check{lc.test, Error, fmt.Sprintf("%s not found", name)}
	} else if err != nil {
		log.Debugf("%s %s: %s", name, file, err)
		return Check{lc.test, Error, lc.readErr}
	}

	return lc.classify(stdout)
}

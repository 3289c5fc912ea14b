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
	"os"
	"path/filepath"
	"strings"

	"github.com/dthkhang/adbrv/process"
	"github.com/dthkhang/adbrv/ui"
	"github.com/pkg/errors"
)

// maxExamples bounds the symbols printed per table.
const maxExamples = 5

// SymbolReport is the symbol summary of one library.
type SymbolReport struct {
	File     string   `json:"file"`
	Internal []string `json:"internal"`
	Exported []string `json:"exported"`
	Err      string   `json:"error,omitempty"`
}

// Stripped returns true when the library carries no internal symbols.
func (r SymbolReport) Stripped() bool {
	return len(r.Internal) == 0
}

// FilterSymbols drops the file headers and "no symbols" notices from nm
// output.
func FilterSymbols(out string) []string {
	var symbols []string

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if strings.Contains(line, "no symbols") || strings.HasSuffix(line, ":") {
			continue
		}

		symbols = append(symbols, line)
	}

	return symbols
}

// ScanDir returns the ABI directory to scan below <base>/lib. With several
// ABIs the Chooser decides.
func (i *Inspector) ScanDir(base string) (string, error) {
	libDir := filepath.Join(base, "lib")
	if !isDir(libDir) {
		return "", errors.Errorf("lib directory not found: %s", libDir)
	}

	abis, err := listDir(libDir, func(entry os.DirEntry) bool {
		return entry.IsDir()
	})
	if err != nil {
		return "", errors.Wrapf(err, "could not read %s", libDir)
	}

	if len(abis) == 0 {
		return "", errors.Errorf("No ABI folders found in %s", libDir)
	}

	abi := abis[0]
	if len(abis) == 1 {
		ui.Info(i.Out, "Only one ABI folder found: %s", abi)
	} else {
		ui.Info(i.Out, "Found ABI folders:")

		idx, err := i.Chooser.Choose("Select ABI folder to scan", abis)
		if err != nil {
			return "", errors.Wrap(err, "could not select ABI folder")
		}

		abi = abis[idx]
	}

	return filepath.Join(libDir, abi), nil
}

// CheckSymbols reports the internal and exported symbols of every library of
// the chosen ABI below <base>/lib.
func (i *Inspector) CheckSymbols(ctx context.Context, base string) ([]SymbolReport, error) {
	scanDir, err := i.ScanDir(base)
	if err != nil {
		return nil, err
	}

	files, err := listDir(scanDir, hasExt(".so"))
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", scanDir)
	}

	if len(files) == 0 {
		return nil, errors.Errorf("No .so files found in %s", scanDir)
	}

	ui.Info(i.Out, "Scanning .so files in: %s", scanDir)
	ui.Separator(i.Out)

	reports := make([]SymbolReport, 0, len(files))
	for _, name := range files {
		report := i.symbols(ctx, filepath.Join(scanDir, name))
		report.File = name

		i.printSymbols(report)
		ui.Separator(i.Out)

		reports = append(reports, report)
	}

	return reports, nil
}

func (i *Inspector) symbols(ctx context.Context, path string) SymbolReport {
	report := SymbolReport{}

	for _, table := range []struct {
		flag string
		dest *[]string
	}{
		{"-a", &report.Internal},
		{"-D", &report.Exported},
	} {
		// nm exits non-zero on stripped tables while still printing what it found
		stdout, _, err := i.capture(ctx, i.Tools.NM, table.flag, path)
		if process.IsNotFound(err) {
			report.Err = fmt.Sprintf("nm not found at %s", i.Tools.NM)
			return report
		} else if err != nil {
			log.Debugf("nm %s %s: %s", table.flag, path, err)
		}

		*table.dest = FilterSymbols(stdout)
	}

	return report
}

func (i *Inspector) printSymbols(report SymbolReport) {
	ui.Colored(i.Out, ui.Blue, "%s", report.File)

	if report.Err != "" {
		ui.Colored(i.Out, ui.Red, "[ERROR] %s", report.Err)
		return
	}

	if report.Stripped() {
		fmt.Fprintln(i.Out, "[STRIPPED -a] No internal/debug symbols found.")
	} else {
		fmt.Fprintln(i.Out, "[FOUND SYMBOLS -a] Internal/debug symbols may exist. Example:")
		fmt.Fprintln(i.Out, strings.Join(head(report.Internal, maxExamples), "\n"))
	}

	if len(report.Exported) == 0 {
		fmt.Fprintln(i.Out, "[No Exported JNI Symbols -D] No dynamic (JNI/API) symbols found.")
	} else {
		fmt.Fprintln(i.Out, "[Exported Symbols -D] JNI/public symbols:")
		fmt.Fprintln(i.Out, strings.Join(head(report.Exported, maxExamples), "\n"))
	}
}

func head(lines []string, n int) []string {
	if len(lines) > n {
		return lines[:n]
	}

	return lines
}

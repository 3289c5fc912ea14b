// Package tests contains the log helpers shared by the package tests.
package tests

import (
	"fmt"
	"log"
	"os"
	"testing"
)

// succeedMark is the Unicode codepoint for a check mark.
const succeedMark = "✓"

// failedMark is the Unicode codepoint for an X mark.
const failedMark = "✗"

var logger = log.New(os.Stdout, "", log.Lshortfile)

// Info logs the info message using the giving message and values.
func Info(message string, val ...interface{}) {
	if testing.Verbose() {
		logger.Output(2, fmt.Sprintf("\t-\t %s\n", fmt.Sprintf(message, val...)))
	}
}

// Passed logs the success message using the giving message and values.
func Passed(message string, val ...interface{}) {
	if testing.Verbose() {
		logger.Output(2, fmt.Sprintf("\t%s\t %s\n", succeedMark, fmt.Sprintf(message, val...)))
	}
}

// Failed logs the failure message and stops the running test.
func Failed(t testing.TB, message string, val ...interface{}) {
	t.Helper()
	t.Fatalf("\t%s\t %s", failedMark, fmt.Sprintf(message, val...))
}

// Errored logs the error message and marks the running test as failed.
func Errored(t testing.TB, message string, val ...interface{}) {
	t.Helper()
	t.Errorf("\t%s\t %s", failedMark, fmt.Sprintf(message, val...))
}

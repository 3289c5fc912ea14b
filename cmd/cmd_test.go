package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dthkhang/adbrv/config"
	"github.com/dthkhang/adbrv/process"
	"github.com/dthkhang/adbrv/process/processtest"
	"github.com/dthkhang/adbrv/prompt"
	"github.com/dthkhang/adbrv/ui"
	"github.com/dthkhang/adbrv/update"
	"github.com/dthkhang/adbrv/utils/tests"
)

func init() {
	ui.SetColor(false)
}

type harness struct {
	runner *processtest.Runner
	out    bytes.Buffer
	errOut bytes.Buffer
	code   int
}

func conf() *config.Config {
	c := config.Default()
	c.Frida.StartTimeout = config.Delay(time.Second)
	c.Frida.Settle = config.Delay(0)
	return c
}

func run(r *processtest.Runner, answers string, args ...string) *harness {
	h := &harness{runner: r}

	c := New(
		WithRunner(r),
		WithConfig(conf()),
		WithOutput(&h.out, &h.errOut),
		WithInput(strings.NewReader("")),
		WithChooser(prompt.New(strings.NewReader(answers), &h.out)),
		WithExecutable("/opt/adbrv/adbrv"),
	)

	h.code = c.Execute(append([]string{"adbrv"}, args...))
	return h
}

const (
	oneDevice  = "List of devices attached\nS1\tdevice\n"
	twoDevices = "List of devices attached\nS1\tdevice\nS2\tdevice\n"
	noDevices  = "List of devices attached\n\n"

	psHeader  = "USER PID PPID VSZ RSS WCHAN ADDR S NAME\n"
	psRunning = psHeader + "root 4242 1 100 10 0 0 S frida-server-16.1.4\n"
	psTwo     = psRunning + "root 4343 1 100 10 0 0 S frida-server-16.1.4\n"
	psIdle    = psHeader + "root 1 0 100 10 0 0 S init\n"
)

func TestVersion(t *testing.T) {
	for _, args := range [][]string{{"version"}, {"--version"}} {
		h := run(processtest.New(), "", args...)
		if h.code != 0 || h.out.String() != "adbrv version "+Version+"\n" {
			tests.Failed(t, "%v should have printed the version, got %d %q.", args, h.code, h.out.String())
		}
	}

	if versionMarker != update.Marker(Version) {
		tests.Failed(t, "Should have embedded the update marker, got %s.", versionMarker)
	}
	tests.Passed("Should have printed the version.")
}

func TestInvalidArguments(t *testing.T) {
	for _, args := range [][]string{{}, {"--bogus-command"}, {"bogus"}, {"set", "8083"}} {
		h := run(processtest.New(), "", args...)
		if h.code != 1 {
			tests.Failed(t, "%v should have exited 1, got %d.", args, h.code)
		}

		if !strings.Contains(h.errOut.String(), "[!] Invalid arguments.") && !strings.Contains(h.errOut.String(), "[!] flag provided but not defined") {
			tests.Failed(t, "%v should have reported invalid arguments, got %q.", args, h.errOut.String())
		}

		if len(h.runner.Calls()) != 0 {
			tests.Failed(t, "%v should not have run anything, got %v.", args, h.runner.Calls())
		}
	}
	tests.Passed("Should have rejected invalid arguments.")
}

func TestHelp(t *testing.T) {
	h := run(processtest.New(), "", "--help")
	if h.code != 0 || !strings.Contains(h.out.String(), "EXAMPLES:") {
		tests.Failed(t, "Should have printed the help, got %d %q.", h.code, h.out.String())
	}
	tests.Passed("Should have printed the help.")
}

func TestSet(t *testing.T) {
	r := processtest.New().On("adb devices", processtest.Out(oneDevice))

	h := run(r, "", "--set", "8083", "8084")
	if h.code != 0 {
		tests.Failed(t, "Should have succeeded, got %d: %s", h.code, h.errOut.String())
	}

	for _, call := range []string{
		"adb -s S1 reverse tcp:8083 tcp:8084",
		"adb -s S1 shell settings put global http_proxy localhost:8083",
	} {
		if !r.Called(call) {
			tests.Failed(t, "Should have run %q, got %v.", call, r.Calls())
		}
	}
	tests.Passed("Should have set the proxy.")
}

func TestSetInvalidPort(t *testing.T) {
	for _, port := range []string{"0", "65536", "abc", "-1"} {
		r := processtest.New().On("adb devices", processtest.Out(oneDevice))

		h := run(r, "", "set", port, "8083")
		if h.code != 1 || !strings.Contains(h.errOut.String(), "[!] Invalid port. Port must be an integer between 1 and 65535.") {
			tests.Failed(t, "Port %s should have been rejected, got %d %q.", port, h.code, h.errOut.String())
		}

		if len(r.Calls()) != 0 {
			tests.Failed(t, "Port %s should not have reached adb, got %v.", port, r.Calls())
		}
	}
	tests.Passed("Should have validated the ports first.")
}

func TestSetDeviceSelection(t *testing.T) {
	h := run(processtest.New().On("adb devices", processtest.Out(twoDevices)), "", "set", "8083", "8083")
	if h.code != 1 || !strings.Contains(h.errOut.String(), "Multiple devices connected. Please specify --device <serial>.") {
		tests.Failed(t, "Should have refused to guess, got %d %q.", h.code, h.errOut.String())
	}

	h = run(processtest.New().On("adb devices", processtest.Out(twoDevices)), "", "set", "8083", "8083", "--device", "S3")
	if h.code != 1 || !strings.Contains(h.errOut.String(), "Device S3 not found.") {
		tests.Failed(t, "Should have rejected an unknown device, got %d %q.", h.code, h.errOut.String())
	}

	h = run(processtest.New().On("adb devices", processtest.Out(noDevices)), "", "set", "8083", "8083")
	if h.code != 1 || !strings.Contains(h.errOut.String(), "No devices connected.") {
		tests.Failed(t, "Should have failed without devices, got %d %q.", h.code, h.errOut.String())
	}

	if h.runner.CalledPrefix("adb -s") {
		tests.Failed(t, "Should not have run device commands without devices, got %v.", h.runner.Calls())
	}

	r := processtest.New().On("adb devices", processtest.Out(twoDevices))
	h = run(r, "", "set", "8083", "8083", "-d", "S2")
	if h.code != 0 || !r.Called("adb -s S2 reverse tcp:8083 tcp:8083") {
		tests.Failed(t, "Should have targeted S2, got %d %v.", h.code, r.Calls())
	}
	tests.Passed("Should have applied the device selection policy.")
}

func TestSetFailure(t *testing.T) {
	r := processtest.New().
		On("adb devices", processtest.Out(oneDevice)).
		On("adb -s S1 reverse tcp:8083 tcp:8083", processtest.Fail(1, "error: device offline\n"))

	h := run(r, "", "set", "8083", "8083")
	if h.code != 1 {
		tests.Failed(t, "Should have failed, got %d.", h.code)
	}

	if !strings.Contains(h.errOut.String(), "Error setting proxy or reverse") || !strings.Contains(h.errOut.String(), "Device may have been disconnected during operation.") {
		tests.Failed(t, "Should have reported the failure with a hint, got %q.", h.errOut.String())
	}

	if r.CalledPrefix("adb -s S1 shell settings put") {
		tests.Failed(t, "Should not have set the proxy after the reverse failed.")
	}
	tests.Passed("Should have stopped at the failed reverse.")
}

func TestUnsetAll(t *testing.T) {
	r := processtest.New().
		On("adb devices", processtest.Out(twoDevices)).
		On("adb -s S1 shell settings put global http_proxy :0", processtest.Fail(1, "error: device offline\n"))

	h := run(r, "", "--unset")
	if h.code != 1 {
		tests.Failed(t, "Should have exited 1 after a failed device, got %d.", h.code)
	}

	for _, call := range []string{
		"adb -s S2 shell settings put global http_proxy :0",
		"adb -s S2 reverse --remove-all",
	} {
		if !r.Called(call) {
			tests.Failed(t, "Should have continued with S2, missing %q in %v.", call, r.Calls())
		}
	}
	tests.Passed("Should have unset every device.")
}

func TestUnsetNoDevices(t *testing.T) {
	h := run(processtest.New().On("adb devices", processtest.Out(noDevices)), "", "unset")
	if h.code != 1 || !strings.Contains(h.errOut.String(), "[!] No devices connected.") {
		tests.Failed(t, "Should have failed without devices, got %d %q.", h.code, h.errOut.String())
	}
	tests.Passed("Should have failed without devices.")
}

func statusRunner(devices string) *processtest.Runner {
	return processtest.New().
		On("adb devices", processtest.Out(devices)).
		On("adb -s S1 shell getprop ro.product.model", processtest.Out("Pixel 7\n")).
		On("adb -s S1 shell getprop ro.build.version.release", processtest.Out("14\n")).
		On("adb -s S1 shell which su", processtest.Out("/system/xbin/su\n")).
		On("adb -s S1 shell ps -A", processtest.Out(psRunning)).
		On("adb -s S1 shell settings get global http_proxy", processtest.Out("localhost:8083\n")).
		On("adb -s S1 reverse --list", processtest.Out("UsbFfs tcp:8083 tcp:8083\n"))
}

func TestStatus(t *testing.T) {
	h := run(statusRunner(oneDevice), "", "status")

	expected := strings.Join([]string{
		"Device S1",
		"├── Model       : Pixel 7",
		"├── Android     : 14",
		"├── Root Access : Yes",
		"├── Frida       : On (root - PID: 4242)",
		"├── Proxy       : localhost:8083",
		"└── Reverse     : tcp:8083 tcp:8083",
		"",
	}, "\n")

	if h.code != 0 || h.out.String() != expected {
		tests.Failed(t, "Should have printed the report:\n%s\ngot %d:\n%s", expected, h.code, h.out.String())
	}
	tests.Passed("Should have printed the status.")
}

func TestStatusJSON(t *testing.T) {
	h := run(statusRunner(oneDevice), "", "status", "--json")
	if h.code != 0 {
		tests.Failed(t, "Should have succeeded, got %d.", h.code)
	}

	var reports []map[string]interface{}
	if err := json.Unmarshal(h.out.Bytes(), &reports); err != nil {
		tests.Failed(t, "Should have printed JSON, got %q: %v", h.out.String(), err)
	}

	if len(reports) != 1 || reports[0]["serial"] != "S1" || reports[0]["root"] != "Yes" {
		tests.Failed(t, "Should have reported S1, got %v.", reports)
	}
	tests.Passed("Should have printed the status as JSON.")
}

func TestStatusNoDevices(t *testing.T) {
	h := run(processtest.New().On("adb devices", processtest.Out(noDevices)), "", "status")
	if h.code != 0 || h.out.String() != "[!] No devices connected.\n" {
		tests.Failed(t, "Should have reported no devices, got %d %q.", h.code, h.out.String())
	}

	h = run(processtest.New().On("adb devices", processtest.Out(oneDevice)), "", "status", "--device", "S9")
	if h.code != 1 || !strings.Contains(h.errOut.String(), "Device S9 not found.") {
		tests.Failed(t, "Should have rejected an unknown device, got %d %q.", h.code, h.errOut.String())
	}
	tests.Passed("Should have handled missing devices.")
}

const fakeADB = `#!/bin/sh
case "$*" in
devices) printf 'List of devices attached\nS1\tdevice\n' ;;
"-s S1 shell which su") exit 1 ;;
"-s S1 shell getprop ro.product.model") echo Pixel ;;
"-s S1 shell getprop ro.build.version.release") echo 14 ;;
*) exit 0 ;;
esac
`

func TestStatusWithoutRootKeepsStderrQuiet(t *testing.T) {
	script := filepath.Join(t.TempDir(), "adb")
	if err := os.WriteFile(script, []byte(fakeADB), 0755); err != nil {
		t.Fatal(err)
	}

	c := conf()
	c.Tools.ADB = script

	rd, wr, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}

	stderr := os.Stderr
	os.Stderr = wr

	logged := make(chan string)
	go func() {
		b, _ := io.ReadAll(rd)
		logged <- string(b)
	}()

	var out, errOut bytes.Buffer
	code := New(
		WithRunner(process.Local),
		WithConfig(c),
		WithOutput(&out, &errOut),
		WithInput(strings.NewReader("")),
		WithExecutable("/opt/adbrv/adbrv"),
	).Execute([]string{"adbrv", "status"})

	os.Stderr = stderr
	wr.Close()

	if s := <-logged; s != "" {
		tests.Failed(t, "Should not have logged to stderr, got %q.", s)
	}

	if code != 0 || !strings.Contains(out.String(), "Root Access : No") {
		tests.Failed(t, "Should have reported a device without root, got %d %q.", code, out.String())
	}
	tests.Passed("Should have reported a device without root quietly.")
}

func TestFridaMode(t *testing.T) {
	r := processtest.New()

	h := run(r, "", "--frida")
	if h.code != 0 || !strings.Contains(h.out.String(), "frida") {
		tests.Failed(t, "Should have shown the frida help, got %d %q.", h.code, h.out.String())
	}

	h = run(r, "", "frida", "restart")
	if h.code != 0 {
		tests.Failed(t, "Should have shown the frida help, got %d.", h.code)
	}

	if r.Called("adb devices") {
		tests.Failed(t, "Should not have queried devices for an unknown mode.")
	}
	tests.Passed("Should have shown the help for unknown modes.")
}

func TestFridaOn(t *testing.T) {
	r := processtest.New().
		On("adb devices", processtest.Out(oneDevice)).
		On("adb -s S1 shell ls /data/local/tmp/frida-server*", processtest.Out("/data/local/tmp/frida-server-16.1.4\n")).
		On("adb -s S1 shell ps -A", processtest.Out(psIdle), processtest.Out(psRunning))

	h := run(r, "", "frida", "on")
	if h.code != 0 || !strings.Contains(h.out.String(), "[+] Frida Server Start Success!!") {
		tests.Failed(t, "Should have started frida-server, got %d %q %q.", h.code, h.out.String(), h.errOut.String())
	}

	if !r.Called("adb -s S1 shell su -c '/data/local/tmp/frida-server-16.1.4 &'") {
		tests.Failed(t, "Should have launched the server as root, got %v.", r.Calls())
	}
	tests.Passed("Should have started frida-server.")
}

func TestFridaOnNotFound(t *testing.T) {
	r := processtest.New().
		On("adb devices", processtest.Out(oneDevice)).
		On("adb -s S1 shell ls /data/local/tmp/frida-server*", processtest.Fail(1, "No such file or directory\n"))

	h := run(r, "", "frida", "on")
	if h.code != 1 || !strings.Contains(h.out.String(), "Frida Server Not Found!!") {
		tests.Failed(t, "Should have reported a missing server, got %d %q.", h.code, h.out.String())
	}
	tests.Passed("Should have failed without a frida-server binary.")
}

func TestFridaKill(t *testing.T) {
	r := processtest.New().
		On("adb devices", processtest.Out(oneDevice)).
		On("adb -s S1 shell ps -A", processtest.Out(psTwo), processtest.Out(psIdle))

	h := run(r, "y\n", "frida", "kill")
	if h.code != 0 {
		tests.Failed(t, "Should have succeeded, got %d: %s", h.code, h.errOut.String())
	}

	for _, call := range []string{
		"adb -s S1 shell su -c 'kill -9 4242'",
		"adb -s S1 shell su -c 'kill -9 4343'",
	} {
		if !r.Called(call) {
			tests.Failed(t, "Should have run %q, got %v.", call, r.Calls())
		}
	}

	if !strings.Contains(h.out.String(), "[i] Checking frida-server status...\nDevice S1\n") {
		tests.Failed(t, "Should have re-checked the status, got %q.", h.out.String())
	}
	tests.Passed("Should have killed frida-server and printed the status.")
}

func TestFridaKillDeclined(t *testing.T) {
	r := processtest.New().
		On("adb devices", processtest.Out(oneDevice)).
		On("adb -s S1 shell ps -A", processtest.Out(psTwo))

	h := run(r, "n\n", "frida", "kill")
	if h.code != 0 || !strings.Contains(h.out.String(), "Abort killing frida-server processes.") {
		tests.Failed(t, "Should have aborted, got %d %q.", h.code, h.out.String())
	}

	if r.CalledPrefix("adb -s S1 shell su -c 'kill") {
		tests.Failed(t, "Should not have killed anything, got %v.", r.Calls())
	}
	tests.Passed("Should have aborted when declined.")
}

func TestResignMissingJar(t *testing.T) {
	r := processtest.New()

	h := run(r, "", "--resign", "--apk", "app.apk")
	if h.code != 1 || !strings.Contains(h.errOut.String(), "uber-apk-signer jar not found at /opt/adbrv/tools/uber-apk-signer-1.3.0.jar") {
		tests.Failed(t, "Should have failed without the jar, got %d %q.", h.code, h.errOut.String())
	}

	if len(r.Calls()) != 0 {
		tests.Failed(t, "Should not have run java, got %v.", r.Calls())
	}
	tests.Passed("Should have failed without the jar.")
}

func TestResignExitCode(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "tools", "uber-apk-signer-1.3.0.jar")

	if err := os.MkdirAll(filepath.Dir(jar), 0755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(jar, []byte("PK"), 0644); err != nil {
		t.Fatal(err)
	}

	r := processtest.New().On("java -jar "+jar+" --apk app.apk --help", processtest.Fail(2, "usage\n"))

	var out, errOut bytes.Buffer
	c := New(
		WithRunner(r),
		WithConfig(conf()),
		WithOutput(&out, &errOut),
		WithInput(strings.NewReader("")),
		WithExecutable(filepath.Join(dir, "adbrv")),
	)

	if code := c.Execute([]string{"adbrv", "resign", "--apk", "app.apk", "--help"}); code != 2 {
		tests.Failed(t, "Should have propagated exit code 2, got %d.", code)
	}

	if errOut.String() != "usage\n" {
		tests.Failed(t, "Should have passed the signer output through, got %q.", errOut.String())
	}
	tests.Passed("Should have propagated the signer exit code.")
}

func TestChecksymUsage(t *testing.T) {
	h := run(processtest.New(), "", "checksym")
	if h.code != 1 || !strings.Contains(h.errOut.String(), "Invalid arguments.") {
		tests.Failed(t, "Should have required a folder, got %d.", h.code)
	}
	tests.Passed("Should have required a folder.")
}

func TestFindSONoAPK(t *testing.T) {
	h := run(processtest.New(), "", "findso", t.TempDir())
	if h.code != 1 || !strings.Contains(h.errOut.String(), "No APK files found") {
		tests.Failed(t, "Should have failed without APKs, got %d %q.", h.code, h.errOut.String())
	}
	tests.Passed("Should have failed without APKs.")
}

func TestBadConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "adbrv.toml")
	if err := os.WriteFile(p, []byte("[frida]\nsettle = \"soon\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var out, errOut bytes.Buffer
	c := New(WithRunner(processtest.New()), WithOutput(&out, &errOut), WithExecutable("/opt/adbrv/adbrv"))

	if code := c.Execute([]string{"adbrv", "--config", p, "status"}); code != 1 {
		tests.Failed(t, "Should have rejected the configuration, got %d.", code)
	}

	if !strings.Contains(errOut.String(), "[!] could not parse configuration") {
		tests.Failed(t, "Should have reported the configuration error, got %q.", errOut.String())
	}
	tests.Passed("Should have rejected an invalid configuration.")
}

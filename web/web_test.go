package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dthkhang/adbrv/adb"
	"github.com/dthkhang/adbrv/device"
	"github.com/dthkhang/adbrv/process/processtest"
	"github.com/dthkhang/adbrv/utils/tests"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type response struct {
	Code  int                 `json:"code"`
	Msg   string              `json:"msg"`
	Data  jsoniter.RawMessage `json:"data"`
	Count *int                `json:"count"`
}

func setup(t *testing.T, r *processtest.Runner) http.Handler {
	client := adb.New("adb", r)

	w, err := New(client, &device.Reporter{Client: client}, WithVersion("1.2.0"))
	if err != nil {
		t.Fatal(err)
	}

	return w.Handler()
}

func get(t *testing.T, h http.Handler, path string) (int, response) {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		tests.Failed(t, "Could not decode %q: %v", rec.Body.String(), err)
	}

	return rec.Code, resp
}

func devices() *processtest.Runner {
	return processtest.New().
		On("adb devices", processtest.Out("List of devices attached\nS1\tdevice\nS2\toffline\n")).
		On("adb -s S1 shell getprop ro.product.model", processtest.Out("Pixel 7\n")).
		On("adb -s S1 shell settings get global http_proxy", processtest.Out(":0\n")).
		On("adb -s S1 reverse --list", processtest.Out(""))
}

func TestListDevices(t *testing.T) {
	h := setup(t, devices())

	code, resp := get(t, h, "/api/v1/devices")
	if code != http.StatusOK || resp.Code != 0 || resp.Msg != "ok" {
		tests.Failed(t, "Should have succeeded, got %d %+v.", code, resp)
	}

	if resp.Count == nil || *resp.Count != 1 {
		tests.Failed(t, "Should have counted one ready device.")
	}

	var reports []device.Report
	if err := json.Unmarshal(resp.Data, &reports); err != nil {
		tests.Failed(t, "Could not decode reports: %v", err)
	}

	if reports[0].Serial != "S1" || reports[0].Model != "Pixel 7" || reports[0].Proxy != ":0" {
		tests.Failed(t, "Should have reported S1, got %+v.", reports[0])
	}
	tests.Passed("Should have listed the devices.")
}

func TestGetDevice(t *testing.T) {
	h := setup(t, devices())

	code, resp := get(t, h, "/api/v1/devices/S1")
	if code != http.StatusOK || resp.Count != nil {
		tests.Failed(t, "Should have returned a single report, got %d %+v.", code, resp)
	}

	code, resp = get(t, h, "/api/v1/devices/S2")
	if code != http.StatusNotFound || resp.Code != -1 || resp.Msg != "device S2 not found" {
		tests.Failed(t, "Should have rejected an offline device, got %d %+v.", code, resp)
	}
	tests.Passed("Should have returned a single device.")
}

func TestNoADB(t *testing.T) {
	r := processtest.New()
	r.Default = processtest.Response{Err: errors.New("executable not found")}

	code, resp := get(t, setup(t, r), "/api/v1/devices")
	if code != http.StatusServiceUnavailable || resp.Code != -1 {
		tests.Failed(t, "Should have failed without adb, got %d %+v.", code, resp)
	}
	tests.Passed("Should have reported a missing adb.")
}

func TestVersion(t *testing.T) {
	code, resp := get(t, setup(t, processtest.New()), "/api/v1/version")
	if code != http.StatusOK || string(resp.Data) != `{"version":"1.2.0"}` {
		tests.Failed(t, "Should have returned the version, got %d %s.", code, resp.Data)
	}
	tests.Passed("Should have returned the version.")
}

func TestEmptyListen(t *testing.T) {
	if _, err := New(nil, nil, WithListen("")); err == nil {
		tests.Failed(t, "Should have rejected an empty listen address.")
	}
	tests.Passed("Should have rejected an empty listen address.")
}

func TestServe(t *testing.T) {
	w, err := New(nil, nil, WithListen("127.0.0.1:0"))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Serve(ctx); err != nil && err != http.ErrServerClosed {
		tests.Failed(t, "Should have shut down cleanly, got %v.", err)
	}
	tests.Passed("Should have stopped when the context was done.")
}

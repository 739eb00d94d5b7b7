package ledscd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mdouchement/logger"
	"github.com/sigurn/crc16"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/mdouchement/ledscd/ledsc"
)

func newTestServer(strip LEDStrip) *Server {
	log := logger.WrapSlogHandler(logger.NewSlogTextHandler(io.Discard, &logger.SlogTextOption{Level: slog.LevelError}))
	return NewServer(log, Config{Bind: ":0"}, strip, "test")
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServerSetBrightness(t *testing.T) {
	strip := NewDummyLEDStrip()
	h := newTestServer(strip).Handler()

	w := postForm(t, h, "/api/v1/brightness", url.Values{"brightness_percent": {"75"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, 75, strip.brightness)
}

func TestServerSetBrightnessValidation(t *testing.T) {
	strip := NewDummyLEDStrip()
	strip.brightness = -1 // sentinel: must stay untouched
	h := newTestServer(strip).Handler()

	for _, value := range []string{"", "101", "-1", "abc", "50.5", "0x20"} {
		w := postForm(t, h, "/api/v1/brightness", url.Values{"brightness_percent": {value}})
		assert.Equal(t, http.StatusBadRequest, w.Code, "value %q", value)
	}

	assert.Equal(t, -1, strip.brightness)
}

func TestServerSetEffect(t *testing.T) {
	strip := NewDummyLEDStrip()
	h := newTestServer(strip).Handler()

	w := postForm(t, h, "/api/v1/effect", url.Values{"effect_id": {"5"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ledsc.EffectFire, strip.effect)

	for _, value := range []string{"", "10", "-1", "fire"} {
		w := postForm(t, h, "/api/v1/effect", url.Values{"effect_id": {value}})
		assert.Equal(t, http.StatusBadRequest, w.Code, "value %q", value)
	}
}

func TestServerSetColor(t *testing.T) {
	strip := NewDummyLEDStrip()
	h := newTestServer(strip).Handler()

	w := postForm(t, h, "/api/v1/color", url.Values{"color": {"#ff8000"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ledsc.Color{R: 0xFF, G: 0x80}, strip.color)

	for _, value := range []string{"", "red", "#fff", "#ff80001", "#gg0000"} {
		w := postForm(t, h, "/api/v1/color", url.Values{"color": {value}})
		assert.Equal(t, http.StatusBadRequest, w.Code, "value %q", value)
	}
}

func TestServerSetFirePalette(t *testing.T) {
	strip := NewDummyLEDStrip()
	h := newTestServer(strip).Handler()

	w := postForm(t, h, "/api/v1/palette", url.Values{"palette_id": {"6"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ledsc.PaletteLava, strip.palette)

	for _, value := range []string{"", "8", "-1", "heat"} {
		w := postForm(t, h, "/api/v1/palette", url.Values{"palette_id": {value}})
		assert.Equal(t, http.StatusBadRequest, w.Code, "value %q", value)
	}
}

func TestServerSetDebugging(t *testing.T) {
	strip := NewDummyLEDStrip()
	h := newTestServer(strip).Handler()

	w := postForm(t, h, "/api/v1/debug", url.Values{"enabled": {"true"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strip.debugging)

	for _, value := range []string{"", "maybe", "2"} {
		w := postForm(t, h, "/api/v1/debug", url.Values{"enabled": {value}})
		assert.Equal(t, http.StatusBadRequest, w.Code, "value %q", value)
	}
}

// brokenStrip simulates a dead link under every operation.
type brokenStrip struct{}

func (brokenStrip) SetBrightness(int) error { return ledsc.ErrDisconnected }
func (brokenStrip) SetEffect(ledsc.Effect) error { return ledsc.ErrDisconnected }
func (brokenStrip) SetColor(ledsc.Color) error { return ledsc.ErrDisconnected }
func (brokenStrip) SetFirePalette(ledsc.Palette) error { return ledsc.ErrDisconnected }
func (brokenStrip) SetDebugging(bool) error { return ledsc.ErrDisconnected }
func (brokenStrip) FirmwareVersion() (string, error) { return "", ledsc.ErrTimeout }
func (brokenStrip) Status() ([]string, error) { return nil, errors.New("read: input/output error") }

func TestServerDeviceFailures(t *testing.T) {
	h := newTestServer(brokenStrip{}).Handler()

	tests := []struct {
		path string
		form url.Values
	}{
		{"/api/v1/brightness", url.Values{"brightness_percent": {"50"}}},
		{"/api/v1/effect", url.Values{"effect_id": {"1"}}},
		{"/api/v1/color", url.Values{"color": {"#102030"}}},
		{"/api/v1/palette", url.Values{"palette_id": {"0"}}},
	}

	for _, test := range tests {
		w := postForm(t, h, test.path, test.form)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, test.path)

		var rsp StatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rsp))
		assert.Equal(t, "error", rsp.Status)
		assert.NotContains(t, rsp.Error, "input/output", "transport detail must not leak")
	}

	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/api/v1/version").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/api/v1/status").Code)
}

func TestServerCatalogs(t *testing.T) {
	h := newTestServer(NewDummyLEDStrip()).Handler()

	w := get(t, h, "/api/v1/effects")
	require.Equal(t, http.StatusOK, w.Code)

	var effects []CatalogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &effects))
	require.Len(t, effects, 10)
	assert.Equal(t, CatalogEntry{ID: 0, Name: "off"}, effects[0])
	assert.Equal(t, CatalogEntry{ID: 9, Name: "twinkle"}, effects[9])

	w = get(t, h, "/api/v1/palettes")
	require.Equal(t, http.StatusOK, w.Code)

	var palettes []CatalogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &palettes))
	require.Len(t, palettes, 8)
	assert.Equal(t, CatalogEntry{ID: 0, Name: "heat"}, palettes[0])
}

func TestServerVersion(t *testing.T) {
	h := newTestServer(NewDummyLEDStrip()).Handler()

	w := get(t, h, "/api/v1/version")
	require.Equal(t, http.StatusOK, w.Code)

	var rsp VersionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rsp))
	assert.Equal(t, "test", rsp.Daemon)
	assert.Equal(t, "LEDSC_DUMMY_001", rsp.Firmware)
}

func TestServerStatus(t *testing.T) {
	strip := NewDummyLEDStrip()
	require.NoError(t, strip.SetBrightness(100))
	require.NoError(t, strip.SetEffect(ledsc.EffectSolidColor))
	require.NoError(t, strip.SetColor(ledsc.Color{R: 0xFF}))

	h := newTestServer(strip).Handler()

	w := get(t, h, "/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)

	var rsp DeviceStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rsp))
	assert.Equal(t, []string{"1", "FF", "FF0000"}, rsp.Params)
}

func TestServerHealthz(t *testing.T) {
	h := newTestServer(NewDummyLEDStrip()).Handler()
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
}

func TestServerIndex(t *testing.T) {
	h := newTestServer(NewDummyLEDStrip()).Handler()

	w := get(t, h, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "LED Strip Controller")
}

// echoPort fakes the firmware behind a real controller: every frame
// written is recorded and acknowledged.
type echoPort struct {
	mu      sync.Mutex
	frames  []string
	pending []byte
}

var echoXmodem = crc16.MakeTable(crc16.CRC16_XMODEM)

func (p *echoPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame := string(b)
	p.frames = append(p.frames, frame)

	code, _, _ := strings.Cut(strings.TrimLeft(frame, "["), "]")
	code, _, _ = strings.Cut(code, ":")
	inner := "[" + code + ":0]"
	p.pending = append(p.pending, fmt.Sprintf("%s%X\r\n", inner, crc16.Checksum([]byte(inner), echoXmodem))...)

	return len(b), nil
}

func (p *echoPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *echoPort) Close() error {
	return nil
}

func (p *echoPort) SetMode(mode *serial.Mode) error { return nil }
func (p *echoPort) Drain() error { return nil }

func (p *echoPort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = nil
	return nil
}

func (p *echoPort) ResetOutputBuffer() error { return nil }
func (p *echoPort) SetDTR(dtr bool) error { return nil }
func (p *echoPort) SetRTS(rts bool) error { return nil }
func (p *echoPort) GetModemStatusBits() (*serial.ModemStatusBits, error) { return nil, nil }
func (p *echoPort) SetReadTimeout(t time.Duration) error { return nil }
func (p *echoPort) Break(d time.Duration) error { return nil }

// TestServerSerialRoundTrip drives the HTTP layer into a real controller
// and checks the exact bytes the device sees.
func TestServerSerialRoundTrip(t *testing.T) {
	port := &echoPort{}
	ctrl := ledsc.OpenPort(port, "ttyTEST", time.Second)
	defer ctrl.Close()

	h := newTestServer(ctrl).Handler()

	w := postForm(t, h, "/api/v1/brightness", url.Values{"brightness_percent": {"75"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = postForm(t, h, "/api/v1/color", url.Values{"color": {"#ff0000"}})
	require.Equal(t, http.StatusOK, w.Code)

	w = postForm(t, h, "/api/v1/brightness", url.Values{"brightness_percent": {"200"}})
	require.Equal(t, http.StatusBadRequest, w.Code)

	port.mu.Lock()
	defer port.mu.Unlock()
	assert.Equal(t, []string{
		"[CSB:BF]E887\r\n",
		"[CSC:FF0000]CA21\r\n",
	}, port.frames, "rejected input must never reach the wire")
}

// TestServerAppliedEventsDrained checks that handlers never stall on the
// event channel when the server is used without Launch.
func TestServerAppliedEventsDrained(t *testing.T) {
	strip := NewDummyLEDStrip()
	h := newTestServer(strip).Handler()

	for i := range 24 {
		w := postForm(t, h, "/api/v1/brightness", url.Values{"brightness_percent": {strconv.Itoa(i)}})
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}

	assert.Equal(t, 23, strip.brightness)
}

func TestServerMonitorStream(t *testing.T) {
	strip := NewDummyLEDStrip()
	s := newTestServer(strip)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	rsp, err := ts.Client().Get(ts.URL + "/api/v1/monitor")
	require.NoError(t, err)
	defer rsp.Body.Close()
	require.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, "text/event-stream", rsp.Header.Get("Content-Type"))

	_, err = ts.Client().PostForm(ts.URL+"/api/v1/brightness", url.Values{"brightness_percent": {"42"}})
	require.NoError(t, err)

	payload, err := ReadSSE(rsp.Body)
	require.NoError(t, err)

	var applied Applied
	require.NoError(t, json.Unmarshal(payload, &applied))
	assert.Equal(t, "brightness", applied.Op)
	assert.Equal(t, "42", applied.Value)
	assert.WithinDuration(t, time.Now(), applied.At, 5*time.Second)
}

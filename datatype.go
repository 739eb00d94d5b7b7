package ledscd

import (
	"time"

	"github.com/mdouchement/ledscd/ledsc"
)

// LEDStrip is what the HTTP layer needs from the device bridge. The real
// implementation is ledsc.Controller, the dummy one serves tests and
// hardware-less runs.
type LEDStrip interface {
	SetBrightness(percent int) error
	SetEffect(e ledsc.Effect) error
	SetColor(c ledsc.Color) error
	SetFirePalette(p ledsc.Palette) error
	SetDebugging(enabled bool) error
	FirmwareVersion() (string, error)
	Status() ([]string, error)
}

// Applied describes a command acknowledged by the device. It is streamed
// to monitor watchers and never stored: the strip remains the only source
// of truth for its own state.
type Applied struct {
	Op    string    `json:"op"`
	Value string    `json:"value"`
	At    time.Time `json:"at"`
}

type StatusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type VersionResponse struct {
	Daemon   string `json:"daemon"`
	Firmware string `json:"firmware"`
}

type DeviceStatusResponse struct {
	// Params are the raw firmware status parameters, layout is firmware
	// defined.
	Params []string `json:"params"`
}

type CatalogEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

const (
	eventApplied = "applied"
	eventWatch   = "watch"
	eventUnwatch = "unwatch"
)

type event struct {
	name      string
	applied   Applied
	watcherID int64
	watcher   chan<- []byte
}

func genID() int64 {
	time.Sleep(time.Nanosecond)
	return time.Now().UnixNano()
}

package ledscd

import (
	"fmt"
	"sync"

	"github.com/mdouchement/ledscd/ledsc"
	"github.com/mdouchement/logger"
)

// A DummyLEDStrip should only be used for dev & tests.
type DummyLEDStrip struct {
	sync       sync.Mutex
	log        logger.Logger
	brightness int
	effect     ledsc.Effect
	color      ledsc.Color
	palette    ledsc.Palette
	debugging  bool
}

func NewDummyLEDStrip() *DummyLEDStrip {
	return &DummyLEDStrip{effect: ledsc.EffectOff}
}

func (c *DummyLEDStrip) SetLogger(l logger.Logger) {
	c.log = l
}

func (c *DummyLEDStrip) Close() error {
	return nil
}

func (c *DummyLEDStrip) Port() string {
	return "x-testing"
}

func (c *DummyLEDStrip) SetBrightness(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("brightness %d%%: %w", percent, ledsc.ErrValidation)
	}

	c.sync.Lock()
	defer c.sync.Unlock()

	c.brightness = percent
	return nil
}

func (c *DummyLEDStrip) SetEffect(e ledsc.Effect) error {
	c.sync.Lock()
	defer c.sync.Unlock()

	c.effect = e
	return nil
}

func (c *DummyLEDStrip) SetColor(col ledsc.Color) error {
	c.sync.Lock()
	defer c.sync.Unlock()

	c.color = col
	return nil
}

func (c *DummyLEDStrip) SetFirePalette(p ledsc.Palette) error {
	c.sync.Lock()
	defer c.sync.Unlock()

	c.palette = p
	return nil
}

func (c *DummyLEDStrip) SetDebugging(enabled bool) error {
	c.sync.Lock()
	defer c.sync.Unlock()

	c.debugging = enabled
	return nil
}

func (c *DummyLEDStrip) FirmwareVersion() (string, error) {
	return "LEDSC_DUMMY_001", nil
}

func (c *DummyLEDStrip) Status() ([]string, error) {
	c.sync.Lock()
	defer c.sync.Unlock()

	return []string{
		fmt.Sprintf("%X", uint8(c.effect)),
		fmt.Sprintf("%02X", c.brightness*255/100),
		fmt.Sprintf("%06X", c.color.Uint32()),
	}, nil
}

package ledsc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrValidation        = errors.New("invalid value")
	ErrDeviceUnavailable = errors.New("device not found/unavailable")
	ErrTimeout           = errors.New("no acknowledgment from device")
	ErrDisconnected      = errors.New("device disconnected")
	ErrRemote            = errors.New("firmware rejected command")
)

type (
	// Effect identifies a lighting mode of the strip.
	Effect uint8
	// Palette identifies a fire effect color scheme.
	Palette uint8
)

const (
	EffectOff Effect = iota
	EffectSolidColor
	EffectRainbowCycle
	EffectComet
	EffectCometRainbow
	EffectFire
	EffectFireColor
	EffectSolidColorPulse
	EffectBouncingBalls
	EffectTwinkle

	effectCount
)

const (
	PaletteHeat Palette = iota
	PaletteParty
	PaletteRainbow
	PaletteRainbowStripe
	PaletteForest
	PaletteOcean
	PaletteLava
	PaletteCloud

	paletteCount
)

var effectNames = [effectCount]string{
	EffectOff:             "off",
	EffectSolidColor:      "solid-color",
	EffectRainbowCycle:    "rainbow-cycle",
	EffectComet:           "comet",
	EffectCometRainbow:    "comet-rainbow",
	EffectFire:            "fire",
	EffectFireColor:       "fire-color",
	EffectSolidColorPulse: "solid-color-pulse",
	EffectBouncingBalls:   "bouncing-balls",
	EffectTwinkle:         "twinkle",
}

var paletteNames = [paletteCount]string{
	PaletteHeat:          "heat",
	PaletteParty:         "party",
	PaletteRainbow:       "rainbow",
	PaletteRainbowStripe: "rainbow-stripe",
	PaletteForest:        "forest",
	PaletteOcean:         "ocean",
	PaletteLava:          "lava",
	PaletteCloud:         "cloud",
}

func (e Effect) String() string {
	if e >= effectCount {
		return "unknown"
	}
	return effectNames[e]
}

func (p Palette) String() string {
	if p >= paletteCount {
		return "unknown"
	}
	return paletteNames[p]
}

// Effects returns the closed set of effects supported by the firmware.
func Effects() []Effect {
	effects := make([]Effect, effectCount)
	for i := range effects {
		effects[i] = Effect(i)
	}
	return effects
}

// Palettes returns the closed set of fire palettes supported by the firmware.
func Palettes() []Palette {
	palettes := make([]Palette, paletteCount)
	for i := range palettes {
		palettes[i] = Palette(i)
	}
	return palettes
}

// EffectFromID maps a raw identifier to an Effect, rejecting anything
// outside the closed set.
func EffectFromID(id int) (Effect, error) {
	if id < 0 || id >= int(effectCount) {
		return 0, fmt.Errorf("effect id %d: %w", id, ErrValidation)
	}
	return Effect(id), nil
}

// PaletteFromID maps a raw identifier to a Palette, rejecting anything
// outside the closed set.
func PaletteFromID(id int) (Palette, error) {
	if id < 0 || id >= int(paletteCount) {
		return 0, fmt.Errorf("palette id %d: %w", id, ErrValidation)
	}
	return Palette(id), nil
}

// Color is a 24-bit RGB triple.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// ParseColor parses a "#rrggbb" string, leading hash optional.
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("color %q: %w", s, ErrValidation)
	}

	v, err := strconv.ParseUint(hex, 16, 24)
	if err != nil {
		return Color{}, fmt.Errorf("color %q: %w", s, ErrValidation)
	}

	return ColorFromUint32(uint32(v)), nil
}

// ColorFromUint32 unpacks a 0x00RRGGBB value.
func ColorFromUint32(v uint32) Color {
	return Color{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}
}

// Uint32 packs the color as 0x00RRGGBB.
func (c Color) Uint32() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

func (c Color) String() string {
	return fmt.Sprintf("#%06X", c.Uint32())
}

// Command is an encoded request frame and its response contract. It is
// built per request and never reused.
type Command struct {
	Code    string
	Payload string
	// AwaitAck is false for commands that reboot the MCU and therefore
	// never produce a response.
	AwaitAck bool
}

// Response is a parsed firmware response frame. The first parameter is
// always the status code; the remaining ones are command dependent.
type Response struct {
	Code   string
	Status int
	Params []string
}

// OK reports whether the firmware acknowledged the command successfully.
func (r *Response) OK() bool {
	return r.Status == StatusSuccess
}

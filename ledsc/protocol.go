package ledsc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sigurn/crc16"
)

// Checksums are XMODEM, matching the firmware's frame validation.
var xmodem = crc16.MakeTable(crc16.CRC16_XMODEM)

// EncodeBrightness builds the set-brightness command for a percentage in
// [0,100]. Out of range values are rejected, never clamped. The firmware
// expects a 0-255 byte so the percentage is scaled with truncation.
func EncodeBrightness(percent int) (Command, error) {
	if percent < 0 || percent > 100 {
		return Command{}, fmt.Errorf("brightness %d%%: %w", percent, ErrValidation)
	}

	return Command{
		Code:     CodeSetBrightness,
		Payload:  fmt.Sprintf("%02X", percent*255/100),
		AwaitAck: true,
	}, nil
}

// EncodeEffect builds the set-effect command.
func EncodeEffect(e Effect) (Command, error) {
	if e >= effectCount {
		return Command{}, fmt.Errorf("effect %d: %w", e, ErrValidation)
	}

	return Command{
		Code:     CodeSetEffect,
		Payload:  fmt.Sprintf("%X", uint8(e)),
		AwaitAck: true,
	}, nil
}

// EncodeColor builds the set-color command. Channels are discrete so the
// payload is the exact packed value, fixed width.
func EncodeColor(c Color) Command {
	return Command{
		Code:     CodeSetColor,
		Payload:  fmt.Sprintf("%06X", c.Uint32()),
		AwaitAck: true,
	}
}

// EncodeFirePalette builds the set-fire-palette command. Only meaningful
// while the fire effect is active, the firmware ignores it otherwise.
func EncodeFirePalette(p Palette) (Command, error) {
	if p >= paletteCount {
		return Command{}, fmt.Errorf("palette %d: %w", p, ErrValidation)
	}

	return Command{
		Code:     CodeSetFirePalette,
		Payload:  fmt.Sprintf("%X", uint8(p)),
		AwaitAck: true,
	}, nil
}

// EncodeSetDebugging builds the firmware debug toggle command.
func EncodeSetDebugging(enabled bool) Command {
	payload := "0x00"
	if enabled {
		payload = "0x01"
	}

	return Command{
		Code:     CodeSetDebugging,
		Payload:  payload,
		AwaitAck: true,
	}
}

// EncodePrintVersion builds the firmware version query.
func EncodePrintVersion() Command {
	return Command{Code: CodePrintVersion, AwaitAck: true}
}

// EncodeGetStatus builds the status query.
func EncodeGetStatus() Command {
	return Command{Code: CodeGetStatus, AwaitAck: true}
}

// EncodeFullReset builds the full firmware reset command.
// The MCU reboots so no acknowledgment is expected.
func EncodeFullReset() Command {
	return Command{Code: CodeFullReset}
}

// EncodeEnterBootloader builds the bootloader jump command.
// The MCU leaves the application so no acknowledgment is expected.
func EncodeEnterBootloader() Command {
	return Command{Code: CodeEnterBootloader}
}

// Frame renders the command as the bytes written on the wire:
// [CODE:PAYLOAD] followed by the uppercase hex CRC16 of the bracketed
// frame and CRLF.
func (c Command) Frame() []byte {
	var b strings.Builder
	b.WriteByte(FrameSTX)
	b.WriteString(c.Code)
	if c.Payload != "" {
		b.WriteByte(FrameSeparator)
		b.WriteString(c.Payload)
	}
	b.WriteByte(FrameETX)

	frame := b.String()
	return []byte(fmt.Sprintf("%s%X%c%c", frame, crc16.Checksum([]byte(frame), xmodem), FrameCR, FrameLF))
}

func (c Command) String() string {
	if c.Payload == "" {
		return c.Code
	}
	return c.Code + string(FrameSeparator) + c.Payload
}

// ParseResponse parses a firmware response line [CODE:status:param...]CRC16.
// The checksum is verified and the status code extracted; remote failures
// are reported by the caller, not here.
func ParseResponse(line []byte) (*Response, error) {
	s := strings.TrimSpace(string(line))

	if len(s) == 0 || s[0] != FrameSTX {
		return nil, fmt.Errorf("response %q: missing STX", s)
	}

	etx := strings.IndexByte(s, FrameETX)
	if etx < 0 {
		return nil, fmt.Errorf("response %q: missing ETX", s)
	}

	parts := strings.Split(s[1:etx], string(FrameSeparator))
	if len(parts) < 2 {
		// A response always carries at least the status code.
		return nil, fmt.Errorf("response %q: missing status parameter", s)
	}

	crcIn, err := strconv.ParseUint(s[etx+1:], 16, 16)
	if err != nil {
		return nil, fmt.Errorf("response %q: invalid crc16: %w", s, err)
	}
	if crcCalc := crc16.Checksum([]byte(s[:etx+1]), xmodem); uint16(crcIn) != crcCalc {
		return nil, fmt.Errorf("response %q: crc16 mismatch: got %04X, want %04X", s, crcIn, crcCalc)
	}

	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("response %q: invalid status: %w", s, err)
	}

	return &Response{
		Code:   parts[0],
		Status: status,
		Params: parts[1:],
	}, nil
}

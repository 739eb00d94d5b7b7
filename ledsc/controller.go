package ledsc

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/mdouchement/logger"
	"go.bug.st/serial"
)

// pollInterval is the serial read slice used while awaiting a response.
const pollInterval = 10 * time.Millisecond

// DefaultAckTimeout bounds how long Send awaits an acknowledgment.
const DefaultAckTimeout = 500 * time.Millisecond

type dialFunc func(name string, mode *serial.Mode) (serial.Port, error)

// Controller owns the serial link to the LEDSC device. All writes go
// through Send which serializes access to the port: the firmware reads a
// single line-oriented channel and cannot survive interleaved frames.
type Controller struct {
	mu      sync.Mutex
	pname   string
	mode    *serial.Mode
	timeout time.Duration
	port    serial.Port // nil while the link is closed
	dial    dialFunc
	log     logger.Logger
	rbuf    []byte
	rest    []byte // bytes read past the last consumed line
	stale   bool   // a timed-out exchange may still deliver its ack
}

// Open claims the serial device. It fails with ErrDeviceUnavailable when
// the path does not exist or is already held by another process.
func Open(pname string, baud int, timeout time.Duration) (*Controller, error) {
	if timeout <= 0 {
		timeout = DefaultAckTimeout
	}

	c := &Controller{
		pname:   pname,
		timeout: timeout,
		dial:    serial.Open,
		rbuf:    make([]byte, 64),
		mode: &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
	}

	if err := c.open(); err != nil {
		return nil, err
	}

	return c, nil
}

// OpenPort attaches a controller to an already-open port, bypassing the
// device dial. A transport failure still drops the handle and the next
// Send dials pname as usual.
func OpenPort(port serial.Port, pname string, timeout time.Duration) *Controller {
	if timeout <= 0 {
		timeout = DefaultAckTimeout
	}

	port.SetReadTimeout(pollInterval)

	return &Controller{
		pname:   pname,
		timeout: timeout,
		port:    port,
		dial:    serial.Open,
		rbuf:    make([]byte, 64),
		mode: &serial.Mode{
			BaudRate: 115200,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
	}
}

func (c *Controller) open() error {
	port, err := c.dial(c.pname, c.mode)
	if err != nil {
		return fmt.Errorf("open %s: %s: %w", c.pname, err, ErrDeviceUnavailable)
	}

	port.SetReadTimeout(pollInterval)

	if err = port.ResetInputBuffer(); err != nil {
		port.Close()
		return fmt.Errorf("open %s: %s: %w", c.pname, err, ErrDeviceUnavailable)
	}

	if err = port.ResetOutputBuffer(); err != nil {
		port.Close()
		return fmt.Errorf("open %s: %s: %w", c.pname, err, ErrDeviceUnavailable)
	}

	c.port = port
	c.rest = nil
	c.stale = false
	return nil
}

// drop invalidates the link after a fatal transport error. The next Send
// performs a single request-triggered reopen.
func (c *Controller) drop() {
	if c.port != nil {
		c.port.Close()
		c.port = nil
	}
	c.rest = nil
}

func (c *Controller) SetLogger(l logger.Logger) {
	c.log = l
}

func (c *Controller) Port() string {
	return c.pname
}

func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return nil
	}

	if err := c.port.ResetInputBuffer(); err != nil {
		return err
	}

	if err := c.port.ResetOutputBuffer(); err != nil {
		return err
	}

	err := c.port.Close()
	c.port = nil
	c.rest = nil
	return err
}

// Send writes one command frame and, when the command expects one, awaits
// the firmware acknowledgment. It is the sole mutating entry point: the
// whole write/read cycle holds the lock so frames never interleave and
// acknowledgments cannot be attributed to the wrong command.
//
// A transport failure closes the link and surfaces ErrDisconnected; the
// next call reopens once before writing. There is no retry beyond that
// single reopen and no retry at all within a failing call.
//
// A timed-out exchange leaves the link open but marks the stream stale:
// the next Send flushes the input buffer before writing, and any leftover
// acknowledgment whose code does not match the command is discarded.
func (c *Controller) Send(cmd Command) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		if err := c.open(); err != nil {
			return nil, err
		}
		if c.log != nil {
			c.log.Infof("Reopened %s", c.pname)
		}
	}

	if c.stale {
		// A previous exchange timed out, its ack may be sitting in the
		// input buffer. Flush so it cannot be attributed to this command.
		if err := c.port.ResetInputBuffer(); err != nil {
			c.drop()
			return nil, fmt.Errorf("flush %s: %s: %w", c.pname, err, ErrDisconnected)
		}
		c.rest = nil
		c.stale = false
	}

	frame := cmd.Frame()
	if _, err := c.port.Write(frame); err != nil {
		c.drop()
		return nil, fmt.Errorf("write %s: %s: %w", cmd, err, ErrDisconnected)
	}

	if c.log != nil {
		c.log.Debugf("TX %q", frame)
	}

	if !cmd.AwaitAck {
		return nil, nil
	}

	deadline := time.Now().Add(c.timeout)
	for {
		line, err := c.readLine(cmd, deadline)
		if err != nil {
			return nil, err
		}

		if c.log != nil {
			c.log.Debugf("RX %q", line)
		}

		rsp, err := ParseResponse(line)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cmd, err)
		}

		if rsp.Code != cmd.Code {
			// Late ack from a timed-out exchange, not ours.
			if c.log != nil {
				c.log.Debugf("Discarding stale %s ack", rsp.Code)
			}
			continue
		}

		if !rsp.OK() {
			return rsp, fmt.Errorf("%s: status %d (%s): %w", cmd, rsp.Status, StatusText(rsp.Status), ErrRemote)
		}

		return rsp, nil
	}
}

// readLine consumes one line from the stream, buffering bytes read past
// the LF for the next call. The port read timeout slices the wait so the
// deadline is honored even when the device stays silent.
func (c *Controller) readLine(cmd Command, deadline time.Time) ([]byte, error) {
	for {
		if i := bytes.IndexByte(c.rest, FrameLF); i >= 0 {
			line := append([]byte(nil), c.rest[:i+1]...)
			c.rest = append(c.rest[:0], c.rest[i+1:]...)
			return line, nil
		}

		if len(c.rest) > MaxFrameLen {
			// The stream is desynchronized, a clean reopen is the only way back.
			c.drop()
			return nil, fmt.Errorf("read %s: response exceeds %d bytes: %w", cmd, MaxFrameLen, ErrDisconnected)
		}

		n, err := c.port.Read(c.rbuf)
		if err != nil {
			c.drop()
			return nil, fmt.Errorf("read %s: %s: %w", cmd, err, ErrDisconnected)
		}
		c.rest = append(c.rest, c.rbuf[:n]...)

		if time.Now().After(deadline) {
			// The link itself is healthy, only this exchange expired. The
			// ack may still arrive, so the stream is stale until flushed.
			c.stale = true
			return nil, fmt.Errorf("%s: %s: %w", cmd, c.timeout, ErrTimeout)
		}
	}
}

// SetBrightness applies a brightness percentage in [0,100].
func (c *Controller) SetBrightness(percent int) error {
	cmd, err := EncodeBrightness(percent)
	if err != nil {
		return err
	}

	_, err = c.Send(cmd)
	return err
}

// SetEffect switches the strip to the given lighting effect.
func (c *Controller) SetEffect(e Effect) error {
	cmd, err := EncodeEffect(e)
	if err != nil {
		return err
	}

	_, err = c.Send(cmd)
	return err
}

// SetColor applies a solid RGB color.
func (c *Controller) SetColor(col Color) error {
	_, err := c.Send(EncodeColor(col))
	return err
}

// SetFirePalette selects the color scheme used by the fire effect.
func (c *Controller) SetFirePalette(p Palette) error {
	cmd, err := EncodeFirePalette(p)
	if err != nil {
		return err
	}

	_, err = c.Send(cmd)
	return err
}

// SetDebugging toggles the firmware's serial debug traces.
func (c *Controller) SetDebugging(enabled bool) error {
	_, err := c.Send(EncodeSetDebugging(enabled))
	return err
}

// FirmwareVersion queries the firmware version string. Also useful as a
// startup handshake to verify the configured device speaks the protocol.
func (c *Controller) FirmwareVersion() (string, error) {
	rsp, err := c.Send(EncodePrintVersion())
	if err != nil {
		return "", fmt.Errorf("print_version: %w", err)
	}

	if len(rsp.Params) < 2 {
		return "", fmt.Errorf("print_version: missing version parameter")
	}

	return rsp.Params[1], nil
}

// Status queries the firmware status parameters. Their layout is command
// dependent and firmware defined, so they are surfaced as-is.
func (c *Controller) Status() ([]string, error) {
	rsp, err := c.Send(EncodeGetStatus())
	if err != nil {
		return nil, fmt.Errorf("get_status: %w", err)
	}

	return rsp.Params[1:], nil
}

// Reset performs a full firmware reset. Fire-and-forget, the MCU reboots.
func (c *Controller) Reset() error {
	_, err := c.Send(EncodeFullReset())
	return err
}

// EnterBootloader jumps to the bootloader. Fire-and-forget.
func (c *Controller) EnterBootloader() error {
	_, err := c.Send(EncodeEnterBootloader())
	return err
}

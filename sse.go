package ledscd

import "io"

// ReadSSE reads one event from a monitor stream, delimited by a blank
// line. Events are single JSON objects so a small buffer is plenty.
func ReadSSE(r io.Reader) ([]byte, error) {
	buf := make([]byte, 64<<10)

	var n int
	var lf uint8
	var err error
	for {
		_, err = r.Read(buf[n : n+1])
		if err != nil {
			return buf[:n], err
		}

		if buf[n] == '\n' {
			lf++
		} else {
			lf = 0
		}

		if lf == 2 {
			return buf[:n-1], nil
		}

		n++
	}
}

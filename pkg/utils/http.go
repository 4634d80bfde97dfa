package utils

import "io"

// drainCap bounds how much of a response body we read before closing.
// Bodies past the cap are cheaper to abandon than to drain.
const drainCap = 64 << 10

// DrainAndClose empties and closes a response body so the transport can
// reuse the connection.
func DrainAndClose(rc io.ReadCloser) error {
	if rc == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, drainCap))
	return rc.Close()
}

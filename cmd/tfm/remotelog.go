package main

import (
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// remoteLogHook is a logrus.Hook that ships formatted entries to a TCP
// listener, for the --remote-log-port flag (spec.md §6): once the TermUI
// screen takes over the terminal, stdout/stderr are no longer visible, so
// --debug logging needs somewhere else to go. Connection failures are
// swallowed — a detached log viewer is a convenience, not something a
// running file manager should crash over.
type remoteLogHook struct {
	addr string
	conn net.Conn
}

func newRemoteLogHook(port int) *remoteLogHook {
	return &remoteLogHook{addr: fmt.Sprintf("127.0.0.1:%d", port)}
}

func (h *remoteLogHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *remoteLogHook) Fire(entry *logrus.Entry) error {
	if h.conn == nil {
		conn, err := net.DialTimeout("tcp", h.addr, 2*time.Second)
		if err != nil {
			return nil
		}
		h.conn = conn
	}
	line, err := entry.String()
	if err != nil {
		return nil
	}
	if _, err := h.conn.Write([]byte(line)); err != nil {
		h.conn.Close()
		h.conn = nil
	}
	return nil
}

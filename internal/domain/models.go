package domain

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Endpoint identifies the bridge server a client connects to.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.Host) == "" {
		return errors.New("endpoint host is empty")
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("endpoint port out of range: %d", e.Port)
	}

	return nil
}

// Addr returns the host:port dial target.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	if strings.TrimSpace(e.Host) == "" {
		return ""
	}

	return e.Addr()
}

type ClipOrigin int

const (
	ClipOriginRemote ClipOrigin = iota + 1
	ClipOriginLocal
)

// ClipEntry is one clipboard text that crossed the bridge in either direction.
type ClipEntry struct {
	LocalID int64
	Body    string
	Origin  ClipOrigin
	At      time.Time
}

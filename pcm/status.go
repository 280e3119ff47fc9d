package pcm

import (
	"bufio"
	"fmt"
	"net"
	"strings"

	"gopkg.in/yaml.v3"
)

// Snapshot is the read-only session state dump served over the status
// protocol below — the fields a live-inspection tool needs to show a
// human a session's health without touching the pause/drain control
// channel itself.
type Snapshot struct {
	State   string `yaml:"state"`
	HWPtr   int64  `yaml:"hw_ptr"`
	ApplPtr int64  `yaml:"appl_ptr"`
	Delay   int64  `yaml:"delay_frames"`
	XRun    bool   `yaml:"xrun"`
	Suspend bool   `yaml:"suspend"`
}

// Snapshot captures the session's current read-only state.
func (s *Session) Snapshot() Snapshot {
	d := s.Delay()
	return Snapshot{
		State:   s.State().String(),
		HWPtr:   s.rb.HWPtr(),
		ApplPtr: s.rb.ApplPtr(),
		Delay:   d.Frames,
		XRun:    d.XRun,
		Suspend: d.Suspend,
	}
}

// statusTerminator marks the end of one YAML document on the status
// protocol, the same marker yaml.v3 itself uses between documents.
const statusTerminator = "---\n"

// ServeStatus accepts connections on ln and answers every "STATUS\n"
// request line with one YAML-encoded Snapshot followed by
// statusTerminator, until the connection closes.
func ServeStatus(ln net.Listener, snapshot func() Snapshot) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go serveStatusConn(conn, snapshot)
	}
}

func serveStatusConn(conn net.Conn, snapshot func() Snapshot) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		if strings.TrimRight(line, "\r\n") != "STATUS" {
			continue
		}
		enc, err := yaml.Marshal(snapshot())
		if err != nil {
			return
		}
		if _, err := conn.Write(enc); err != nil {
			return
		}
		if _, err := conn.Write([]byte(statusTerminator)); err != nil {
			return
		}
	}
}

// FetchStatus issues one STATUS request over conn and decodes the
// reply.
func FetchStatus(conn net.Conn) (Snapshot, error) {
	if _, err := fmt.Fprintf(conn, "STATUS\n"); err != nil {
		return Snapshot{}, err
	}
	r := bufio.NewReader(conn)
	var doc []byte
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return Snapshot{}, err
		}
		if line == statusTerminator {
			break
		}
		doc = append(doc, line...)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(doc, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Command pcmiosim stands in for the external Bluetooth audio service
// a PCM session talks to over its FIFO and control channel, so the
// transfer engine can be exercised end-to-end without real Bluetooth
// hardware, substituting a synthesized tone or a sink for the real
// audio path.
package main

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
	"github.com/spf13/pflag"
)

func main() {
	ctlAddr := pflag.StringP("ctl", "c", "127.0.0.1:9100", "control-channel listen address")
	direction := pflag.StringP("direction", "d", "playback", "\"playback\" or \"capture\"")
	rateHz := pflag.IntP("rate", "r", 44100, "nominal sample rate in Hz")
	bytesPerFrame := pflag.Int64P("bpf", "b", 4, "bytes per frame (16-bit stereo = 4)")
	periodFrames := pflag.Int64P("period", "p", 1024, "period size in frames")
	toneHz := pflag.Float64P("tone", "t", 440, "capture: synthetic tone frequency in Hz")
	dumpPath := pflag.StringP("dump", "o", "", "playback: file to write received PCM to (default: discard)")
	verbose := pflag.BoolP("verbose", "v", false, "debug-level logging")
	help := pflag.BoolP("help", "h", false, "display help text")

	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "pcmiosim: simulate the Bluetooth audio service side of a pcmio session")
		fmt.Fprintln(os.Stderr, "\nUsage: pcmiosim [options]")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		return
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "pcmiosim"})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	ptyMaster, ptySlave, err := pty.Open()
	if err != nil {
		logger.Fatal("opening pty data descriptor", "err", err)
	}
	defer ptyMaster.Close()
	logger.Info("FIFO data descriptor ready", "slave", ptySlave.Name())
	ptySlave.Close() // the real client opens the slave path itself

	ln, err := net.Listen("tcp", *ctlAddr)
	if err != nil {
		logger.Fatal("listening on control channel", "err", err)
	}
	defer ln.Close()
	logger.Info("control channel listening", "addr", ln.Addr().String())

	go serveControl(ln, logger)

	switch *direction {
	case "playback":
		sinkPlayback(ptyMaster, *dumpPath, logger)
	case "capture":
		sourceCapture(ptyMaster, *rateHz, *bytesPerFrame, *periodFrames, *toneHz, logger)
	default:
		logger.Fatal("unknown direction", "direction", *direction)
	}
}

// serveControl accepts control-channel connections and replies OK to
// every verb it sees, logging each one — enough to drive and observe
// the pause/resume/drop/drain handshake manually.
func serveControl(ln net.Listener, logger *log.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			logger.Debug("control listener stopped", "err", err)
			return
		}
		go handleControl(conn, logger)
	}
}

func handleControl(conn net.Conn, logger *log.Logger) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		verb := strings.TrimRight(line, "\r\n")
		logger.Info("control verb received", "verb", verb)
		if _, err := conn.Write([]byte("OK\n")); err != nil {
			return
		}
	}
}

// sinkPlayback reads the whole playback stream the session writes
// and either discards it or saves it to dumpPath for inspection.
func sinkPlayback(r io.Reader, dumpPath string, logger *log.Logger) {
	var out io.Writer = io.Discard
	if dumpPath != "" {
		f, err := os.Create(dumpPath)
		if err != nil {
			logger.Fatal("creating dump file", "err", err)
		}
		defer f.Close()
		out = f
	}
	n, err := io.Copy(out, r)
	logger.Info("playback stream ended", "bytes", n, "err", err)
}

// sourceCapture feeds a synthesized tone into the capture data
// descriptor, one period at a time, paced to the nominal rate so a
// real capture session sees realistic timing.
func sourceCapture(w io.Writer, rateHz int, bpf, periodFrames int64, toneHz float64, logger *log.Logger) {
	src := newToneReader(rateHz, bpf, toneHz)
	periodBytes := periodFrames * bpf
	interval := time.Duration(periodFrames) * time.Second / time.Duration(rateHz)

	buf := make([]byte, periodBytes)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if _, err := io.ReadFull(src, buf); err != nil {
			logger.Error("tone generator failed", "err", err)
			return
		}
		if _, err := w.Write(buf); err != nil {
			logger.Info("capture sink closed", "err", err)
			return
		}
	}
}

// toneReader is an infinite io.Reader of 16-bit little-endian mono
// samples at a fixed frequency, replicated across bytesPerFrame/2
// channels. Used in place of a real microphone/remote stream for
// manual exercising of the capture path.
type toneReader struct {
	rateHz  int
	bpf     int64
	toneHz  float64
	nSample int64
}

func newToneReader(rateHz int, bpf int64, toneHz float64) *toneReader {
	return &toneReader{rateHz: rateHz, bpf: bpf, toneHz: toneHz}
}

func (t *toneReader) Read(buf []byte) (int, error) {
	channels := t.bpf / 2
	if channels < 1 {
		channels = 1
	}
	frameBytes := channels * 2
	frames := int64(len(buf)) / frameBytes

	for i := int64(0); i < frames; i++ {
		phase := 2 * math.Pi * t.toneHz * float64(t.nSample) / float64(t.rateHz)
		sample := int16(math.Sin(phase) * 0.25 * math.MaxInt16)
		off := i * frameBytes
		for c := int64(0); c < channels; c++ {
			buf[off+c*2] = byte(sample)
			buf[off+c*2+1] = byte(sample >> 8)
		}
		t.nSample++
	}
	return int(frames * frameBytes), nil
}

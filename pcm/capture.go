package pcm

import "github.com/samoyed-audio/pcmio/internal/ringbuf"

// OpenCapture is Open with the direction pinned to Capture.
func OpenCapture(cfg Config) (*Session, error) {
	cfg.Dir = ringbuf.Capture
	return Open(cfg)
}

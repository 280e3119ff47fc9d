package pcm

import "github.com/samoyed-audio/pcmio/internal/ringbuf"

// OpenPlayback is Open with the direction pinned to Playback, for
// call sites that already know which substream they're building and
// would rather not repeat the ringbuf import.
func OpenPlayback(cfg Config) (*Session, error) {
	cfg.Dir = ringbuf.Playback
	return Open(cfg)
}

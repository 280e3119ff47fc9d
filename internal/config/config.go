// Package config parses and validates the PCM device option string the
// host sound API hands the ioplug at open time: a comma-separated list
// of key=value pairs such as
//
//	service=org.bluealsa,device=AA:BB:CC:DD:EE:FF,profile=a2dp,codec=sbc:ffff0205,volume=80,softvol=true,delay=-120,hwcompat=silence
//
// Parsing uses a small hand-rolled tokenizer that understands
// quoting, paired with per-field validation that reports which key
// failed and why rather than a single opaque parse error.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/samoyed-audio/pcmio/internal/hwcompat"
)

// Profile selects the Bluetooth audio profile the device speaks.
type Profile int

const (
	ProfileA2DP Profile = iota
	ProfileSCO
)

func (p Profile) String() string {
	if p == ProfileSCO {
		return "sco"
	}
	return "a2dp"
}

func parseProfile(v string) (Profile, error) {
	switch strings.ToLower(v) {
	case "a2dp":
		return ProfileA2DP, nil
	case "sco":
		return ProfileSCO, nil
	default:
		return 0, fmt.Errorf("config: profile must be a2dp or sco, got %q", v)
	}
}

// Codec names an audio codec with optional codec-specific
// configuration bytes, e.g. "sbc" or "sbc:ffff0205".
type Codec struct {
	Name   string
	Config []byte // raw codec-specific configuration, decoded from hex
}

var codecConfigHex = regexp.MustCompile(`^[0-9a-fA-F]+$`)

func parseCodec(v string) (Codec, error) {
	name, hex, hasConfig := strings.Cut(v, ":")
	if name == "" {
		return Codec{}, fmt.Errorf("config: codec name is empty")
	}
	c := Codec{Name: strings.ToLower(name)}
	if !hasConfig {
		return c, nil
	}
	if hex == "" || !codecConfigHex.MatchString(hex) || len(hex)%2 != 0 {
		return Codec{}, fmt.Errorf("config: codec %q has malformed config bytes %q", name, hex)
	}
	cfg := make([]byte, len(hex)/2)
	for i := range cfg {
		b, err := strconv.ParseUint(hex[2*i:2*i+2], 16, 8)
		if err != nil {
			return Codec{}, fmt.Errorf("config: codec %q config bytes: %w", name, err)
		}
		cfg[i] = byte(b)
	}
	c.Config = cfg
	return c, nil
}

func (c Codec) String() string {
	if len(c.Config) == 0 {
		return c.Name
	}
	var sb strings.Builder
	sb.WriteString(c.Name)
	sb.WriteByte(':')
	for _, b := range c.Config {
		fmt.Fprintf(&sb, "%02x", b)
	}
	return sb.String()
}

// Volume is a 0-100 software or codec volume level with an optional
// mute state expressed by a trailing "+" (force unmute) or "-" (force
// mute) suffix on the level, e.g. "80-" means "80, but muted".
type Volume struct {
	Level int
	Muted bool
}

func parseVolume(v string) (Volume, error) {
	if v == "" {
		return Volume{}, fmt.Errorf("config: volume is empty")
	}
	muted := false
	switch v[len(v)-1] {
	case '+':
		v = v[:len(v)-1]
	case '-':
		muted = true
		v = v[:len(v)-1]
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return Volume{}, fmt.Errorf("config: volume %q is not a number: %w", v, err)
	}
	if n < 0 || n > 100 {
		return Volume{}, fmt.Errorf("config: volume %d out of range [0, 100]", n)
	}
	return Volume{Level: n, Muted: muted}, nil
}

func parseBool(key, v string) (bool, error) {
	switch strings.ToLower(v) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0", "":
		return false, nil
	default:
		return false, fmt.Errorf("config: %s must be a boolean, got %q", key, v)
	}
}

// btAddressRE matches a colon-separated Bluetooth MAC address.
var btAddressRE = regexp.MustCompile(`^(?i)[0-9A-F]{2}(:[0-9A-F]{2}){5}$`)

// Options is the fully parsed and validated device option string.
type Options struct {
	Service  string
	Device   string
	Profile  Profile
	Codec    Codec
	Volume   Volume
	SoftVol  bool
	DelayMs  int
	HWCompat hwcompat.Mode
}

// Parse tokenizes and validates a device option string. Unknown keys
// are rejected rather than silently ignored, since a typo in one of
// these fields otherwise fails open into whatever the zero value
// means.
func Parse(s string) (Options, error) {
	opts := Options{HWCompat: hwcompat.None}
	seen := map[string]bool{}

	for _, tok := range splitFields(s) {
		if tok == "" {
			continue
		}
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return Options{}, fmt.Errorf("config: option %q is not key=value", tok)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if seen[key] {
			return Options{}, fmt.Errorf("config: option %q repeated", key)
		}
		seen[key] = true

		switch key {
		case "service":
			if value == "" {
				return Options{}, fmt.Errorf("config: service must not be empty")
			}
			opts.Service = value
		case "device":
			if !btAddressRE.MatchString(value) {
				return Options{}, fmt.Errorf("config: device %q is not a Bluetooth address", value)
			}
			opts.Device = strings.ToUpper(value)
		case "profile":
			p, err := parseProfile(value)
			if err != nil {
				return Options{}, err
			}
			opts.Profile = p
		case "codec":
			c, err := parseCodec(value)
			if err != nil {
				return Options{}, err
			}
			opts.Codec = c
		case "volume":
			vol, err := parseVolume(value)
			if err != nil {
				return Options{}, err
			}
			opts.Volume = vol
		case "softvol":
			b, err := parseBool(key, value)
			if err != nil {
				return Options{}, err
			}
			opts.SoftVol = b
		case "delay":
			ms, err := strconv.Atoi(value)
			if err != nil {
				return Options{}, fmt.Errorf("config: delay %q is not an integer number of milliseconds: %w", value, err)
			}
			opts.DelayMs = ms
		case "hwcompat":
			m, err := hwcompat.ParseMode(value)
			if err != nil {
				return Options{}, fmt.Errorf("config: %w", err)
			}
			opts.HWCompat = m
		default:
			return Options{}, fmt.Errorf("config: unknown option %q", key)
		}
	}

	if opts.Device == "" {
		return Options{}, fmt.Errorf("config: device is required")
	}
	return opts, nil
}

// splitFields breaks a comma-separated option string into key=value
// fields, honoring double quotes around a value so a quoted value may
// itself contain a comma.
func splitFields(s string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

// Package boardconfig loads the named CAN channel profiles a deployment
// ships alongside the binary — which interface name and bit rate to open
// for "hardware", and which named profile is the default — from an INI
// file, the same ini.v1-driven section-scanning style the DBC sourcing
// layer of this codebase's ancestor used for its object dictionary.
package boardconfig

import (
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

// Channel is one named CAN interface profile.
type Channel struct {
	Name    string
	Backend string // "hardware" or "simulator"
	Device  string // e.g. "can0"
	Baud    int
}

// Board is the parsed set of channel profiles plus which one is default.
type Board struct {
	Default  string
	channels map[string]Channel
}

// Channels returns every parsed channel profile.
func (b *Board) Channels() []Channel {
	out := make([]Channel, 0, len(b.channels))
	for _, c := range b.channels {
		out = append(out, c)
	}
	return out
}

// Channel looks a profile up by name.
func (b *Board) Channel(name string) (Channel, bool) {
	c, ok := b.channels[name]
	return c, ok
}

// DefaultChannel resolves the configured default profile.
func (b *Board) DefaultChannel() (Channel, bool) {
	return b.Channel(b.Default)
}

// Load parses a board profile INI file. Sections other than the reserved
// "board" section each describe one named channel; malformed baud values
// default to 500000 rather than aborting the load, matching the rest of
// this codebase's tolerance for partially-specified config.
func Load(path string) (*Board, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("boardconfig: %w", err)
	}
	b := &Board{channels: make(map[string]Channel)}
	for _, section := range f.Sections() {
		name := section.Name()
		if name == "DEFAULT" {
			continue
		}
		if name == "board" {
			b.Default = section.Key("default_channel").String()
			continue
		}
		baud, err := strconv.Atoi(section.Key("baud").Value())
		if err != nil {
			log.WithField("channel", name).Warn("boardconfig: invalid or missing baud, defaulting to 500000")
			baud = 500000
		}
		backend := section.Key("backend").MustString("simulator")
		b.channels[name] = Channel{
			Name:    name,
			Backend: backend,
			Device:  section.Key("device").String(),
			Baud:    baud,
		}
	}
	if b.Default == "" {
		for name := range b.channels {
			b.Default = name
			break
		}
	}
	return b, nil
}

// Package capture provides the frame sources and encoder the session uses.
// Real cameras plug in through core.DeviceOpener.
package capture

import (
	"fmt"

	"github.com/dkeye/Huddle/internal/core"
)

const DeviceTestPattern = "testpattern"

// Opener resolves a configured device name.
func Opener(name string) (core.DeviceOpener, error) {
	switch name {
	case "", DeviceTestPattern:
		return openTestPattern, nil
	}
	return nil, fmt.Errorf("unknown capture device %q", name)
}

func openTestPattern(width, height int) (core.CaptureDevice, error) {
	p, err := OpenTestPattern(width, height)
	if err != nil {
		return nil, err
	}
	return p, nil
}

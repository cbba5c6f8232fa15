package core

import "image"

// CaptureDevice is a pull source of raw frames. Read failures are transient.
type CaptureDevice interface {
	Read() (image.Image, error)
	Close() error
}

// DeviceOpener opens a capture device at the requested resolution.
type DeviceOpener func(width, height int) (CaptureDevice, error)

// Encoder compresses a raw frame with a lossy quality setting (1..100).
type Encoder interface {
	Encode(img image.Image, quality int) ([]byte, error)
}

// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUsernameLen = 36
	MaxRoomLen     = 36
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrRoomTooLong     = errors.New("room too long")
	ErrRoomEmpty       = errors.New("room empty")
	// ErrReservedChar is returned for values that would break the
	// pipe-delimited beacon and topic formats.
	ErrReservedChar = errors.New("value contains reserved character '|'")
)

// NormalizeUsername trims the display name and checks it can travel in a beacon.
func NormalizeUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return "", ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLen {
		return "", ErrUsernameTooLong
	}
	if strings.Contains(name, FieldSeparator) {
		return "", ErrReservedChar
	}
	return name, nil
}

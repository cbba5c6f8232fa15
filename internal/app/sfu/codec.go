package sfu

import (
	"encoding/binary"
	"errors"
	"math"
)

var ErrBadMessage = errors.New("bad relay message")

// EncodeMessage frames a two-part relay message: [u16 topic length][topic][payload].
func EncodeMessage(topic string, payload []byte) ([]byte, error) {
	if len(topic) == 0 || len(topic) > math.MaxUint16 {
		return nil, ErrBadMessage
	}
	buf := make([]byte, 2+len(topic)+len(payload))
	binary.BigEndian.PutUint16(buf, uint16(len(topic)))
	copy(buf[2:], topic)
	copy(buf[2+len(topic):], payload)
	return buf, nil
}

func DecodeMessage(b []byte) (topic string, payload []byte, err error) {
	if len(b) < 2 {
		return "", nil, ErrBadMessage
	}
	n := int(binary.BigEndian.Uint16(b))
	if n == 0 || len(b) < 2+n {
		return "", nil, ErrBadMessage
	}
	return string(b[2 : 2+n]), b[2+n:], nil
}

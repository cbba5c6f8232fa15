package sfu

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/core/mocks"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/netutil"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

func testIdentity(t *testing.T, room string) domain.Identity {
	t.Helper()
	port, err := netutil.FreePort("127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	id, err := domain.NewIdentity(room, "X", "127.0.0.1", port)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func dialRelay(t *testing.T, addr, prefix string) *websocket.Conn {
	t.Helper()
	l := &Link{Addr: addr, prefix: prefix}
	deadline := time.Now().Add(3 * time.Second)
	for {
		conn, _, err := websocket.DefaultDialer.Dial(l.url(), nil)
		if err == nil {
			return conn
		}
		if time.Now().After(deadline) {
			t.Fatalf("dial %s: %v", addr, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestPublisherServesFrames(t *testing.T) {
	ctrl := gomock.NewController(t)
	dev := mocks.NewMockCaptureDevice(ctrl)
	enc := mocks.NewMockEncoder(ctrl)
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))

	gomock.InOrder(
		dev.EXPECT().Read().Return(nil, errors.New("camera glitch")),
		dev.EXPECT().Read().Return(img, nil).AnyTimes(),
	)
	dev.EXPECT().Close().Return(nil)
	enc.EXPECT().Encode(img, 70).Return([]byte("jpeg"), nil).AnyTimes()

	self := testIdentity(t, "7")
	opened := make(chan image.Point, 1)
	opener := func(w, h int) (core.CaptureDevice, error) {
		opened <- image.Pt(w, h)
		return dev, nil
	}
	cfg := PublisherConfig{Width: 640, Height: 480, Quality: 70, MaxFPS: 50, SendBuffer: 4, CaptureRetry: 10 * time.Millisecond}
	p := NewPublisher(cfg, self, opener, enc, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	sub := dialRelay(t, self.Addr(), "7|")
	defer sub.Close()
	other := dialRelay(t, self.Addr(), "8|")
	defer other.Close()

	_ = sub.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := sub.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	topic, payload, err := DecodeMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	if want := fmt.Sprintf("7|%s", self.PeerID); topic != want || string(payload) != "jpeg" {
		t.Errorf("message = %q %q, want %q jpeg", topic, payload, want)
	}
	if size := <-opened; size != image.Pt(640, 480) {
		t.Errorf("device opened at %v", size)
	}

	_ = other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("subscriber of another room received a frame")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("publisher did not stop")
	}
	_ = sub.SetReadDeadline(time.Now().Add(time.Second))
	for {
		if _, _, err := sub.ReadMessage(); err != nil {
			break
		}
	}
}

func TestPublisherExitsWhenDeviceFails(t *testing.T) {
	self := testIdentity(t, "7")
	opener := func(w, h int) (core.CaptureDevice, error) { return nil, errors.New("no camera") }
	p := NewPublisher(PublisherConfig{}, self, opener, nil, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher kept running without a device")
	}
}

func TestPublisherReusesPortAfterStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	self := testIdentity(t, "7")
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))

	for round := 0; round < 2; round++ {
		dev := mocks.NewMockCaptureDevice(ctrl)
		dev.EXPECT().Read().Return(img, nil).AnyTimes()
		dev.EXPECT().Close().Return(nil)
		enc := mocks.NewMockEncoder(ctrl)
		enc.EXPECT().Encode(gomock.Any(), gomock.Any()).Return([]byte("f"), nil).AnyTimes()

		opener := func(w, h int) (core.CaptureDevice, error) { return dev, nil }
		p := NewPublisher(PublisherConfig{MaxFPS: 50, SendBuffer: 2}, self, opener, enc, zerolog.Nop())
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			p.Run(ctx)
			close(done)
		}()

		conn := dialRelay(t, self.Addr(), "7|")
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		conn.Close()
		cancel()
		<-done
	}
}

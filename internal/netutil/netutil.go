// Package netutil holds the socket plumbing shared by discovery and the media relay.
package netutil

import (
	"context"
	"net"
	"os"
	"strconv"
)

// ListenBroadcastUDP binds the shared discovery port so several local
// instances can listen on it at once, and enables sending to broadcast
// addresses from the same socket.
func ListenBroadcastUDP(ctx context.Context, port int) (net.PacketConn, error) {
	lc := net.ListenConfig{Control: control(true)}
	return lc.ListenPacket(ctx, "udp4", ":"+strconv.Itoa(port))
}

// ListenReusableTCP binds addr with SO_REUSEADDR so a restarted session can
// take the same publish port back immediately.
func ListenReusableTCP(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: control(false)}
	return lc.Listen(ctx, "tcp4", addr)
}

// LocalIP returns the IPv4 address used for outgoing traffic.
func LocalIP() string {
	// The address does not need to be reachable; no packet is sent.
	if c, err := net.Dial("udp4", "10.255.255.255:1"); err == nil {
		defer c.Close()
		if ua, ok := c.LocalAddr().(*net.UDPAddr); ok && ua.IP.To4() != nil && !ua.IP.IsUnspecified() {
			return ua.IP.To4().String()
		}
	}
	if host, err := os.Hostname(); err == nil {
		if addrs, err := net.LookupIP(host); err == nil {
			for _, a := range addrs {
				if v4 := a.To4(); v4 != nil {
					return v4.String()
				}
			}
		}
	}
	return "127.0.0.1"
}

// FreePort asks the kernel for an unused TCP port on ip.
func FreePort(ip string) (int, error) {
	l, err := net.Listen("tcp4", net.JoinHostPort(ip, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// HostIP extracts the IPv4 host of a packet source.
func HostIP(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.UDPAddr:
		if v4 := a.IP.To4(); v4 != nil {
			return v4.String()
		}
		return a.IP.String()
	case nil:
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

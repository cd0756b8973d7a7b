package netaddr

import (
	"fmt"
	"net"
)

const (
	// Loopback is reported when no LAN route is available
	Loopback = "127.0.0.1"

	// probeAddr is never actually contacted; dialing UDP only picks a route
	probeAddr = "10.255.255.255:1"
)

// LocalIP returns the address this host uses to reach the LAN
func LocalIP() string {
	return discover(probeAddr)
}

func discover(probe string) string {
	conn, err := net.Dial("udp", probe)
	if err != nil {
		return Loopback
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil || addr.IP.IsUnspecified() {
		return Loopback
	}
	return addr.IP.String()
}

// AdvertiseAddr returns the host:port a sender should dial to reach listenAddr.
// host overrides discovery when set.
func AdvertiseAddr(host, listenAddr string) (string, error) {
	_, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", listenAddr, err)
	}
	if port == "" || port == "0" {
		return "", fmt.Errorf("listen address %q has no fixed port", listenAddr)
	}
	if host == "" {
		host = LocalIP()
	}
	return net.JoinHostPort(host, port), nil
}

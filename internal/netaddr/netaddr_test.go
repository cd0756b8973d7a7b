package netaddr

import (
	"net"
	"testing"
)

func TestLocalIP_IsIPv4OrLoopback(t *testing.T) {
	ip := net.ParseIP(LocalIP())
	if ip == nil {
		t.Fatalf("LocalIP() = %q, not an IP", LocalIP())
	}
	if ip.IsUnspecified() {
		t.Errorf("LocalIP() = %v, want a routable or loopback address", ip)
	}
}

func TestDiscover_FallsBackToLoopback(t *testing.T) {
	if got := discover("not an address"); got != Loopback {
		t.Errorf("discover() = %q, want %q", got, Loopback)
	}
}

func TestAdvertiseAddr(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		listen  string
		want    string
		wantErr bool
	}{
		{name: "override host", host: "192.168.1.5", listen: "0.0.0.0:5000", want: "192.168.1.5:5000"},
		{name: "empty listen host", host: "10.0.0.9", listen: ":5000", want: "10.0.0.9:5000"},
		{name: "ipv6 override", host: "fe80::1", listen: ":5000", want: "[fe80::1]:5000"},
		{name: "missing port", host: "10.0.0.9", listen: "0.0.0.0", wantErr: true},
		{name: "ephemeral port", host: "10.0.0.9", listen: ":0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AdvertiseAddr(tt.host, tt.listen)
			if (err != nil) != tt.wantErr {
				t.Fatalf("AdvertiseAddr() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("AdvertiseAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAdvertiseAddr_DiscoversHost(t *testing.T) {
	got, err := AdvertiseAddr("", "0.0.0.0:5000")
	if err != nil {
		t.Fatalf("AdvertiseAddr() error = %v", err)
	}
	host, port, err := net.SplitHostPort(got)
	if err != nil || port != "5000" || net.ParseIP(host) == nil {
		t.Errorf("AdvertiseAddr() = %q, want <ip>:5000", got)
	}
}

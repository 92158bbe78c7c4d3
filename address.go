package memc

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is the port used when an address omits it.
const DefaultPort = 11211

// Address identifies a memcached server.
type Address struct {
	Host string
	Port uint16
}

// String returns host:port, with brackets around IPv6 hosts.
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// ParseAddress parses "host" or "host:port". The port defaults to 11211.
//
// Hosts are made of lowercase letters, digits, '-', '_' and '.'. IPv6
// addresses are accepted in brackets: "[::1]:11211".
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, fmt.Errorf("memc: empty server address")
	}

	host, port := s, ""
	if strings.HasPrefix(s, "[") || strings.Count(s, ":") == 1 {
		var err error
		if host, port, err = net.SplitHostPort(s); err != nil {
			if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
				return Address{}, fmt.Errorf("memc: invalid server address %q: %w", s, err)
			}
			host, port = strings.Trim(s, "[]"), ""
		} else if port == "" {
			return Address{}, fmt.Errorf("memc: empty port in server address %q", s)
		}
	}

	if !validHost(host) {
		return Address{}, fmt.Errorf("memc: invalid host in server address %q", s)
	}

	addr := Address{Host: host, Port: DefaultPort}
	if port != "" {
		p, err := strconv.ParseUint(port, 10, 16)
		if err != nil || p == 0 {
			return Address{}, fmt.Errorf("memc: invalid port in server address %q", s)
		}
		addr.Port = uint16(p)
	}

	return addr, nil
}

// ParseAddresses parses each server string with ParseAddress, keeping order.
func ParseAddresses(servers ...string) ([]Address, error) {
	addrs := make([]Address, 0, len(servers))
	for _, s := range servers {
		addr, err := ParseAddress(s)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func validHost(host string) bool {
	if host == "" {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		return true
	}
	for i := 0; i < len(host); i++ {
		switch c := host[i]; {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

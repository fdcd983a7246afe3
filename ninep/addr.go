package ninep

import (
	"fmt"
	"net"
	"strings"
)

const (
	DefaultPort     = "564" // 9fs
	DefaultAuthPort = "567" // ticket
)

var servicePorts = map[string]string{
	"9fs":    "564",
	"ticket": "567",
}

// ParseAddr accepts a Plan 9 dial string (tcp!host!port, tcp!host,
// unix!/path) or a host[:port] and returns the network and address to dial.
// Port defaults to defPort and may be a service name.
func ParseAddr(addr, defPort string) (network, address string, err error) {
	if addr == "" {
		return "", "", fmt.Errorf("%w: empty", ErrBadAddr)
	}
	if strings.Contains(addr, "!") {
		parts := strings.Split(addr, "!")
		network = parts[0]
		switch network {
		case "net", "":
			network = "tcp"
		case "unix":
			if len(parts) != 2 || parts[1] == "" {
				return "", "", fmt.Errorf("%w: %q", ErrBadAddr, addr)
			}
			return "unix", parts[1], nil
		}
		switch len(parts) {
		case 2:
			return network, joinHostPort(parts[1], defPort), nil
		case 3:
			return network, joinHostPort(parts[1], parts[2]), nil
		default:
			return "", "", fmt.Errorf("%w: %q", ErrBadAddr, addr)
		}
	}
	if host, port, err := net.SplitHostPort(addr); err == nil {
		return "tcp", joinHostPort(host, port), nil
	}
	return "tcp", joinHostPort(addr, defPort), nil
}

func joinHostPort(host, port string) string {
	if p, ok := servicePorts[port]; ok {
		port = p
	}
	return net.JoinHostPort(host, port)
}

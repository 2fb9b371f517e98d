package flake

import "net"

// HostPrivateIPMachineID is the default machine-id provider: the low 16
// bits of the host's first private IPv4 address. Exported so callers that
// set their own provider chain can still fall back to it explicitly.
func HostPrivateIPMachineID() (uint16, error) {
	return lower16BitPrivateIP()
}

func lower16BitPrivateIP() (uint16, error) {
	ip, err := privateIPv4()
	if err != nil {
		return 0, err
	}
	return uint16(ip[2])<<8 | uint16(ip[3]), nil
}

// privateIPv4 returns the first RFC1918 address on an up, non-loopback
// interface, in interface enumeration order.
func privateIPv4() (net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, ErrNoPrivateIPv4
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			ip = ip.To4()
			if ip != nil && isPrivateIPv4(ip) {
				return ip, nil
			}
		}
	}
	return nil, ErrNoPrivateIPv4
}

// isPrivateIPv4 reports whether ip falls in 10.0.0.0/8, 172.16.0.0/12 or
// 192.168.0.0/16. ip must be a 4-byte address.
func isPrivateIPv4(ip net.IP) bool {
	return ip[0] == 10 ||
		(ip[0] == 172 && ip[1] >= 16 && ip[1] < 32) ||
		(ip[0] == 192 && ip[1] == 168)
}

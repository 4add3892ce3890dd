package net

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// LinkScheme prefixes share links, e.g. localboard://192.168.1.4:8888/team.
const LinkScheme = "localboard://"

// GetOutgoingIP finds the preferred local IP address to put in share links.
func GetOutgoingIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return localIPFallback()
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

// localIPFallback is used on networks without internet access.
func localIPFallback() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, address := range addrs {
		if ipnet, ok := address.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return "127.0.0.1"
}

// ShareLink builds the link other participants open to join room.
func ShareLink(host string, port int, room string) string {
	return fmt.Sprintf("%s%s/%s", LinkScheme, net.JoinHostPort(host, fmt.Sprint(port)), url.PathEscape(room))
}

// ParseLink turns a share link into the websocket endpoint and room id.
func ParseLink(link string) (wsURL, room string, err error) {
	if !strings.HasPrefix(link, LinkScheme) {
		return "", "", fmt.Errorf("not a %s link: %q", LinkScheme, link)
	}
	rest := strings.TrimPrefix(link, LinkScheme)
	addr, rawRoom, _ := strings.Cut(rest, "/")
	if addr == "" {
		return "", "", fmt.Errorf("link %q has no host", link)
	}
	room, err = url.PathUnescape(strings.TrimSuffix(rawRoom, "/"))
	if err != nil {
		return "", "", fmt.Errorf("bad room in link: %w", err)
	}
	if room == "" {
		room = "default"
	}
	return "ws://" + addr + "/ws", room, nil
}

package nodes

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// urlGuard validates outbound request URLs before httpRequest touches
// the network: scheme allowlist plus SSRF protection against loopback,
// private, link-local and otherwise special addresses, checked both on
// the literal host and on every resolved IP.
type urlGuard struct {
	allowedSchemes map[string]bool
	blockedHosts   map[string]bool
	lookupIP       func(host string) ([]net.IP, error)

	// allowLoopback disables the loopback checks for local development
	// and tests; private and link-local ranges stay blocked.
	allowLoopback bool
}

func newURLGuard() *urlGuard {
	return &urlGuard{
		allowedSchemes: map[string]bool{
			"http":  true,
			"https": true,
		},
		blockedHosts: map[string]bool{
			"localhost":                true,
			"127.0.0.1":                true,
			"0.0.0.0":                  true,
			"::1":                      true,
			"::":                       true,
			"::ffff:127.0.0.1":         true,
			"metadata.google.internal": true,
		},
		lookupIP: net.LookupIP,
	}
}

// validate checks a raw URL against the guard's rules.
func (g *urlGuard) validate(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !g.allowedSchemes[scheme] {
		return fmt.Errorf("scheme %q is not allowed, use http or https", parsed.Scheme)
	}

	host := strings.ToLower(strings.TrimSpace(parsed.Hostname()))
	if host == "" {
		return fmt.Errorf("URL has no host")
	}
	if !g.allowLoopback && g.blockedHosts[host] {
		return fmt.Errorf("host %q is blocked", host)
	}

	// A literal IP is checked directly; hostnames are resolved and every
	// address must pass. Resolution failure is allowed through since the
	// request itself will fail with a clearer error.
	if ip := net.ParseIP(host); ip != nil {
		return g.checkIP(ip)
	}
	ips, err := g.lookupIP(host)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		if err := g.checkIP(ip); err != nil {
			return err
		}
	}
	return nil
}

// checkIP rejects address ranges that point back into the local or
// internal network, including the 169.254.0.0/16 range cloud metadata
// services live on.
func (g *urlGuard) checkIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		if g.allowLoopback {
			return nil
		}
		return fmt.Errorf("address %s is blocked: loopback", ip)
	case ip.IsPrivate():
		return fmt.Errorf("address %s is blocked: private network", ip)
	case ip.IsLinkLocalUnicast():
		return fmt.Errorf("address %s is blocked: link-local", ip)
	case ip.IsMulticast():
		return fmt.Errorf("address %s is blocked: multicast", ip)
	case ip.IsUnspecified():
		return fmt.Errorf("address %s is blocked: unspecified", ip)
	}
	return nil
}

package urlutil

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// privateRanges lists private and reserved networks a blog fetch must never reach
var privateRanges []*net.IPNet

func init() {
	cidrs := []string{
		"127.0.0.0/8",
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16", // link-local, includes cloud metadata endpoints
		"100.64.0.0/10",  // CGNAT
		"0.0.0.0/8",
		"224.0.0.0/4",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
		"ff00::/8",
	}

	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in SSRF private ranges: %s", cidr))
		}
		privateRanges = append(privateRanges, ipNet)
	}
}

// IsPrivateIP returns true if the given IP belongs to a private or reserved range.
func IsPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, ipNet := range privateRanges {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// ValidateTargetHost rejects URLs whose host is "localhost" or a private IP literal.
// Domain names are not resolved here; the fetcher checks resolved addresses at dial time.
func ValidateTargetHost(u *url.URL) error {
	hostname := strings.ToLower(u.Hostname())
	if hostname == "localhost" || strings.HasSuffix(hostname, ".localhost") {
		return fmt.Errorf("host %q is not allowed", hostname)
	}

	if ip := net.ParseIP(hostname); ip != nil && IsPrivateIP(ip) {
		return fmt.Errorf("host resolves to private/reserved IP address: %s", hostname)
	}
	return nil
}

// ValidateResolvedIP checks a resolved address. Called after DNS resolution so
// rebinding to an internal address is caught.
func ValidateResolvedIP(ip net.IP) error {
	if IsPrivateIP(ip) {
		return fmt.Errorf("resolved IP is in a private/reserved range: %s", ip.String())
	}
	return nil
}

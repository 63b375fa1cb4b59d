package main

import (
	"net"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var domainPattern = regexp.MustCompile(`^([a-zA-Z0-9\*]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?\.)*[a-zA-Z]{2,63}$`)

func isDomain(domain string) bool {
	if isIP(domain) {
		return false
	}
	return domainPattern.MatchString(domain)
}

func isIP(ip string) bool {
	return (net.ParseIP(ip) != nil)
}

func UnFqdn(s string) string {
	if strings.HasSuffix(s, ".") {
		return s[:len(s)-1]
	}
	return s
}

// domainKey turns a domain name into a suffix tree key. The leading dot keeps
// suffix matches on label boundaries: ".google.com" is a suffix of
// ".www.google.com" but not of ".notgoogle.com".
func domainKey(domain string) string {
	domain = strings.ToLower(UnFqdn(strings.TrimSpace(domain)))
	if domain == "" {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(domain); err == nil {
		domain = ascii
	}
	return "." + domain
}

package logger

import (
	"net"
	"strings"
)

// MaskEmail keeps up to three leading characters and the domain: john.doe@example.com -> joh***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" {
		return "***"
	}
	if len(local) > 3 {
		local = local[:3]
	}
	return local + "***@" + domain
}

// MaskPhone keeps the country code and the last four digits: +15550100123 -> +155***0123
func MaskPhone(phone string) string {
	if phone == "" {
		return ""
	}
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 8 {
		if len(phone) > 4 {
			return "***" + phone[len(phone)-4:]
		}
		return "***"
	}
	prefix := phone[:len(phone)-len(digits)] + digits[:3]
	return prefix + "***" + digits[len(digits)-4:]
}

// MaskIP keeps the /16 of an IPv4 address or the first four groups of an IPv6 one.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "***"
	}
	if v4 := parsed.To4(); v4 != nil && strings.Contains(ip, ".") {
		parts := strings.Split(v4.String(), ".")
		return parts[0] + "." + parts[1] + ".*.*"
	}
	parts := strings.Split(ip, ":")
	if len(parts) < 4 {
		return "***"
	}
	return strings.Join(parts[:4], ":") + ":*:*:*:*"
}

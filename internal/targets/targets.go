// Package targets validates and expands scan targets: single addresses,
// CIDR ranges, hostnames and port lists.
package targets

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"github.com/NubleX/LEGION2/internal/errors"
)

const (
	// MaxExpandedHosts caps how many addresses a single range may expand to.
	MaxExpandedHosts = 65536

	maxHostnameLength = 253
	maxPort           = 65535
)

// Kind identifies what a target string denotes.
type Kind int

const (
	KindInvalid Kind = iota
	KindIP
	KindCIDR
	KindHostname
)

func (k Kind) String() string {
	switch k {
	case KindIP:
		return "ip"
	case KindCIDR:
		return "cidr"
	case KindHostname:
		return "hostname"
	default:
		return "invalid"
	}
}

// ValidateIP parses a single IPv4 or IPv6 address.
func ValidateIP(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, errors.ErrInvalidTarget(s, fmt.Errorf("invalid IP address"))
	}
	return addr.Unmap(), nil
}

// ValidateCIDR parses a CIDR range and returns it masked to its network address.
func ValidateCIDR(s string) (netip.Prefix, error) {
	prefix, err := netip.ParsePrefix(strings.TrimSpace(s))
	if err != nil {
		return netip.Prefix{}, errors.ErrInvalidTarget(s, fmt.Errorf("invalid CIDR notation"))
	}
	return prefix.Masked(), nil
}

// ValidateHostname checks s is a syntactically valid DNS name.
func ValidateHostname(s string) error {
	if s == "" || len(s) > maxHostnameLength {
		return errors.ErrInvalidTarget(s, fmt.Errorf("hostname must be 1-%d characters", maxHostnameLength))
	}
	if _, ok := dns.IsDomainName(s); !ok {
		return errors.ErrInvalidTarget(s, fmt.Errorf("invalid hostname format"))
	}
	labels := strings.Split(strings.TrimSuffix(s, "."), ".")
	// No top-level domain is all digits, so this is a malformed address.
	if isNumeric(labels[len(labels)-1]) {
		return errors.ErrInvalidTarget(s, fmt.Errorf("invalid IP address"))
	}
	for _, label := range labels {
		if label == "" || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return errors.ErrInvalidTarget(s, fmt.Errorf("invalid hostname label %q", label))
		}
		for _, r := range label {
			if !(r == '-' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
				return errors.ErrInvalidTarget(s, fmt.Errorf("invalid character %q in hostname", r))
			}
		}
	}
	return nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidateTarget classifies s as an address, range or hostname, rejecting
// anything that is none of them.
func ValidateTarget(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return KindInvalid, errors.ErrInvalidTarget(s, fmt.Errorf("target is empty"))
	}
	if strings.Contains(s, "/") {
		if _, err := ValidateCIDR(s); err != nil {
			return KindInvalid, err
		}
		return KindCIDR, nil
	}
	if _, err := netip.ParseAddr(s); err == nil {
		return KindIP, nil
	}
	if err := ValidateHostname(s); err != nil {
		return KindInvalid, err
	}
	return KindHostname, nil
}

// ValidatePortRange parses a port specification such as "22,80,8000-8100"
// and returns every port it names, in order, without duplicates.
func ValidatePortRange(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.NewScanError(errors.CodeValidation, "port range is empty")
	}

	seen := make(map[int]bool)
	var ports []int
	add := func(p int) {
		if !seen[p] {
			seen[p] = true
			ports = append(ports, p)
		}
	}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if lo, hi, isRange := strings.Cut(part, "-"); isRange {
			start, err := parsePort(lo)
			if err != nil {
				return nil, err
			}
			end, err := parsePort(hi)
			if err != nil {
				return nil, err
			}
			if start > end {
				return nil, errors.NewScanError(errors.CodeValidation, fmt.Sprintf("invalid port range: %s", part))
			}
			for p := start; p <= end; p++ {
				add(p)
			}
			continue
		}
		p, err := parsePort(part)
		if err != nil {
			return nil, err
		}
		add(p)
	}
	return ports, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p < 0 || p > maxPort {
		return 0, errors.NewScanError(errors.CodeValidation, fmt.Sprintf("invalid port: %q", s))
	}
	return p, nil
}

// ExpandCIDR lists the host addresses of a range. For IPv4 prefixes shorter
// than /31 the network and broadcast addresses are omitted. Ranges larger
// than MaxExpandedHosts are rejected.
func ExpandCIDR(cidr string) ([]netip.Addr, error) {
	prefix, err := ValidateCIDR(cidr)
	if err != nil {
		return nil, err
	}

	hostBits := prefix.Addr().BitLen() - prefix.Bits()
	if hostBits > 16 {
		return nil, errors.ErrInvalidTarget(cidr,
			fmt.Errorf("range exceeds %d addresses", MaxExpandedHosts))
	}

	dropEdges := prefix.Addr().Is4() && prefix.Bits() < 31
	total := 1 << hostBits
	addrs := make([]netip.Addr, 0, total)
	addr := prefix.Addr()
	for i := 0; i < total; i++ {
		if !(dropEdges && (i == 0 || i == total-1)) {
			addrs = append(addrs, addr)
		}
		addr = addr.Next()
	}
	return addrs, nil
}

// expandOne expands an address or range; hostnames are returned as-is by the caller.
func expandOne(target string) ([]netip.Addr, error) {
	if strings.Contains(target, "/") {
		return ExpandCIDR(target)
	}
	addr, err := ValidateIP(target)
	if err != nil {
		return nil, err
	}
	return []netip.Addr{addr}, nil
}

// ExcludeSet is a set of addresses and ranges removed from an expansion.
type ExcludeSet struct {
	addrs    map[netip.Addr]bool
	prefixes []netip.Prefix
}

// NewExcludeSet parses each exclude as an address or CIDR range.
func NewExcludeSet(excludes []string) (*ExcludeSet, error) {
	set := &ExcludeSet{addrs: make(map[netip.Addr]bool)}
	for _, ex := range excludes {
		ex = strings.TrimSpace(ex)
		if ex == "" {
			continue
		}
		if strings.Contains(ex, "/") {
			p, err := ValidateCIDR(ex)
			if err != nil {
				return nil, err
			}
			set.prefixes = append(set.prefixes, p)
			continue
		}
		addr, err := ValidateIP(ex)
		if err != nil {
			return nil, err
		}
		set.addrs[addr] = true
	}
	return set, nil
}

// Contains reports whether addr is excluded.
func (e *ExcludeSet) Contains(addr netip.Addr) bool {
	if e == nil {
		return false
	}
	if e.addrs[addr] {
		return true
	}
	for _, p := range e.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Strings returns the excludes in a form scan tools accept.
func (e *ExcludeSet) Strings() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.addrs)+len(e.prefixes))
	for _, p := range e.prefixes {
		out = append(out, p.String())
	}
	for a := range e.addrs {
		out = append(out, a.String())
	}
	return out
}

// GenerateTargets expands every range, drops excluded addresses and
// duplicates, and returns the addresses in first-seen order.
func GenerateTargets(ranges, excludes []string) ([]netip.Addr, error) {
	ex, err := NewExcludeSet(excludes)
	if err != nil {
		return nil, err
	}

	seen := make(map[netip.Addr]bool)
	var out []netip.Addr
	for _, r := range ranges {
		addrs, err := expandOne(r)
		if err != nil {
			return nil, err
		}
		for _, a := range addrs {
			if seen[a] || ex.Contains(a) {
				continue
			}
			seen[a] = true
			out = append(out, a)
			if len(out) > MaxExpandedHosts {
				return nil, errors.ErrInvalidTarget(strings.Join(ranges, ","),
					fmt.Errorf("targets exceed %d addresses", MaxExpandedHosts))
			}
		}
	}
	return out, nil
}

// SanitizeFilename replaces characters that are unsafe in file names.
func SanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)
}

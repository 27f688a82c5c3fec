package targets

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	defaultResolvConf      = "/etc/resolv.conf"
	defaultResolverTimeout = 2 * time.Second
)

// Resolver performs reverse DNS lookups against configured name servers.
type Resolver struct {
	client  *dns.Client
	servers []string
}

// NewResolver creates a resolver. With no servers it reads the system
// resolv.conf; servers are "host:port" or bare hosts on port 53.
func NewResolver(servers []string, timeout time.Duration) (*Resolver, error) {
	if timeout <= 0 {
		timeout = defaultResolverTimeout
	}

	if len(servers) == 0 {
		conf, err := dns.ClientConfigFromFile(defaultResolvConf)
		if err != nil {
			return nil, fmt.Errorf("failed to read resolver config: %w", err)
		}
		for _, s := range conf.Servers {
			servers = append(servers, net.JoinHostPort(s, conf.Port))
		}
	}

	normalized := make([]string, 0, len(servers))
	for _, s := range servers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		normalized = append(normalized, s)
	}
	if len(normalized) == 0 {
		return nil, fmt.Errorf("no name servers configured")
	}

	return &Resolver{
		client:  &dns.Client{Timeout: timeout},
		servers: normalized,
	}, nil
}

// LookupPTR returns the first PTR name for ip without the trailing dot.
// An address with no PTR record yields an empty name and no error.
func (r *Resolver) LookupPTR(ctx context.Context, ip string) (string, error) {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", ip, err)
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		in, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			continue
		}
		if in.Rcode == dns.RcodeNameError {
			return "", nil
		}
		if in.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("server %s answered %s", server, dns.RcodeToString[in.Rcode])
			continue
		}
		for _, rr := range in.Answer {
			if ptr, ok := rr.(*dns.PTR); ok {
				return strings.TrimSuffix(ptr.Ptr, "."), nil
			}
		}
		return "", nil
	}
	return "", lastErr
}

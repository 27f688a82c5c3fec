package engine

import (
	"context"
	"sync"
	"time"

	"github.com/NubleX/LEGION2/internal/db"
	"github.com/NubleX/LEGION2/internal/events"
	"github.com/NubleX/LEGION2/internal/logging"
	"github.com/NubleX/LEGION2/internal/results"
)

const ptrLookupTimeout = 3 * time.Second

// PTRResolver looks up the reverse DNS name of an address.
type PTRResolver interface {
	LookupPTR(ctx context.Context, ip string) (string, error)
}

type hostMerger interface {
	Merge(ctx context.Context, set results.Set) (db.MergeSummary, error)
}

// hostnameFiller names discovered hosts that no tool named, using reverse
// DNS. Each address is looked up at most once per process.
type hostnameFiller struct {
	sub      *events.Subscription
	store    hostMerger
	resolver PTRResolver
	logger   *logging.Logger

	tried  map[string]bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func startHostnameFiller(bus *events.Bus, store hostMerger, resolver PTRResolver, logger *logging.Logger) *hostnameFiller {
	ctx, cancel := context.WithCancel(context.Background())
	f := &hostnameFiller{
		sub:      bus.Subscribe(),
		store:    store,
		resolver: resolver,
		logger:   logger.WithComponent("hostnames"),
		tried:    make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
	}
	f.wg.Add(1)
	go f.run()
	return f
}

func (f *hostnameFiller) run() {
	defer f.wg.Done()
	for ev := range f.sub.C() {
		if ev.Type != events.TypeHostDiscovered {
			continue
		}
		host, ok := ev.Data.(db.Host)
		if !ok || host.Hostname != nil || f.tried[host.IP] {
			continue
		}
		f.tried[host.IP] = true
		f.fill(host.IP)
	}
}

func (f *hostnameFiller) fill(ip string) {
	ctx, cancel := context.WithTimeout(f.ctx, ptrLookupTimeout)
	defer cancel()

	name, err := f.resolver.LookupPTR(ctx, ip)
	if err != nil {
		f.logger.Debug("Reverse lookup failed", "ip", ip, "error", err)
		return
	}
	if name == "" {
		return
	}

	set := results.Set{Hosts: []results.Host{{IP: ip, Hostname: name, Status: results.StatusUnknown}}}
	if _, err := f.store.Merge(ctx, set); err != nil {
		f.logger.Warn("Failed to store resolved hostname", "ip", ip, "hostname", name, "error", err)
		return
	}
	f.logger.Debug("Resolved hostname", "ip", ip, "hostname", name)
}

func (f *hostnameFiller) stop() {
	f.cancel()
	f.sub.Close()
	f.wg.Wait()
}

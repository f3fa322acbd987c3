package hostgroup

import (
	"context"
	"fmt"
	"sort"
	"sync"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
	"github.com/steelcutops/usercut/usercut/host"
)

type HostGroup struct {
	sync.RWMutex
	Hosts map[string]*host.Host
}

// NewHostGroup creates a new HostGroup with the given hosts.
func NewHostGroup(hosts ...*host.Host) *HostGroup {
	hostMap := make(map[string]*host.Host)
	for _, h := range hosts {
		hostMap[h.Hostname] = h
	}
	return &HostGroup{Hosts: hostMap}
}

// AddHost adds a host to the HostGroup.
func (hg *HostGroup) AddHost(h *host.Host) {
	hg.Lock()
	defer hg.Unlock()
	hg.Hosts[h.Hostname] = h
}

// RemoveHost removes a host from the HostGroup by its hostname.
func (hg *HostGroup) RemoveHost(hostname string) {
	hg.Lock()
	defer hg.Unlock()
	delete(hg.Hosts, hostname)
}

// HasHost checks if a host with the given hostname exists in the HostGroup.
func (hg *HostGroup) HasHost(hostname string) bool {
	hg.RLock()
	defer hg.RUnlock()
	_, exists := hg.Hosts[hostname]
	return exists
}

// Hostnames returns the member names in sorted order.
func (hg *HostGroup) Hostnames() []string {
	hg.RLock()
	defer hg.RUnlock()
	names := lo.Keys(hg.Hosts)
	sort.Strings(names)
	return names
}

// Each runs action on every host, at most limit at a time, and returns the
// failures combined. A limit below 1 means one host at a time.
func (hg *HostGroup) Each(ctx context.Context, limit int, action func(ctx context.Context, h *host.Host) error) error {
	if limit < 1 {
		limit = 1
	}

	hg.RLock()
	hosts := lo.Values(hg.Hosts)
	hg.RUnlock()
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Hostname < hosts[j].Hostname })

	sem := make(chan struct{}, limit)
	errCh := make(chan error, len(hosts))
	var wg sync.WaitGroup

	for _, hst := range hosts {
		wg.Add(1)
		go func(h *host.Host) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				errCh <- fmt.Errorf("host %s: %w", h.Hostname, err)
				return
			}
			if err := action(ctx, h); err != nil {
				errCh <- fmt.Errorf("host %s: %w", h.Hostname, err)
			}
		}(hst)
	}

	wg.Wait()
	close(errCh)

	var result *multierror.Error
	for err := range errCh {
		result = multierror.Append(result, err)
	}
	if result != nil {
		sort.Slice(result.Errors, func(i, j int) bool { return result.Errors[i].Error() < result.Errors[j].Error() })
	}
	return result.ErrorOrNil()
}

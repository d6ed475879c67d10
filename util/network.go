package util

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
)

// LookupHost resolves a hostname.  With noDNS it only accepts numeric IPs.
func LookupHost(host string, noDNS bool) ([]string, error) {
	if noDNS {
		if net.ParseIP(host) == nil {
			return nil, fmt.Errorf("cannot parse %q as an IP address (DNS disabled with --no-dns)", host)
		}
		return []string{host}, nil
	}
	addrs, err := net.LookupHost(host)
	if err != nil {
		return nil, fmt.Errorf("DNS lookup for %q: %w", host, err)
	}
	return addrs, nil
}

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// Resolver maps host names to addresses and remembers every successful
// lookup for the life of the process. IP literals pass through untouched.
type Resolver struct {
	noDNS  bool
	lookup func(host string, noDNS bool) ([]string, error)

	mu    sync.Mutex
	cache map[string]string
}

// NewResolver returns a Resolver. With noDNS only IP literals resolve.
func NewResolver(noDNS bool) *Resolver {
	return &Resolver{
		noDNS:  noDNS,
		lookup: LookupHost,
		cache:  make(map[string]string),
	}
}

// Resolve returns the address for name, preferring IPv4 results.
func (r *Resolver) Resolve(name string) (string, bool) {
	if net.ParseIP(name) != nil {
		return name, true
	}
	name = strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if addr, ok := r.cache[name]; ok {
		return addr, true
	}
	addrs, err := r.lookup(name, r.noDNS)
	if err != nil || len(addrs) == 0 {
		return "", false
	}
	addr := addrs[0]
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			addr = a
			break
		}
	}
	r.cache[name] = addr
	return addr, true
}

// Cached returns the number of memoised names.
func (r *Resolver) Cached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

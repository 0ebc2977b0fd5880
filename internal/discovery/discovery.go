// Package discovery advertises and finds relay servers on the local network over mDNS.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

const (
	ServiceType = "_aether._tcp"
	Domain      = "local."

	pathKey     = "path="
	defaultPath = "/ws"
)

// Endpoint is one relay found on the network
type Endpoint struct {
	Instance string
	Host     string
	Port     int
	Path     string
}

// URL returns the websocket address of the relay
func (e Endpoint) URL() string {
	return "ws://" + net.JoinHostPort(e.Host, strconv.Itoa(e.Port)) + e.Path
}

// Advertiser keeps an mDNS registration alive until Shutdown
type Advertiser struct {
	server *zeroconf.Server
	logger *zap.Logger
}

// Advertise registers the relay listening on port under the given instance name
func Advertise(instance string, port int, logger *zap.Logger) (*Advertiser, error) {
	if instance == "" {
		return nil, errors.New("discovery instance name is required")
	}
	server, err := zeroconf.Register(instance, ServiceType, Domain, port, []string{pathKey + defaultPath, "version=1"}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logger.Info("mDNS service registered",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return &Advertiser{server: server, logger: logger}, nil
}

// Shutdown withdraws the registration
func (a *Advertiser) Shutdown() {
	a.server.Shutdown()
	a.logger.Info("mDNS service withdrawn")
}

// Browse collects relay endpoints until ctx is done
func Browse(ctx context.Context, logger *zap.Logger) ([]Endpoint, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceType, Domain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	var found []Endpoint
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return found, nil
			}
			if ep, ok := EndpointFromEntry(entry); ok {
				logger.Debug("mDNS discovered relay", zap.String("instance", ep.Instance), zap.String("url", ep.URL()))
				found = append(found, ep)
			}
		case <-ctx.Done():
			return found, nil
		}
	}
}

// EndpointFromEntry converts a resolved service entry, preferring IPv4
func EndpointFromEntry(entry *zeroconf.ServiceEntry) (Endpoint, bool) {
	if entry == nil || entry.Port == 0 {
		return Endpoint{}, false
	}

	var host string
	switch {
	case len(entry.AddrIPv4) > 0:
		host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		host = entry.AddrIPv6[0].String()
	case entry.HostName != "":
		host = strings.TrimSuffix(entry.HostName, ".")
	default:
		return Endpoint{}, false
	}

	path := defaultPath
	for _, txt := range entry.Text {
		if strings.HasPrefix(txt, pathKey) {
			path = strings.TrimPrefix(txt, pathKey)
		}
	}

	return Endpoint{Instance: entry.Instance, Host: host, Port: entry.Port, Path: path}, true
}

// Package discovery advertises the server on the local network over mDNS.
package discovery

import (
	"fmt"
	"os"

	"github.com/hashicorp/mdns"
)

const ServiceType = "_inkboard._tcp"

// Advertise publishes the service until Shutdown is called on the returned
// server. An empty instance name uses the hostname.
func Advertise(port int, instance string) (*mdns.Server, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}

	service, err := mdns.NewMDNSService(
		instance,
		ServiceType,
		"",
		"",
		port,
		nil,
		[]string{"inkboard", "path=/ws"},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return server, nil
}

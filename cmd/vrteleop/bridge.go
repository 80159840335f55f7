package main

import (
	"context"
	"fmt"

	"github.com/open-teleop/vrteleop/domain/diagnostic"
	"github.com/open-teleop/vrteleop/domain/teleop"
	"github.com/open-teleop/vrteleop/pkg/config"
	customlog "github.com/open-teleop/vrteleop/pkg/log"
	"github.com/open-teleop/vrteleop/pkg/rosbridge"
	"github.com/open-teleop/vrteleop/pkg/zeromq"
)

// openBridge starts the configured transport and returns it with a health
// check and a close function.
func openBridge(ctx context.Context, cfg *config.BootstrapConfig, logger customlog.Logger) (teleop.Bridge, diagnostic.Check, func(), error) {
	switch cfg.Bridge.Transport {
	case config.TransportZeroMQ:
		b, err := zeromq.NewBridge(zeromq.Options{
			PublishAddress:  cfg.Bridge.ZeroMQ.PublishAddress,
			ResponseAddress: cfg.Bridge.ZeroMQ.ResponseAddress,
			VelocityTopic:   cfg.VelocityTopic(),
			ServiceType:     cfg.Bridge.ServiceType,
		}, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to start ZeroMQ bridge: %w", err)
		}
		b.Start()
		check := func() (bool, string) {
			return true, fmt.Sprintf("zeromq, %d pending calls", b.Pending())
		}
		return b, check, b.Stop, nil

	case config.TransportRosbridge:
		client := rosbridge.NewClient(rosbridge.Options{
			URL:           cfg.Bridge.URL,
			VelocityTopic: cfg.VelocityTopic(),
			VelocityType:  cfg.Bridge.VelocityType,
			ServiceType:   cfg.Bridge.ServiceType,
		}, logger)
		// Run keeps retrying, so a robot that is not up yet is not fatal
		go client.Run(ctx)
		check := func() (bool, string) {
			if !client.Connected() {
				return false, "rosbridge disconnected from " + cfg.Bridge.URL
			}
			return true, fmt.Sprintf("rosbridge, %d pending calls", client.Pending())
		}
		return client, check, func() { client.Close() }, nil
	}
	return nil, nil, nil, fmt.Errorf("invalid bridge.transport %q", cfg.Bridge.Transport)
}

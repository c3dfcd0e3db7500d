package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/netlens/internal/stream"
	"github.com/user/netlens/internal/tui"
)

var radarCmd = &cobra.Command{
	Use:   "radar",
	Short: "Live view of banners as the service finds them",
	RunE:  runRadar,
}

func runRadar(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	factory := func(ctx context.Context) (stream.Channel, error) {
		ch, err := client.StreamBanners(ctx, 90*time.Second)
		if err != nil {
			return nil, err
		}
		return ch, nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	return tui.NewRadar(factory).Run(ctx)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show general information about your account",
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	info, err := client.Info(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Query credits available: %d\n", info.QueryCredits)
	fmt.Printf("Scan credits available:  %d\n", info.ScanCredits)
	return nil
}

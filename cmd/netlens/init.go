package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/netlens/internal/api"
	"github.com/user/netlens/internal/util"
)

var successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))

var initCmd = &cobra.Command{
	Use:   "init <api key>",
	Short: "Initialize the netlens command-line",
	Args:  cobra.ExactArgs(1),
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	key := strings.TrimSpace(args[0])

	// Make sure it's a valid API key before storing it.
	client := api.NewClient(key, cfg.APIURL, cfg.StreamURL, cfg.HTTPTimeout)
	if _, err := client.Info(cmd.Context()); err != nil {
		return fmt.Errorf("invalid API key")
	}

	if err := util.SaveAPIKey(cfg.DataDir, key); err != nil {
		return err
	}

	fmt.Println(successStyle.Render("Successfully initialized"))
	return nil
}

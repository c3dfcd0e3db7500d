package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var countCmd = &cobra.Command{
	Use:   "count <search query>",
	Short: "Return the number of results for a search",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCount,
}

func runCount(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("empty search query")
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	result, err := client.Count(cmd.Context(), query, "")
	if err != nil {
		return err
	}

	fmt.Println(result.Total)
	return nil
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/netlens/internal/format"
)

var (
	searchColor     bool
	searchFields    string
	searchLimit     int
	searchSeparator string
)

var searchCmd = &cobra.Command{
	Use:   "search <search query>",
	Short: "Search the banner database",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&searchColor, "color", true,
		"Colorize the output")
	searchCmd.Flags().StringVar(&searchFields, "fields", "ip_str,port,hostnames,data",
		"List of properties to show in the search results")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 100,
		"The number of search results that should be returned. Maximum: 1000")
	searchCmd.Flags().StringVar(&searchSeparator, "separator", "\t",
		"The separator between the properties of the search results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("empty search query")
	}

	if searchLimit > 1000 {
		return fmt.Errorf("too many results requested, maximum is 1,000")
	}

	fields := format.ParseFields(searchFields)
	if len(fields) == 0 {
		return fmt.Errorf("please define at least one property to show")
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	shown := 0
	for page := 1; shown < searchLimit; page++ {
		result, err := client.Search(cmd.Context(), query, page)
		if err != nil {
			return err
		}
		if page == 1 && result.Total == 0 {
			return fmt.Errorf("no search results found")
		}
		if len(result.Matches) == 0 {
			break
		}

		for _, banner := range result.Matches {
			fmt.Println(format.Row(banner, fields, searchSeparator, searchColor))
			shown++
			if shown >= searchLimit {
				break
			}
		}
	}

	return nil
}

package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/netlens/internal/api"
	"github.com/user/netlens/internal/format"
)

var (
	statsLimit    int
	statsFacets   string
	statsFilename string
)

var facetKeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
var facetCountStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

var statsCmd = &cobra.Command{
	Use:   "stats <search query>",
	Short: "Provide summary information about a search query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsLimit, "limit", 10,
		"The number of results to return per facet")
	statsCmd.Flags().StringVar(&statsFacets, "facets", "country,org",
		"List of facets to get statistics for")
	statsCmd.Flags().StringVarP(&statsFilename, "filename", "O", "",
		"Save the results in a CSV file of the provided name")
}

func runStats(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("empty search query")
	}

	var facets []string
	for _, facet := range strings.Split(statsFacets, ",") {
		if facet = strings.TrimSpace(facet); facet != "" {
			facets = append(facets, fmt.Sprintf("%s:%d", facet, statsLimit))
		}
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	result, err := client.Count(cmd.Context(), query, strings.Join(facets, ","))
	if err != nil {
		return err
	}

	for facet, values := range result.Facets {
		fmt.Printf("Top %d Results for Facet: %s\n", len(values), facet)
		for _, item := range values {
			fmt.Printf("%s%s\n",
				facetKeyStyle.Render(fmt.Sprintf("%-28s", format.ValueString(item.Value))),
				facetCountStyle.Render(fmt.Sprintf("%12d", item.Count)))
		}
		fmt.Println()
	}

	if statsFilename != "" {
		if err := writeStatsCSV(statsFilename, query, result); err != nil {
			return err
		}
	}

	return nil
}

// writeStatsCSV writes the facet breakdowns side by side, two columns
// (value, count) per facet.
func writeStatsCSV(filename, query string, result *api.SearchResult) error {
	if !strings.HasSuffix(filename, ".csv") {
		filename += ".csv"
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	w.Write([]string{"Query", query})
	w.Write([]string{})

	facets := make([]string, 0, len(result.Facets))
	header := make([]string, 0, len(result.Facets)*2)
	for facet := range result.Facets {
		facets = append(facets, facet)
		header = append(header, facet, "")
	}
	w.Write(header)

	for i := 0; ; i++ {
		row := make([]string, len(facets)*2)
		hasItems := false
		for pos, facet := range facets {
			values := result.Facets[facet]
			if i < len(values) {
				hasItems = true
				row[pos*2] = format.ValueString(values[i].Value)
				row[pos*2+1] = fmt.Sprintf("%d", values[i].Count)
			}
		}
		if !hasItems {
			break
		}
		w.Write(row)
	}

	return w.Error()
}

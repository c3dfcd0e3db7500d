package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/netlens/internal/sink"
	"github.com/user/netlens/internal/spin"
	"github.com/user/netlens/internal/util"
)

var downloadLimit int

var downloadCmd = &cobra.Command{
	Use:   "download <filename> <search query>",
	Short: "Download search results into a compressed JSON file",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runDownload,
}

func init() {
	downloadCmd.Flags().IntVar(&downloadLimit, "limit", 1000,
		"The number of results to download. -1 to download all the data possible.")
}

func runDownload(cmd *cobra.Command, args []string) error {
	filename := strings.TrimSpace(args[0])
	if filename == "" {
		return fmt.Errorf("empty filename")
	}
	filename = sink.EnsureExt(filename)

	query := strings.TrimSpace(strings.Join(args[1:], " "))
	if query == "" {
		return fmt.Errorf("empty search query")
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	count, err := client.Count(cmd.Context(), query, "")
	if err != nil {
		return err
	}
	info, err := client.Info(cmd.Context())
	if err != nil {
		return err
	}

	limit := downloadLimit
	if limit <= 0 || limit > count.Total {
		limit = count.Total
	}

	fmt.Printf("Search query:\t\t\t%s\n", query)
	fmt.Printf("Total number of results:\t%d\n", count.Total)
	fmt.Printf("Query credits left:\t\t%d\n", info.QueryCredits)
	fmt.Printf("Output file:\t\t\t%s\n", filename)

	w, err := sink.Open(filename, "w", cfg.CompressLevel)
	if err != nil {
		return err
	}
	defer w.Close()

	ind := spin.Start(os.Stdout)

	saved := 0
	var pageErr error
	for page := 1; saved < limit; page++ {
		result, err := client.Search(cmd.Context(), query, page)
		if err != nil {
			pageErr = err
			break
		}
		if len(result.Matches) == 0 {
			break
		}

		for _, banner := range result.Matches {
			if err := w.Write(banner); err != nil {
				ind.Stop()
				return err
			}
			saved++
			if saved >= limit {
				break
			}
		}
	}

	ind.Stop()

	if pageErr != nil {
		if saved == 0 {
			return pageErr
		}
		util.Warn("download stopped early: %v", pageErr)
	}
	if saved < limit {
		fmt.Println("Notice: fewer results were saved than requested")
	}
	fmt.Printf("Saved %d results into file %s\n", saved, filename)
	return nil
}

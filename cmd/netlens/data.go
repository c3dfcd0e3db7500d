package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/netlens/internal/api"
	"github.com/user/netlens/internal/spin"
)

var dataDataset string

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Bulk data downloads from the query service",
}

var dataListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available datasets or the files of one dataset",
	RunE:  runDataList,
}

var dataDownloadCmd = &cobra.Command{
	Use:   "download <file name>",
	Short: "Download a file from a dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runDataDownload,
}

func init() {
	dataListCmd.Flags().StringVar(&dataDataset, "dataset", "",
		"See the available files in the given dataset")
	dataDownloadCmd.Flags().StringVar(&dataDataset, "dataset", "",
		"The dataset to download the file from")
	dataDownloadCmd.MarkFlagRequired("dataset")

	dataCmd.AddCommand(dataListCmd)
	dataCmd.AddCommand(dataDownloadCmd)
}

func runDataList(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	if dataDataset == "" {
		datasets, err := client.Datasets(cmd.Context())
		if err != nil {
			return err
		}
		for _, d := range datasets {
			fmt.Printf("%-20s %-10s %s\n", d.Name, d.Scope, d.Description)
		}
		return nil
	}

	files, err := client.DatasetFiles(cmd.Context(), dataDataset)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Printf("%-40s %10d  %s\n", f.Name, f.Size, f.Timestamp)
	}
	return nil
}

func runDataDownload(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	files, err := client.DatasetFiles(cmd.Context(), dataDataset)
	if err != nil {
		return err
	}

	var target *api.DatasetFile
	for i := range files {
		if files[i].Name == args[0] {
			target = &files[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("file %q not found in dataset %s", args[0], dataDataset)
	}

	f, err := os.Create(target.Name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target.Name, err)
	}
	defer f.Close()

	ind := spin.Start(os.Stdout)
	err = client.FetchFile(cmd.Context(), target.URL, f)
	ind.Stop()
	if err != nil {
		return err
	}

	fmt.Printf("Saved %s\n", target.Name)
	return nil
}

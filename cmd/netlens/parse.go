package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/netlens/internal/format"
	"github.com/user/netlens/internal/model"
	"github.com/user/netlens/internal/sink"
)

var (
	parseColor     bool
	parseFields    string
	parseFilters   []string
	parseFilename  string
	parseSeparator string
)

var parseCmd = &cobra.Command{
	Use:   "parse <filenames>",
	Short: "Extract information out of compressed JSON files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runParse,
}

func init() {
	parseCmd.Flags().BoolVar(&parseColor, "color", true,
		"Colorize the output")
	parseCmd.Flags().StringVar(&parseFields, "fields", "ip_str,port,hostnames,data",
		"List of properties to output")
	parseCmd.Flags().StringArrayVarP(&parseFilters, "filters", "f", nil,
		"Filter the results for specific values using key:value pairs")
	parseCmd.Flags().StringVarP(&parseFilename, "filename", "O", "",
		"Save the filtered results in the given file (append if file exists)")
	parseCmd.Flags().StringVar(&parseSeparator, "separator", "\t",
		"The separator between the properties of the search results")
}

func runParse(cmd *cobra.Command, args []string) error {
	fields := format.ParseFields(parseFields)
	if len(fields) == 0 {
		return fmt.Errorf("please define at least one property to show")
	}

	var out *sink.Writer
	if parseFilename != "" {
		// Re-saving without filters would just duplicate the input.
		if len(parseFilters) == 0 {
			return fmt.Errorf("output file specified without any filters, nothing to do")
		}

		w, err := sink.Open(sink.EnsureExt(parseFilename), "a", cfg.CompressLevel)
		if err != nil {
			return err
		}
		defer w.Close()
		out = w
	}

	for _, filename := range args {
		err := sink.ReadFile(filename, func(b model.Banner) error {
			if len(parseFilters) > 0 && !format.MatchesFilters(b, parseFilters) {
				return nil
			}
			if out != nil {
				if err := out.Write(b); err != nil {
					return err
				}
			}
			fmt.Println(format.Row(b, fields, parseSeparator, parseColor))
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/netlens/internal/model"
	"github.com/user/netlens/internal/scanmon"
	"github.com/user/netlens/internal/sink"
	"github.com/user/netlens/internal/spin"
	"github.com/user/netlens/internal/storage"
	"github.com/user/netlens/internal/util"
)

var (
	scanWait     int
	scanFilename string
	scanForce    bool
	scanVerbose  bool
	scanListNum  int
)

var (
	scanHostStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	scanPortStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	scanProtoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan an IP/netblock using the query service",
}

var scanSubmitCmd = &cobra.Command{
	Use:   "submit <netblocks>",
	Short: "Scan one or more IPs/netblocks and wait for the results",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScanSubmit,
}

var scanStatusCmd = &cobra.Command{
	Use:   "status <scan id>",
	Short: "Check the status of an on-demand scan",
	Args:  cobra.ExactArgs(1),
	RunE:  runScanStatus,
}

var scanListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scans submitted from this machine",
	RunE:  runScanList,
}

var scanProtocolsCmd = &cobra.Command{
	Use:   "protocols",
	Short: "List the protocols that on-demand scans support",
	RunE:  runScanProtocols,
}

func init() {
	scanSubmitCmd.Flags().IntVar(&scanWait, "wait", 20,
		"How long to wait for results to come back. If this is set to \"0\" or below return immediately.")
	scanSubmitCmd.Flags().StringVar(&scanFilename, "filename", "",
		"Save the results in the given file")
	scanSubmitCmd.Flags().BoolVar(&scanForce, "force", false,
		"Force the service to re-scan the netblocks")
	scanSubmitCmd.Flags().BoolVar(&scanVerbose, "verbose", false,
		"Print scan status information")

	scanListCmd.Flags().IntVar(&scanListNum, "limit", 20,
		"The number of scans to show")

	scanCmd.AddCommand(scanSubmitCmd)
	scanCmd.AddCommand(scanStatusCmd)
	scanCmd.AddCommand(scanListCmd)
	scanCmd.AddCommand(scanProtocolsCmd)
}

func runScanSubmit(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	var history *storage.ScanHistory
	if db, err := storage.Initialize(cfg.DataDir); err == nil {
		history = storage.NewScanHistory(db)
	} else {
		util.Warn("scan history unavailable: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	monitor := &scanmon.Monitor{
		Service:      scanmon.Wrap(client),
		Netblocks:    args,
		Force:        scanForce,
		Wait:         time.Duration(scanWait) * time.Second,
		PollInterval: cfg.ScanPollInterval,
		OnSubmit: func(job *model.ScanJob) {
			now := time.Now().Format("2006-01-02 15:04")
			fmt.Println()
			fmt.Printf("Starting scan at %s - %d scan credits left\n", now, job.CreditsLeft)
			if scanVerbose {
				fmt.Printf("# Scan ID: %s\n", job.ID)
			}
			if history != nil {
				if err := history.SaveScan(job); err != nil {
					util.Warn("failed to record scan: %v", err)
				}
			}
		},
	}
	if scanVerbose {
		monitor.OnStatus = func(status model.ScanStatus) {
			fmt.Printf("# Scan status: %s\n", status)
		}
	}

	var ind *spin.Indicator
	if scanWait > 0 {
		defer func() {
			if ind != nil {
				ind.Stop()
			}
		}()
		prev := monitor.OnSubmit
		monitor.OnSubmit = func(job *model.ScanJob) {
			prev(job)
			ind = spin.Start(os.Stdout)
		}
	}

	result, runErr := monitor.Run(ctx)
	if ind != nil {
		ind.Stop()
		ind = nil
	}
	if result == nil {
		return runErr
	}

	if scanWait <= 0 {
		fmt.Println("Exiting now, not waiting for results. Use the API or website to retrieve the results of the scan.")
		return nil
	}

	count := printScanResults(result)

	if scanFilename != "" {
		if err := saveScanResults(result, scanFilename); err != nil {
			return err
		}
	}

	if history != nil {
		if err := history.UpdateScan(result.Job.ID, result.Job.Status, count); err != nil {
			util.Warn("failed to update scan history: %v", err)
		}
	}

	return runErr
}

// printScanResults renders the grouped result table and returns the number
// of banners shown.
func printScanResults(result *scanmon.Result) int {
	if len(result.Hosts) == 0 {
		fmt.Println("No open ports found or the host has been recently crawled and can't get scanned again so soon.")
		return 0
	}

	count := 0
	for _, host := range result.Hosts {
		first := host.Banners[0]

		fmt.Print(scanHostStyle.Render(host.IP))
		if names := first.Hostnames(); len(names) > 0 {
			fmt.Printf(" (%s)", strings.Join(names, ", "))
		}
		fmt.Println()

		if org, ok := first["org"].(string); ok && org != "" {
			fmt.Printf("  %-25s%s\n", "Organization", org)
		}
		if osName, ok := first["os"].(string); ok && osName != "" {
			fmt.Printf("  %-25s%s\n", "Operating System", osName)
		}

		fmt.Println("  Open Ports:")
		for _, banner := range host.Banners {
			fmt.Printf("    %s/%s",
				scanPortStyle.Render(fmt.Sprintf("%d", banner.Port())),
				scanProtoStyle.Render(banner.Transport()))
			if product, ok := banner["product"].(string); ok && product != "" {
				fmt.Printf(" %s", product)
				if version, ok := banner["version"].(string); ok && version != "" {
					fmt.Printf(" (%s)", version)
				}
			}
			fmt.Println()
			count++
		}
		fmt.Println()
	}
	return count
}

func saveScanResults(result *scanmon.Result, filename string) error {
	w, err := sink.Open(sink.EnsureExt(filename), "w", cfg.CompressLevel)
	if err != nil {
		return err
	}
	defer w.Close()

	for _, host := range result.Hosts {
		for _, banner := range host.Banners {
			if err := w.Write(banner); err != nil {
				return err
			}
		}
	}
	return nil
}

func runScanStatus(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	status, err := client.ScanStatus(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Println(status)
	return nil
}

func runScanList(cmd *cobra.Command, args []string) error {
	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open scan history: %w", err)
	}

	records, err := storage.NewScanHistory(db).ListScans(scanListNum)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No scans have been submitted from this machine yet.")
		return nil
	}

	fmt.Printf("# %-28s %-10s %8s  %s\n", "Scan ID", "Status", "Results", "Netblocks")
	for _, r := range records {
		fmt.Printf("%-30s %-10s %8d  %s\n",
			r.ScanID, r.Status, r.Results, strings.Join(r.Netblocks, ", "))
	}
	return nil
}

func runScanProtocols(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	protocols, err := client.Protocols(cmd.Context())
	if err != nil {
		return err
	}

	for name, description := range protocols {
		fmt.Printf("%s%s\n", scanProtoStyle.Render(fmt.Sprintf("%-30s", name)), description)
	}
	return nil
}

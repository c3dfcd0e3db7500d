package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/netlens/internal/api"
	"github.com/user/netlens/internal/model"
	"github.com/user/netlens/internal/sink"
)

var (
	hostHistory  bool
	hostFilename string
	hostSave     bool
)

var (
	hostIPStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	hostPortStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	hostProtoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	hostVulnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

var hostCmd = &cobra.Command{
	Use:   "host <ip address>",
	Short: "View all available information for an IP address",
	Args:  cobra.ExactArgs(1),
	RunE:  runHost,
}

func init() {
	hostCmd.Flags().BoolVar(&hostHistory, "history", false,
		"Show the complete history of the host")
	hostCmd.Flags().StringVarP(&hostFilename, "filename", "O", "",
		"Save the host information in the given file (append if file exists)")
	hostCmd.Flags().BoolVarP(&hostSave, "save", "S", false,
		"Save the host information in a file named after the IP (append if file exists)")
}

func runHost(cmd *cobra.Command, args []string) error {
	ip := args[0]

	client, err := newClient()
	if err != nil {
		return err
	}

	host, err := client.Host(cmd.Context(), ip, hostHistory)
	if err != nil {
		return err
	}

	printHost(ip, host)

	// Pad the banner list with placeholders for ports the account can't
	// see data for, so every open port still shows up.
	padFilteredPorts(host)

	banners := host.Data
	sort.Slice(banners, func(i, j int) bool { return banners[i].Port() < banners[j].Port() })

	fmt.Println("Ports:")
	for _, banner := range banners {
		printBannerLine(banner)
	}

	if hostFilename != "" || hostSave {
		filename := hostFilename
		if hostSave {
			filename = ip
		}
		filename = sink.EnsureExt(filename)

		w, err := sink.Open(filename, "a", cfg.CompressLevel)
		if err != nil {
			return err
		}
		defer w.Close()

		for _, banner := range banners {
			if err := w.Write(banner); err != nil {
				return err
			}
		}
	}

	return nil
}

func printHost(ip string, host *api.HostInfo) {
	fmt.Println(hostIPStyle.Render(ip))
	if len(host.Hostnames) > 0 {
		fmt.Printf("%-25s%s\n", "Hostnames:", strings.Join(host.Hostnames, ";"))
	}
	if host.City != "" {
		fmt.Printf("%-25s%s\n", "City:", host.City)
	}
	if host.CountryName != "" {
		fmt.Printf("%-25s%s\n", "Country:", host.CountryName)
	}
	if host.OS != "" {
		fmt.Printf("%-25s%s\n", "Operating System:", host.OS)
	}
	if host.Org != "" {
		fmt.Printf("%-25s%s\n", "Organization:", host.Org)
	}
	if host.LastUpdate != "" {
		fmt.Printf("%-25s%s\n", "Updated:", host.LastUpdate)
	}
	fmt.Printf("%-25s%d\n", "Number of open ports:", len(host.Ports))

	if len(host.Vulns) > 0 {
		vulns := make([]string, 0, len(host.Vulns))
		for _, vuln := range host.Vulns {
			if strings.HasPrefix(vuln, "!") {
				continue
			}
			vulns = append(vulns, hostVulnStyle.Render(vuln))
		}
		if len(vulns) > 0 {
			fmt.Printf("%-25s%s\n", "Vulnerabilities:", strings.Join(vulns, "\t"))
		}
	}
	fmt.Println()
}

// padFilteredPorts synthesizes placeholder banners for open ports whose
// data the account can't access. Placeholders are display-only and never
// persisted.
func padFilteredPorts(host *api.HostInfo) {
	if len(host.Ports) == len(host.Data) || len(host.Data) == 0 {
		return
	}

	covered := make(map[int]bool, len(host.Data))
	for _, banner := range host.Data {
		covered[banner.Port()] = true
	}

	lastTimestamp, _ := host.Data[len(host.Data)-1]["timestamp"].(string)
	for _, port := range host.Ports {
		if covered[port] {
			continue
		}
		host.Data = append(host.Data, model.Banner{
			"port":        port,
			"transport":   "tcp",
			"timestamp":   lastTimestamp,
			"placeholder": true,
		})
	}
}

func printBannerLine(banner model.Banner) {
	product, _ := banner["product"].(string)
	version := ""
	if v, ok := banner["version"].(string); ok && v != "" {
		version = fmt.Sprintf("(%s)", v)
	}

	fmt.Printf("%s/%s %s %s",
		hostPortStyle.Render(fmt.Sprintf("%7d", banner.Port())),
		hostProtoStyle.Render(banner.Transport()),
		product, version)

	if hostHistory {
		if ts, ok := banner["timestamp"].(string); ok && len(ts) >= 10 {
			fmt.Printf("\t\t(%s)", ts[:10])
		}
	}
	fmt.Println()
}

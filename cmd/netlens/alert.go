package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var alertExpired bool

var (
	alertIDStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	alertNameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	alertExpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Manage the network alerts for your account",
}

var alertCreateCmd = &cobra.Command{
	Use:   "create <name> <netblocks>",
	Short: "Create a network alert to monitor an external network",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAlertCreate,
}

var alertListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all the active alerts",
	RunE:  runAlertList,
}

var alertRemoveCmd = &cobra.Command{
	Use:   "remove <alert id>",
	Short: "Remove the specified alert",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertRemove,
}

var alertClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all alerts",
	RunE:  runAlertClear,
}

func init() {
	alertListCmd.Flags().BoolVar(&alertExpired, "expired", true,
		"Whether or not to show expired alerts")

	alertCmd.AddCommand(alertCreateCmd)
	alertCmd.AddCommand(alertListCmd)
	alertCmd.AddCommand(alertRemoveCmd)
	alertCmd.AddCommand(alertClearCmd)
}

func runAlertCreate(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	alert, err := client.CreateAlert(cmd.Context(), args[0], args[1:])
	if err != nil {
		return err
	}

	fmt.Println(successStyle.Render("Successfully created network alert!"))
	fmt.Printf("Alert ID: %s\n", alertIDStyle.Render(alert.ID))
	return nil
}

func runAlertList(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	alerts, err := client.Alerts(cmd.Context(), alertExpired)
	if err != nil {
		return err
	}

	if len(alerts) == 0 {
		fmt.Println("You haven't created any alerts yet.")
		return nil
	}

	fmt.Printf("# %-14s %-21s %s\n", "Alert ID", "Name", "IP/ Network")
	for _, alert := range alerts {
		fmt.Printf("%-16s %-30s %-35s",
			alertIDStyle.Render(alert.ID),
			alertNameStyle.Render(alert.Name),
			strings.Join(alert.Netblocks, ", "))
		if alert.Expired {
			fmt.Print(alertExpStyle.Render("expired"))
		}
		fmt.Println()
	}
	return nil
}

func runAlertRemove(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	if err := client.DeleteAlert(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Println("Alert deleted")
	return nil
}

func runAlertClear(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	alerts, err := client.Alerts(cmd.Context(), true)
	if err != nil {
		return err
	}

	for _, alert := range alerts {
		fmt.Printf("Removing %s (%s)\n", alert.Name, alert.ID)
		if err := client.DeleteAlert(cmd.Context(), alert.ID); err != nil {
			return err
		}
	}

	fmt.Println("Alerts deleted")
	return nil
}

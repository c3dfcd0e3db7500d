package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	honeypotStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	notHoneypotStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

var honeyscoreCmd = &cobra.Command{
	Use:   "honeyscore <ip address>",
	Short: "Check whether the IP is a honeypot or not",
	Args:  cobra.ExactArgs(1),
	RunE:  runHoneyscore,
}

func runHoneyscore(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	score, err := client.HoneyScore(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("unable to calculate honeyscore: %w", err)
	}

	if score >= 0.5 {
		fmt.Println(honeypotStyle.Render("Honeypot detected"))
	} else {
		fmt.Println(notHoneypotStyle.Render("Not a honeypot"))
	}
	fmt.Printf("Score: %.1f\n", score)
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var myipCmd = &cobra.Command{
	Use:   "myip",
	Short: "Print your external IP address",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		ip, err := client.MyIP(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println(ip)
		return nil
	},
}

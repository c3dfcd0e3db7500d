package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/netlens/internal/api"
	"github.com/user/netlens/internal/util"
)

var (
	cfgFile string
	cfg     *util.Config
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "netlens",
	Short: "Query and stream Internet-wide device intelligence",
	Long: `netlens is a command-line client for a host intelligence service:

- Search and count banner records across the Internet
- Stream new banners in real-time and archive them as .json.gz
- Submit on-demand scans and watch their results come in
- Manage network alerts and parse stored data files

Run "netlens init <api key>" before any other command.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.netlens/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info",
		"log level (debug, info, warn, error)")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	// Add subcommands
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(myipCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(dataCmd)
	rootCmd.AddCommand(honeyscoreCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(alertCmd)
	rootCmd.AddCommand(radarCmd)
	rootCmd.AddCommand(versionCmd)

	// Add shell completion
	rootCmd.AddCommand(completionCmd)
}

func initConfig() {
	var err error
	cfg, err = util.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	util.InitLogger(cfg.LogLevel)
}

// newClient builds an API client with the stored key.
func newClient() (*api.Client, error) {
	key, err := util.LoadAPIKey(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	return api.NewClient(key, cfg.APIURL, cfg.StreamURL, cfg.HTTPTimeout), nil
}

// signalContext returns a context cancelled by SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("netlens version 1.0.0")
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for netlens.

To load completions:

Bash:
  $ source <(netlens completion bash)

Zsh:
  $ source <(netlens completion zsh)

Fish:
  $ netlens completion fish | source

PowerShell:
  PS> netlens completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Run: func(cmd *cobra.Command, args []string) {
		switch args[0] {
		case "bash":
			cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
	},
}

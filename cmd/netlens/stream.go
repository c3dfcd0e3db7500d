package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/netlens/internal/format"
	"github.com/user/netlens/internal/model"
	"github.com/user/netlens/internal/sink"
	"github.com/user/netlens/internal/stream"
	"github.com/user/netlens/internal/util"
)

var (
	streamColor         bool
	streamFields        string
	streamSeparator     string
	streamLimit         int
	streamDatadir       string
	streamPorts         string
	streamQuiet         bool
	streamTimeout       int
	streamStreamer      string
	streamCountries     string
	streamASN           string
	streamAlertID       string
	streamCompressLevel int
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream banner data in real-time",
	RunE:  runStream,
}

func init() {
	streamCmd.Flags().BoolVar(&streamColor, "color", true,
		"Colorize the output")
	streamCmd.Flags().StringVar(&streamFields, "fields", "ip_str,port,hostnames,data",
		"List of properties to output")
	streamCmd.Flags().StringVar(&streamSeparator, "separator", "\t",
		"The separator between the properties of the search results")
	streamCmd.Flags().IntVar(&streamLimit, "limit", -1,
		"The number of results to process. -1 to stream forever.")
	streamCmd.Flags().StringVar(&streamDatadir, "datadir", "",
		"Save the stream data into the specified directory as .json.gz files")
	streamCmd.Flags().StringVar(&streamPorts, "ports", "",
		"A comma-separated list of ports to grab data on")
	streamCmd.Flags().BoolVar(&streamQuiet, "quiet", false,
		"Disable the printing of information to the screen")
	streamCmd.Flags().IntVar(&streamTimeout, "timeout", 0,
		"Idle timeout. Should the stream cease to send data, timeout after this many seconds.")
	streamCmd.Flags().StringVar(&streamStreamer, "streamer", "",
		"Specify a custom stream server to use for grabbing data")
	streamCmd.Flags().StringVar(&streamCountries, "countries", "",
		"A comma-separated list of countries to grab data on")
	streamCmd.Flags().StringVar(&streamASN, "asn", "",
		"A comma-separated list of ASNs to grab data on")
	streamCmd.Flags().StringVar(&streamAlertID, "alert", "",
		"The network alert ID or \"all\" to subscribe to all network alerts on your account")
	streamCmd.Flags().IntVar(&streamCompressLevel, "compresslevel", 9,
		"The gzip compression level (0-9; 0 = no compression, 9 = most compression)")
}

func runStream(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	if streamStreamer != "" {
		client.SetStreamURL(streamStreamer)
	}

	fields := format.ParseFields(streamFields)
	if len(fields) == 0 {
		return fmt.Errorf("please define at least one property to show")
	}

	// The subscription filters are mutually exclusive.
	chosen := 0
	for _, flag := range []string{streamPorts, streamCountries, streamASN, streamAlertID} {
		if flag != "" {
			chosen++
		}
	}
	if chosen > 1 {
		return fmt.Errorf("please use --ports, --countries, --asn OR --alert, you can't subscribe to multiple filtered streams at once")
	}

	idle := time.Duration(streamTimeout) * time.Second

	var factory stream.Factory
	switch {
	case streamPorts != "":
		ports, err := parsePortList(streamPorts)
		if err != nil {
			return err
		}
		factory = func(ctx context.Context) (stream.Channel, error) {
			ch, err := client.StreamPorts(ctx, ports, idle)
			if err != nil {
				return nil, err
			}
			return ch, nil
		}
	case streamCountries != "":
		countries := strings.Split(streamCountries, ",")
		factory = func(ctx context.Context) (stream.Channel, error) {
			ch, err := client.StreamCountries(ctx, countries, idle)
			if err != nil {
				return nil, err
			}
			return ch, nil
		}
	case streamASN != "":
		asns := strings.Split(streamASN, ",")
		factory = func(ctx context.Context) (stream.Channel, error) {
			ch, err := client.StreamASN(ctx, asns, idle)
			if err != nil {
				return nil, err
			}
			return ch, nil
		}
	case streamAlertID != "":
		alertID := strings.TrimSpace(streamAlertID)
		if strings.EqualFold(alertID, "all") {
			alertID = ""
		}
		factory = func(ctx context.Context) (stream.Channel, error) {
			ch, err := client.StreamAlert(ctx, alertID, idle)
			if err != nil {
				return nil, err
			}
			return ch, nil
		}
	default:
		factory = func(ctx context.Context) (stream.Channel, error) {
			ch, err := client.StreamBanners(ctx, idle)
			if err != nil {
				return nil, err
			}
			return ch, nil
		}
	}

	var rotator *sink.Rotator
	if streamDatadir != "" {
		if err := util.EnsureDir(streamDatadir); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
		level := streamCompressLevel
		if !cmd.Flags().Changed("compresslevel") {
			level = cfg.CompressLevel
		}
		rotator = sink.NewRotator(streamDatadir, level)
		defer rotator.Close()
	}

	var handle func(model.Banner)
	if !streamQuiet {
		handle = func(b model.Banner) {
			fmt.Println(format.Row(b, fields, streamSeparator, streamColor))
		}
	}

	consumer := &stream.Consumer{
		Factory: factory,
		Limit:   streamLimit,
		Rotator: rotator,
		Handle:  handle,
		Backoff: cfg.StreamBackoff,
	}

	ctx, cancel := signalContext()
	defer cancel()

	_, err = consumer.Run(ctx)
	return err
}

func parsePortList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	ports := make([]int, 0, len(parts))
	for _, p := range parts {
		port, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid list of ports")
		}
		ports = append(ports, port)
	}
	return ports, nil
}

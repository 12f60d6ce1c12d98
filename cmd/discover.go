package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/bugVanisher/berrycam/discovery"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find phones streaming on the local network",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		scanner := newScanner()
		out := cmd.OutOrStdout()
		if disc.once {
			return printDevices(out, scanner.Scan(ctx), disc.json)
		}
		ctx, cancel := context.WithTimeout(ctx, duration)
		defer cancel()
		discovery.Run(ctx, scanner, fileCfg.Discovery.Interval, func(devices []discovery.Device) {
			if err := printDevices(out, devices, disc.json); err != nil {
				cancel()
			}
		})
		return nil
	},
}

type discoverArgs struct {
	once bool
	json bool
}

var disc discoverArgs

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().BoolVar(&disc.once, "once", false, "scan once and exit")
	discoverCmd.Flags().BoolVar(&disc.json, "json", false, "print devices as json")
}

func newScanner() *discovery.Scanner {
	var opt []discovery.Option
	if fileCfg.Discovery.MDNS {
		opt = append(opt, discovery.WithLister(discovery.NewMDNSLister()))
	}
	return discovery.NewScanner(opt...)
}

func printDevices(w io.Writer, devices []discovery.Device, asJSON bool) error {
	if asJSON {
		b, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(devices, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "no device found")
		return err
	}
	for _, d := range devices {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", d.Name, d.IP); err != nil {
			return err
		}
		for _, p := range d.Protocols {
			if !p.Available {
				continue
			}
			if _, err := fmt.Fprintf(w, "\t%s\t%s\n", p.Name, p.URL); err != nil {
				return err
			}
		}
	}
	return nil
}

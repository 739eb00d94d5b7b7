package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"runtime"

	"github.com/mdouchement/logger"
	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"

	"github.com/mdouchement/ledscd"
	"github.com/mdouchement/ledscd/ledsc"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cpath string
	dummy bool
)

func main() {
	cmd := &cobra.Command{
		Use:     "ledscd",
		Short:   "An HTTP bridge for the LEDSC LED strip controller",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    cobra.NoArgs,
		RunE:    daemon,
	}
	cmd.Flags().StringVarP(&cpath, "config", "c", "/etc/ledscd/ledscd.yml", "Configfile path")
	cmd.Flags().BoolVarP(&dummy, "dummy", "", false, "Start ledscd with a dummy strip controller")
	cmd.AddCommand(portsCommand())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Version for ledscd",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(cmd.Version)
		},
	})

	if err := cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func daemon(_ *cobra.Command, _ []string) error {
	cfg, err := ledscd.Load(cpath)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	h := logger.NewSlogTextHandler(os.Stdout, &logger.SlogTextOption{
		Level:            level,
		ForceColors:      true,
		ForceFormatting:  true,
		PrefixRE:         regexp.MustCompile(`^(\[.*?\])\s`),
		DisableTimestamp: true, // Provided by journalctl
	})
	log := logger.WrapSlogHandler(h)
	ctx := logger.WithLogger(context.Background(), log)

	log.Infof("ledscd version %s", version)

	var strip ledscd.LEDStrip = ledscd.NewDummyLEDStrip()
	if !dummy {
		ctrl, err := ledsc.Open(cfg.Serial.Port, cfg.Serial.Baud, cfg.AckTimeout.Duration)
		if err != nil {
			return fmt.Errorf("ledsc: %w", err)
		}
		if cfg.Debug {
			ctrl.SetLogger(log)
		}

		{
			log.Infof("LEDSC on port `%s`", ctrl.Port())

			// Handshake: the configured device must speak the protocol.
			fw, err := ctrl.FirmwareVersion()
			if err != nil {
				ctrl.Close()
				return fmt.Errorf("handshake: %w", err)
			}
			log.Infof("Firmware - %s", fw)
		}

		defer ctrl.Close()
		strip = ctrl
	}

	server := ledscd.NewServer(log, cfg, strip, version)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if err := server.Launch(ctx); err != nil {
		return err
	}

	log.Info("Gracefully shutdown")
	return nil
}

// portsCommand lists candidate serial devices. Diagnostics only: the
// daemon never picks a port on its own, the config does.
func portsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List detected serial ports",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ports, err := enumerator.GetDetailedPortsList()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Println("No serial ports found")
				return nil
			}

			for _, port := range ports {
				if port.IsUSB {
					fmt.Printf("%s - PID: %s - VID: %s - SN: %s\n", port.Name, port.PID, port.VID, port.SerialNumber)
					continue
				}
				fmt.Println(port.Name)
			}
			return nil
		},
	}
}

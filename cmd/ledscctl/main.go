package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mdouchement/ledscd"
	"github.com/mdouchement/ledscd/cmd/ledscctl/monitor"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	addr string
)

func main() {
	client := &http.Client{}

	cmd := &cobra.Command{
		Use:     "ledscctl",
		Short:   "A ctl used to interact with ledscd",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    cobra.NoArgs,
	}
	cmd.PersistentFlags().StringVarP(&addr, "addr", "a", "http://127.0.0.1:8080", "ledscd base URL")

	cmd.AddCommand(&cobra.Command{
		Use:   "brightness <percent>",
		Short: "Set the strip brightness (0-100)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return post(client, "brightness", url.Values{"brightness_percent": {args[0]}})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "effect <id|name>",
		Short: "Set the lighting effect",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := resolve(client, "effects", args[0])
			if err != nil {
				return err
			}
			return post(client, "effect", url.Values{"effect_id": {id}})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "color <#rrggbb>",
		Short: "Set the strip color",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return post(client, "color", url.Values{"color": {args[0]}})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "palette <id|name>",
		Short: "Set the fire effect color palette",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := resolve(client, "palettes", args[0])
			if err != nil {
				return err
			}
			return post(client, "palette", url.Values{"palette_id": {id}})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "debug <on|off>",
		Short:     "Toggle the firmware serial debug traces",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(_ *cobra.Command, args []string) error {
			return post(client, "debug", url.Values{"enabled": {strconv.FormatBool(args[0] == "on")}})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the firmware status parameters",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var rsp ledscd.DeviceStatusResponse
			if err := get(client, "/api/v1/status", &rsp); err != nil {
				return err
			}

			fmt.Println(strings.Join(rsp.Params, " "))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Print daemon and firmware versions",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var rsp ledscd.VersionResponse
			if err := get(client, "/api/v1/version", &rsp); err != nil {
				return err
			}

			fmt.Printf("Daemon:   %s\nFirmware: %s\n", rsp.Daemon, rsp.Firmware)
			return nil
		},
	})

	cmd.AddCommand(monitor.Command(client, &addr))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Version for ledscctl",
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

//
//
//

func post(client *http.Client, op string, form url.Values) error {
	rsp, err := client.PostForm(addr+"/api/v1/"+op, form)
	if err != nil {
		return err
	}
	defer rsp.Body.Close()

	var status ledscd.StatusResponse
	if err = json.NewDecoder(io.LimitReader(rsp.Body, 64<<10)).Decode(&status); err != nil {
		return fmt.Errorf("%s: bad status: %s", op, rsp.Status)
	}

	if rsp.StatusCode < 200 || rsp.StatusCode >= 300 {
		return fmt.Errorf("%s: %s", op, status.Error)
	}

	fmt.Println("OK")
	return nil
}

func get(client *http.Client, path string, v any) error {
	rsp, err := client.Get(addr + path)
	if err != nil {
		return err
	}
	defer rsp.Body.Close()

	if rsp.StatusCode < 200 || rsp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(rsp.Body, 64<<10))
		return fmt.Errorf("%s: %s: %s", path, rsp.Status, strings.TrimSpace(string(b)))
	}

	return json.NewDecoder(rsp.Body).Decode(v)
}

// resolve accepts an id as-is and maps a name through the daemon catalog.
func resolve(client *http.Client, catalog, arg string) (string, error) {
	if _, err := strconv.Atoi(arg); err == nil {
		return arg, nil
	}

	var entries []ledscd.CatalogEntry
	if err := get(client, "/api/v1/"+catalog, &entries); err != nil {
		return "", err
	}

	for _, entry := range entries {
		if entry.Name == arg {
			return strconv.Itoa(entry.ID), nil
		}
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	return "", fmt.Errorf("unknown name %q, expected one of: %s", arg, strings.Join(names, ", "))
}

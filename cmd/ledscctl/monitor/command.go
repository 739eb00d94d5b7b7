package monitor

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mdouchement/ledscd"
)

func Command(client *http.Client, addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Start the TUI monitor display",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			resp, err := client.Get(*addr + "/api/v1/monitor")
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
				return fmt.Errorf("sse bad status: %s body=%q", resp.Status, string(b))
			}

			m := newTUI()
			tui := tea.NewProgram(m, tea.WithAltScreen())

			go func() {
				var event []byte

				for {
					event, err = ledscd.ReadSSE(resp.Body)
					if err != nil {
						tui.Quit()
						fmt.Println("ERR:", err)
						os.Exit(1)
					}
					if len(event) == 0 {
						continue
					}

					var applied ledscd.Applied
					err = json.Unmarshal(event, &applied)
					if err != nil {
						tui.Quit()
						fmt.Println("ERR:", err)
						os.Exit(1)
					}

					tui.Send(applied)
				}
			}()

			_, err = tui.Run()
			return err
		},
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"assetd/internal/registry"
	"assetd/pkg/types"
)

func defaultAddr() string {
	if v := os.Getenv("ASSETCTL_ADDR"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

// buildRootCmd constructs the assetctl command tree.
func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "assetctl",
		Short:         "Inspect and validate an assetd daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addr := root.PersistentFlags().String("addr", defaultAddr(), "Base URL of the assetd daemon (defaults ASSETCTL_ADDR)")

	validateCmd := &cobra.Command{
		Use:     "validate <catalog>",
		Short:   "Validate an asset catalog file without starting a daemon",
		Example: "  assetctl validate ./catalog.yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog ok: %d assets, %d bundles\n",
				len(reg.Assets()), len(reg.Bundles()))
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:     "status",
		Short:   "Show the daemon's engine status",
		Example: "  assetctl status --addr http://localhost:8080",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var st types.StatusResponse
			if err := getJSON(*addr+"/status", &st); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tier:         %s\n", st.Tier)
			fmt.Fprintf(out, "online:       %v\n", st.Online)
			fmt.Fprintf(out, "context lost: %v\n", st.ContextLost)
			fmt.Fprintf(out, "cache:        %d assets, %d bytes\n", st.Cache.Entries, st.Cache.Bytes)
			fmt.Fprintf(out, "uptime:       %ds\n", st.UptimeSec)
			for _, s := range st.Sessions {
				fmt.Fprintf(out, "session %s  bundle=%s state=%s %d/%d\n",
					s.SessionID, s.BundleID, s.State, s.Progress.Loaded, s.Progress.Total)
			}
			for _, b := range st.Breakers {
				fmt.Fprintf(out, "breaker %s  state=%s failures=%d\n", b.Endpoint, b.State, b.Failures)
			}
			return nil
		},
	}

	bundlesCmd := &cobra.Command{
		Use:     "bundles",
		Short:   "List the bundles the daemon serves",
		Example: "  assetctl bundles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Bundles []types.AssetBundle `json:"bundles"`
			}
			if err := getJSON(*addr+"/bundles", &resp); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, b := range resp.Bundles {
				fmt.Fprintf(out, "%s  priority=%s models=%d textures=%d\n",
					b.ID, b.Priority, len(b.Models), len(b.Textures))
			}
			return nil
		},
	}

	root.AddCommand(validateCmd, statusCmd, bundlesCmd)
	return root
}

func getJSON(url string, v any) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var e types.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("daemon: %s", e.Error)
		}
		return fmt.Errorf("daemon: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

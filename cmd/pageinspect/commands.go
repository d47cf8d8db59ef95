package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/pageinspect/internal/logging"
	"github.com/tinytelemetry/pageinspect/internal/model"
	"github.com/tinytelemetry/pageinspect/internal/persist"
	"github.com/tinytelemetry/pageinspect/internal/socketrpc"
)

func newSettingsCmd(configPath *string) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Print the initial capture settings from config",
		Long: `Print the capture settings the daemon starts with, after defaults, the
config file and PAGEINSPECT_SETTINGS_* variables are applied. Settings
persisted by a running daemon take precedence over these on restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return printValue(cmd.OutOrStdout(), cfg.Settings, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format (yaml, json)")
	return cmd
}

func newStatsCmd(configPath *string) *cobra.Command {
	var socketPath string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show counters from the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := dialDaemon(*configPath, socketPath)
			if err != nil {
				return err
			}
			defer client.Close()

			stats, err := client.GetStats()
			if err != nil {
				return err
			}
			printCategory(cmd, "Logs", stats.Logs)
			printCategory(cmd, "Network", stats.Network)
			return nil
		},
	}
	cmd.Flags().StringVar(&socketPath, "socket", "", "daemon socket path (default from config)")
	return cmd
}

func newStateCmd(configPath *string) *cobra.Command {
	var (
		socketPath string
		sessionID  string
		output     string
	)
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Dump the running daemon's state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := dialDaemon(*configPath, socketPath)
			if err != nil {
				return err
			}
			defer client.Close()

			state, err := client.GetState(sessionID)
			if err != nil {
				return err
			}
			return printValue(cmd.OutOrStdout(), state, output)
		},
	}
	cmd.Flags().StringVar(&socketPath, "socket", "", "daemon socket path (default from config)")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "only entries of this session")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format (json, yaml)")
	return cmd
}

func newSendCmd(configPath *string) *cobra.Command {
	var (
		socketPath string
		sessionID  string
	)
	cmd := &cobra.Command{
		Use:   "send [file]",
		Short: "Send one envelope to the running daemon",
		Long:  "Send one JSON envelope read from file, or from stdin when no file is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 1 {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("reading envelope: %w", err)
			}

			client, err := dialDaemon(*configPath, socketPath)
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.Dispatch(data, sessionID)
			if err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("daemon rejected envelope: %s", resp.Error)
			}
			cmd.Printf("ok (%d processed)\n", resp.Processed)
			return nil
		},
	}
	cmd.Flags().StringVar(&socketPath, "socket", "", "daemon socket path (default from config)")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "origin session for entries without one")
	return cmd
}

func newResetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete the persisted state snapshot",
		Long: `Delete the state snapshot, settings included, from the configured store.
Stop the daemon first; a running daemon writes its state back on the next save.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cfg.StoreBackend == storeNone {
				return errors.New("store-backend none keeps no persisted state")
			}

			store, err := openStateStore(cmd.Context(), cfg, logging.OrDiscard(nil))
			if err != nil {
				return err
			}
			defer store.close()

			saver := persist.NewSaver(store.kv, cfg.StateKey, nil, nil, nil)
			if err := saver.Clear(cmd.Context()); err != nil {
				return err
			}
			cmd.Printf("deleted %q from the %s store\n", saver.Key(), cfg.StoreBackend)
			return nil
		},
	}
}

func printCategory(cmd *cobra.Command, name string, c model.CategoryStats) {
	cmd.Printf("%s\n", name)
	cmd.Printf("  Received:          %d\n", c.Received)
	cmd.Printf("  Stored:            %d\n", c.Stored)
	cmd.Printf("  Dropped by filter: %d\n", c.DroppedByFilter)
	cmd.Printf("  Dropped by limit:  %d\n", c.DroppedByLimit)
	reasons := make([]string, 0, len(c.FilterReasons))
	for r := range c.FilterReasons {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		cmd.Printf("    %-8s %d\n", r+":", c.FilterReasons[r])
	}
}

func dialDaemon(configPath, socketPath string) (*socketrpc.Client, error) {
	if socketPath == "" {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		socketPath = cfg.SocketPath
	}
	client, err := socketrpc.Dial(socketPath)
	if err != nil {
		return nil, fmt.Errorf("is the daemon running? %w", err)
	}
	return client, nil
}

func printValue(w io.Writer, v any, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	serverrun "github.com/mintid/mintid/internal/cmd/server"
	cfgpkg "github.com/mintid/mintid/internal/config"
	"github.com/mintid/mintid/pkg/flake"
)

func main() {
	// Pick up MINTID_* overrides from a local .env, if any.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "mintid",
		Short: "mintid distributed ID generator",
		Long:  "mintid mints 64-bit, time-ordered, globally unique IDs. This CLI runs the server and offers local and remote minting.",
	}

	rootCmd.AddCommand(newServerCommand())
	rootCmd.AddCommand(newGenerateCommand())
	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newGetCommand())
	rootCmd.AddCommand(newBatchCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServerCommand() *cobra.Command {
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	startCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the mintid HTTP server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			httpAddr, _ := cmd.Flags().GetString("http")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			logLevel, _ := cmd.Flags().GetString("log-level")
			machineIDSource, _ := cmd.Flags().GetString("machine-id-source")
			machineID, _ := cmd.Flags().GetUint16("machine-id")

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			if httpAddr != "" {
				cfg.HTTPAddr = httpAddr
			}
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if machineIDSource != "" {
				cfg.MachineID.Source = machineIDSource
			}
			if cmd.Flags().Changed("machine-id") {
				cfg.MachineID.Source = "static"
				cfg.MachineID.Static = machineID
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	startCmd.Flags().String("config", os.Getenv("MINTID_CONFIG"), "Path to a JSON or YAML config file")
	startCmd.Flags().String("http", "", "HTTP listen address (overrides config)")
	startCmd.Flags().String("data-dir", "", "Data directory for the checkpoint store (overrides config)")
	startCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error (overrides config)")
	startCmd.Flags().String("machine-id-source", "", "Machine id source: hostip|static|env|redis|etcd (overrides config)")
	startCmd.Flags().Uint16("machine-id", 0, "Fixed machine id (implies --machine-id-source=static)")
	serverCmd.AddCommand(startCmd)
	return serverCmd
}

func newGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Mint IDs locally, without a server",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("n")
			machineID, _ := cmd.Flags().GetUint16("machine-id")
			startTime, _ := cmd.Flags().GetString("start-time")

			b := flake.NewBuilder()
			if cmd.Flags().Changed("machine-id") {
				b.MachineID(func() (uint16, error) { return machineID, nil })
			}
			if startTime != "" {
				start, err := time.Parse(time.RFC3339, startTime)
				if err != nil {
					return fmt.Errorf("parse --start-time: %w", err)
				}
				b.StartTime(start)
			}
			gen, err := b.Finalize()
			if err != nil {
				return err
			}
			for i := 0; i < n; i++ {
				id, err := nextWithBackoff(gen)
				if err != nil {
					return err
				}
				fmt.Println(id)
			}
			return nil
		},
	}
	cmd.Flags().Int("n", 1, "Number of IDs to mint")
	cmd.Flags().Uint16("machine-id", 0, "Machine id (default: host private IPv4)")
	cmd.Flags().String("start-time", "", "Generator epoch, RFC3339 (default: 2014-09-01T00:00:00Z)")
	return cmd
}

func newInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <id>",
		Short: "Decompose an ID into time, sequence and machine id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parse id: %w", err)
			}
			epochArg, _ := cmd.Flags().GetString("epoch")
			epoch := time.Date(2014, time.September, 1, 0, 0, 0, 0, time.UTC)
			if epochArg != "" {
				epoch, err = time.Parse(time.RFC3339, epochArg)
				if err != nil {
					return fmt.Errorf("parse --epoch: %w", err)
				}
			}
			d := flake.Decompose(id)
			fmt.Printf("id:         %d\n", d.ID)
			fmt.Printf("time:       %d ticks\n", d.Time)
			fmt.Printf("sequence:   %d\n", d.Sequence)
			fmt.Printf("machine_id: %d\n", d.MachineID)
			fmt.Printf("timestamp:  %s\n", d.Timestamp(epoch).Format(time.RFC3339Nano))
			return nil
		},
	}
	cmd.Flags().String("epoch", "", "Epoch the ID was minted against, RFC3339 (default: 2014-09-01T00:00:00Z)")
	return cmd
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Mint one ID from a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetch(apiURL() + "/v1/id")
		},
	}
}

func newBatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Mint a batch of IDs from a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("n")
			return fetch(apiURL() + "/v1/id/batch?n=" + strconv.Itoa(n))
		},
	}
	cmd.Flags().Int("n", 10, "Number of IDs to mint")
	return cmd
}

// nextWithBackoff is the caller-side retry loop around sequence
// exhaustion.
func nextWithBackoff(gen flake.Generator) (uint64, error) {
	for {
		id, err := gen.NextID()
		if errors.Is(err, flake.ErrSequenceExhausted) {
			time.Sleep(flake.TickDuration)
			continue
		}
		return id, err
	}
}

func fetch(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s: %s", resp.Status, body)
	}
	var pretty map[string]any
	if err := json.Unmarshal(body, &pretty); err == nil {
		if id, ok := pretty["id"]; ok {
			fmt.Println(id)
			return nil
		}
		if ids, ok := pretty["ids"].([]any); ok {
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		}
	}
	fmt.Println(string(body))
	return nil
}

func apiURL() string {
	if v := os.Getenv("MINTID_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}

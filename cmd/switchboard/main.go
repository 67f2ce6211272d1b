package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zen-systems/switchboard/pkg/backend"
	"github.com/zen-systems/switchboard/pkg/config"
	"github.com/zen-systems/switchboard/pkg/router"
)

var (
	configFile string
	debugFlag  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "switchboard",
		Short: "Route requests across AI backends with automatic fallback",
		Long: `Switchboard sends each request to the most appropriate AI backend
	based on the request text, falls back through the remaining backends
	when one fails or times out, and returns a single uniform response.`,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(backendsCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func askCmd() *cobra.Command {
	var backendFlag string
	var reportFlag bool

	cmd := &cobra.Command{
		Use:   "ask [text]",
		Short: "Route a request to the best backend",
		Long: `Routes the request text to a backend chosen by specialty keywords
	and content heuristics, or use --backend to pick one by name.
	When the chosen backend fails or times out, the remaining enabled
	backends are tried in order.

	Use --report to print the routing decision and every attempt as JSON
	on stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			reg, err := createRegistry(cfg, logger)
			if err != nil {
				return err
			}

			r := router.New(reg, &cfg.Routing, router.WithLogger(logger))
			resp, report := r.RouteRequestWithReport(context.Background(), router.Request{
				Text:            args[0],
				ExplicitBackend: backendFlag,
			})

			if reportFlag {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(os.Stderr, string(data))
			}

			if resp.Error != "" {
				fmt.Fprintln(os.Stderr, resp.Content)
				return fmt.Errorf("%s", resp.Error)
			}

			if resp.FallbackFrom != "" {
				fmt.Fprintf(os.Stderr, "Fell back from %s to %s\n", resp.FallbackFrom, resp.Model)
			}
			fmt.Println(resp.Content)
			return nil
		},
	}

	cmd.Flags().StringVar(&backendFlag, "backend", "", "route to a specific backend by name")
	cmd.Flags().BoolVar(&reportFlag, "report", false, "print the routing report as JSON to stderr")

	return cmd
}

func backendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List configured backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPROVIDER\tMODEL\tSTATUS\tSPECIALTIES")

			for _, b := range cfg.Backends {
				status := "ready"
				switch {
				case b.Disabled:
					status = "disabled"
				case !cfg.HasProvider(b.Provider):
					status = "no key"
				}

				model := b.Model
				if model == "" {
					model = "(default)"
				}

				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					b.Name, b.Provider, model, status, strings.Join(b.Specialties, ", "))
			}

			return w.Flush()
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config.yaml]",
		Short: "Validate a configuration file",
		Long:  "Checks backend declarations and routing references without sending anything.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Println("Configuration is valid.")
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}
	return config.Load()
}

func newLogger() (*zap.Logger, error) {
	if debugFlag {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// createRegistry builds the backend registry from the configuration.
// Backends whose provider has no API key are skipped rather than failing
// the whole command.
func createRegistry(cfg *config.Config, logger *zap.Logger) (*backend.Registry, error) {
	reg := backend.NewRegistry()

	for _, b := range cfg.Backends {
		client, err := createClient(cfg, b)
		if err != nil {
			return nil, fmt.Errorf("backend %q: %w", b.Name, err)
		}
		if client == nil {
			logger.Warn("skipping backend without API key",
				zap.String("backend", b.Name),
				zap.String("provider", b.Provider))
			continue
		}

		if err := reg.Register(b.Name, client, b.Specialties...); err != nil {
			return nil, err
		}
		if b.Disabled {
			if err := reg.SetEnabled(b.Name, false); err != nil {
				return nil, err
			}
		}
	}

	return reg, nil
}

func createClient(cfg *config.Config, b config.Backend) (backend.Client, error) {
	switch b.Provider {
	case "anthropic":
		if cfg.APIKeys.Anthropic == "" {
			return nil, nil
		}
		return backend.NewAnthropic(cfg.APIKeys.Anthropic, b.Model)
	case "openai":
		if cfg.APIKeys.OpenAI == "" {
			return nil, nil
		}
		return backend.NewOpenAI(cfg.APIKeys.OpenAI, b.Model)
	case "google":
		if cfg.APIKeys.Google == "" {
			return nil, nil
		}
		return backend.NewGoogle(cfg.APIKeys.Google, b.Model)
	case "deepseek":
		if cfg.APIKeys.DeepSeek == "" {
			return nil, nil
		}
		return backend.NewDeepSeek(cfg.APIKeys.DeepSeek, b.Model)
	case "mock", "":
		return backend.NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", b.Provider)
	}
}

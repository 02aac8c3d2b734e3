package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/boids/internal/config"
	"github.com/zeusync/boids/internal/core/observability/log"
	"github.com/zeusync/boids/internal/core/simulation"
	"github.com/zeusync/boids/internal/injector"
)

const appName = "boids"

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.NewViper()
	var cfgFile string

	root := &cobra.Command{
		Use:           appName,
		Short:         "Seek and arrive steering simulation",
		Long:          "boids steers agents toward a moving target with seek and arrive behaviors and streams every tick to viewers.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
			}
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml or json)")
	root.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error|silent)")
	_ = v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(newServeCmd(v), newSimulateCmd(v), newCheckCmd())
	return root
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation on a wall clock and serve viewers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}

			app, cleanup, err := injector.InitializeApp(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			app.Logger.Info("Starting",
				log.String("version", version),
				log.Duration("tick_interval", cfg.Simulation.TickInterval),
				log.Bool("server", cfg.Server.Enabled))
			return app.Run(cmd.Context())
		},
	}

	cmd.Flags().String("http-addr", "", "viewer HTTP/WebSocket listen address")
	cmd.Flags().Duration("tick-interval", 0, "simulation tick interval")
	cmd.Flags().Uint64("max-ticks", 0, "stop after this many ticks (0 runs forever)")
	cmd.Flags().Bool("quic", false, "also stream frames over QUIC")
	cmd.Flags().Bool("orbit", false, "move the target on a scripted orbit")
	bindFlags(v, cmd, map[string]string{
		"server.http_addr":         "http-addr",
		"simulation.tick_interval": "tick-interval",
		"simulation.max_ticks":     "max-ticks",
		"server.quic.enabled":      "quic",
		"simulation.orbit.enabled": "orbit",
	})
	return cmd
}

func newSimulateCmd(v *viper.Viper) *cobra.Command {
	var (
		ticks uint64
		orbit bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a fixed number of ticks headless and print frames as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticks == 0 {
				return fmt.Errorf("%w: --ticks must be positive", config.ErrInvalidConfig)
			}
			base := config.Default()
			base.Simulation.Orbit.Enabled = true
			cfg, err := config.Load(v, base)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("orbit") {
				cfg.Simulation.Orbit.Enabled = orbit
			}
			return runHeadless(cmd.Context(), cfg, ticks, cmd)
		},
	}

	cmd.Flags().Uint64Var(&ticks, "ticks", 600, "number of ticks to simulate")
	cmd.Flags().BoolVar(&orbit, "orbit", true, "move the target on a scripted orbit unless the config file says otherwise")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE",
		Short: "Validate a config file and print it with defaults filled in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(args[0])
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err = enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

// bindFlags wires flags to config keys; unset flags leave the key alone.
func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		_ = v.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}

func runHeadless(ctx context.Context, cfg *config.Config, ticks uint64, cmd *cobra.Command) error {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := log.New(level, log.WithEncoding(cfg.Log.Encoding))
	defer func() { _ = logger.Sync() }()

	world, err := simulation.NewWorldFromConfig(cfg.Simulation, nil, logger)
	if err != nil {
		return err
	}

	ticker := simulation.NewManualTicker()
	driver := simulation.NewDriver(world, ticker, simulation.NewTargetProvider(cfg.Simulation), logger,
		simulation.WithSinks(simulation.NewWriterSink(cmd.OutOrStdout())),
		simulation.WithMaxTicks(ticks))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		for ticker.Tick(runCtx) == nil {
		}
	}()

	return driver.Run(runCtx)
}

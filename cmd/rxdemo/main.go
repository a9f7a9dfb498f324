// rxdemo runs the RxGo examples and writes their output through slog
// rxdemo 运行RxGo示例并通过slog输出结果
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/xinjiayu/rxgo/v2"
	"github.com/xinjiayu/rxgo/v2/internal/demo"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "rxdemo",
		Short:        "Run RxGo examples",
		Long:         "rxdemo runs the RxGo examples and records every notification through a structured logger.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(newListCommand())
	root.AddCommand(newRunCommand(&configPath))
	return root
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available examples",
		Run: func(cmd *cobra.Command, args []string) {
			for _, example := range demo.Examples() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", example.Name, example.Description)
			}
		},
	}
}

func newRunCommand(configPath *string) *cobra.Command {
	var showMetrics bool

	cmd := &cobra.Command{
		Use:   "run [example...]",
		Short: "Run examples, all of them when none are named",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := demo.LoadConfig(*configPath)
			if err != nil {
				return err
			}

			logger, err := demo.NewLogger(cfg.Log, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			rxgo.SetLogger(logger)

			registry := prometheus.NewRegistry()
			metrics := rxgo.NewSchedulerMetrics("demo")
			if err := metrics.Register(registry); err != nil {
				return err
			}

			sink := demo.NewSlogSink(logger)
			env := demo.Env{
				Config:    cfg,
				Sink:      sink,
				Scheduler: rxgo.NewMonitoredScheduler(rxgo.DefaultScheduler, metrics),
				Client:    &http.Client{Timeout: cfg.Timeout},
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("starting examples", "run_id", sink.RunID())
			runErr := demo.Run(ctx, env, args)

			if showMetrics {
				logMetrics(logger, registry)
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "log scheduler metrics after the run")
	return cmd
}

// logMetrics 输出计数器指标的当前值
func logMetrics(logger *slog.Logger, registry *prometheus.Registry) {
	families, err := registry.Gather()
	if err != nil {
		logger.Warn("gather metrics failed", "error", err)
		return
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			if counter := metric.GetCounter(); counter != nil {
				logger.Info("scheduler metric", "name", family.GetName(), "value", counter.GetValue())
			}
			if histogram := metric.GetHistogram(); histogram != nil {
				logger.Info("scheduler metric", "name", family.GetName(),
					"count", histogram.GetSampleCount(), "sum", histogram.GetSampleSum())
			}
		}
	}
}

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/battopt/config"
	"github.com/kilianp07/battopt/connectors"
	"github.com/kilianp07/battopt/core/milp"
	coremqtt "github.com/kilianp07/battopt/core/mqtt"
	"github.com/kilianp07/battopt/core/optimizer"
	"github.com/kilianp07/battopt/core/runlog"
	"github.com/kilianp07/battopt/core/runner"
	"github.com/kilianp07/battopt/infra/logger"
	"github.com/kilianp07/battopt/infra/mqtt"
	_ "github.com/kilianp07/battopt/infra/runlog"
	_ "github.com/kilianp07/battopt/infra/solver"
	"github.com/kilianp07/battopt/pkg/export"
)

var optimizeOpts struct {
	forecast   string
	soc        float64
	index      int
	publish    bool
	record     bool
	capacity   float64
	rate       float64
	minSOC     float64
	efficiency float64
	format     string
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Run one optimization and print the plan",
	Long: "Run one optimization. The forecast is read from --forecast, else from the " +
		"configured price API url, else from the MQTT topic. Battery flags override the configuration. " +
		"--format outcome prints the full run outcome, json and csv print the schedule only, html renders a chart.",
	RunE: runOptimize,
}

func init() {
	f := optimizeCmd.Flags()
	f.StringVar(&optimizeOpts.forecast, "forecast", "", "forecast JSON file ({\"data\":[...]})")
	f.Float64Var(&optimizeOpts.soc, "soc", 0, "current state of charge in percent")
	f.IntVar(&optimizeOpts.index, "index", 0, "current time index")
	f.BoolVar(&optimizeOpts.publish, "publish", false, "publish the plan to the schedule topic")
	f.BoolVar(&optimizeOpts.record, "record", false, "append the run to the configured run log")
	f.Float64Var(&optimizeOpts.capacity, "capacity", 0, "battery capacity in kWh")
	f.Float64Var(&optimizeOpts.rate, "rate", 0, "maximum charge and discharge rate in kW")
	f.Float64Var(&optimizeOpts.minSOC, "min-soc", 0, "minimum state of charge in percent")
	f.Float64Var(&optimizeOpts.efficiency, "efficiency", 0, "round-trip efficiency (0..1)")
	f.StringVar(&optimizeOpts.format, "format", "outcome", "output format: outcome, json, csv or html")
	_ = optimizeCmd.MarkFlagRequired("soc")
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	switch optimizeOpts.format {
	case "outcome", "json", "csv", "html":
	default:
		return fmt.Errorf("unsupported format %q", optimizeOpts.format)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := logger.Configure(cfg.Logging); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	applyBatteryFlags(cmd, cfg)

	solver, err := milp.NewSolver(cfg.Optimizer.Solver)
	if err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	planner := optimizer.New(cfg.Optimizer, solver, logger.New("optimizer"))

	var (
		forecast coremqtt.ForecastSource
		schedule coremqtt.SchedulePublisher
	)
	switch {
	case optimizeOpts.forecast != "":
		forecast = runner.FileForecast(optimizeOpts.forecast)
	case cfg.Forecast.URL != "":
		forecast = connectors.New(cfg.Forecast.URL, cfg.Forecast.Auth, cfg.Forecast.Timeout)
	}
	if forecast == nil || optimizeOpts.publish {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("mqtt client: %w", err)
		}
		defer client.Disconnect()
		if forecast == nil {
			forecast = mqtt.NewForecastSource(client, cfg.Forecast.Topic, cfg.Forecast.Timeout)
		}
		if optimizeOpts.publish {
			schedule = mqtt.NewSchedulePublisher(client, cfg.Schedule.Topic, cfg.Schedule.Retain)
		}
	}

	r, err := runner.New(planner, forecast, schedule, cfg.Battery, nil, logger.New("runner"))
	if err != nil {
		return err
	}
	if optimizeOpts.record {
		store, err := runlog.NewStore(cfg.RunLog)
		if err != nil {
			return fmt.Errorf("run log: %w", err)
		}
		r.SetRunStore(store)
	}
	defer r.Close()

	out, err := r.Run(ctx, runner.Request{
		InitialSOCPercent: optimizeOpts.soc,
		CurrentIndex:      optimizeOpts.index,
		Source:            "cli",
	})
	if err != nil {
		return err
	}
	if err := printOutcome(cmd, out); err != nil {
		return err
	}
	if !out.Optimal {
		return errors.New(out.Status)
	}
	return nil
}

func applyBatteryFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("capacity") {
		cfg.Battery.CapacityKWh = optimizeOpts.capacity
	}
	if f.Changed("rate") {
		cfg.Battery.MaxRateKW = optimizeOpts.rate
	}
	if f.Changed("min-soc") {
		cfg.Battery.MinSOCPercent = optimizeOpts.minSOC
	}
	if f.Changed("efficiency") {
		cfg.Battery.EfficiencyRoundtrip = optimizeOpts.efficiency
	}
}

func printOutcome(cmd *cobra.Command, out runner.Outcome) error {
	if optimizeOpts.format != "outcome" {
		return export.Write(cmd.OutOrStdout(), optimizeOpts.format, out.Result.Schedule)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

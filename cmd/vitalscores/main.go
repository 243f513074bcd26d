package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ehr/vitalscores/internal/cli"
	"github.com/ehr/vitalscores/internal/config"
	"github.com/ehr/vitalscores/internal/domain/calculation"
	"github.com/ehr/vitalscores/internal/domain/validation"
	"github.com/ehr/vitalscores/internal/domain/vitals"
	"github.com/ehr/vitalscores/internal/platform/metrics"
	"github.com/ehr/vitalscores/pkg/optional"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "vitalscores",
		Short:        "NEWS2 and q-SOFA early warning scores from bedside vital signs",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("format", "", "output format: text or json (default from OUTPUT_FORMAT)")
	rootCmd.PersistentFlags().String("metrics-file", "", "write Prometheus metrics to this file on exit (default from METRICS_FILE)")

	rootCmd.AddCommand(calcCmd())
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(requirementsCmd())
	rootCmd.AddCommand(validateCmd())
	return rootCmd
}

// app is the per-command composition root: one config, logger, metrics
// registry and calculation service.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collectors
	svc      *calculation.Service
	render   *cli.Renderer
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if f, _ := cmd.Flags().GetString("format"); f != "" {
		cfg.OutputFormat = f
	}
	if f, _ := cmd.Flags().GetString("metrics-file"); f != "" {
		cfg.MetricsFile = f
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := cli.NewLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		return nil, err
	}

	render, err := cli.NewRenderer(cmd.OutOrStdout(), cfg.OutputFormat)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  m,
		svc:      calculation.NewService(calculation.WithLogger(logger), calculation.WithMetrics(m)),
		render:   render,
	}, nil
}

// run builds the app, runs fn and writes metrics afterwards even when fn
// fails.
func run(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	a.logger.Debug().Str("command", cmd.Name()).Str("env", a.cfg.Env).Msg("starting")

	runErr := fn(a)

	if a.cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(a.cfg.MetricsFile, a.registry); err != nil {
			a.logger.Error().Err(err).Msg("failed to write metrics")
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

var numericFlags = []struct {
	name  string
	field vitals.Field
	usage string
}{
	{"respiratory-rate", vitals.FieldRespiratoryRate, "respiratory rate (breaths/min)"},
	{"oxygen-saturation", vitals.FieldOxygenSaturation, "oxygen saturation (%)"},
	{"temperature", vitals.FieldTemperature, "temperature (°C)"},
	{"systolic-bp", vitals.FieldSystolicBP, "systolic blood pressure (mmHg)"},
	{"heart-rate", vitals.FieldHeartRate, "heart rate (bpm)"},
}

func calcCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Score one set of observations",
		Long:  "Score one set of observations. Only the flags given are recorded; the rest stay absent.",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := updateFromFlags(cmd)
			if err != nil {
				return err
			}
			return run(cmd, func(a *app) error {
				a.svc.UpdateVitalSigns(u)
				rep := cli.BuildReport(a.svc)
				for f, res := range validation.AllVitalSigns(rep.Vitals) {
					a.metrics.ObserveValidation(string(f), string(res.Severity()))
				}
				return a.render.Report(rep)
			})
		},
	}
	for _, f := range numericFlags {
		cmd.Flags().Float64(f.name, 0, f.usage)
	}
	cmd.Flags().Bool("supplemental-oxygen", false, "patient is on supplemental oxygen")
	cmd.Flags().String("consciousness", "", "ACVPU level: A, C, V, P or U")
	return cmd
}

func updateFromFlags(cmd *cobra.Command) (*vitals.Update, error) {
	flags := cmd.Flags()
	u := vitals.NewUpdate()
	for _, f := range numericFlags {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetFloat64(f.name)
		if err != nil {
			return nil, err
		}
		if err := u.SetNumber(f.field, v); err != nil {
			return nil, err
		}
	}
	if flags.Changed("supplemental-oxygen") {
		on, err := flags.GetBool("supplemental-oxygen")
		if err != nil {
			return nil, err
		}
		u.SupplementalOxygen(on)
	}
	if flags.Changed("consciousness") {
		raw, _ := flags.GetString("consciousness")
		l, err := vitals.ParseConsciousnessLevel(raw)
		if err != nil {
			return nil, err
		}
		u.ConsciousnessLevel(l)
	}
	return u, nil
}

func sessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Enter observations interactively and watch the scores update",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(a *app) error {
				in := cmd.InOrStdin()
				prompt := false
				if f, ok := in.(*os.File); ok {
					prompt = term.IsTerminal(int(f.Fd()))
				}
				s := cli.NewSession(a.svc, a.render, in, cmd.OutOrStdout(),
					cli.WithPrompt(prompt),
					cli.WithSessionLogger(a.logger),
					cli.WithSessionMetrics(a.metrics),
				)
				err := s.Run(cmd.Context())
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}

func requirementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requirements",
		Short: "List the observations each score needs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(a *app) error {
				return a.render.Requirements(a.svc.FieldRequirements(), a.svc.MinimumDataRequirements())
			})
		},
	}
}

var errInvalid = errors.New("value is invalid")

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <field> <value>",
		Short: "Check one value against physiological ranges",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, raw := canonicalName(args[0]), args[1]
			flags := cmd.Flags()
			withContext, _ := flags.GetBool("context")
			required, _ := flags.GetBool("required")

			cfg := validation.FieldConfig{Required: required}
			if flags.Changed("min") {
				v, _ := flags.GetFloat64("min")
				cfg.Min = optional.Some(v)
			}
			if flags.Changed("max") {
				v, _ := flags.GetFloat64("max")
				cfg.Max = optional.Some(v)
			}

			return run(cmd, func(a *app) error {
				res := validateValue(name, raw, withContext, cfg)
				a.metrics.ObserveValidation(name, string(res.Severity()))
				if err := a.render.Validation(name, res); err != nil {
					return err
				}
				if !res.IsValid {
					return fmt.Errorf("%s: %w", name, errInvalid)
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("context", false, "apply physiological context rules (warnings for unusual values)")
	cmd.Flags().Bool("required", false, "treat an empty value as an error")
	cmd.Flags().Float64("min", 0, "lower bound for fields without built-in ranges")
	cmd.Flags().Float64("max", 0, "upper bound for fields without built-in ranges")
	return cmd
}

// canonicalName resolves aliases such as "hr" to the field name. Unknown
// names are returned unchanged.
func canonicalName(name string) string {
	if f, err := cli.ResolveField(name); err == nil {
		return string(f)
	}
	return name
}

// validateValue picks the check that fits the field. Aliases such as "hr"
// are resolved first; unknown names fall through to the generic rules.
func validateValue(name, raw string, withContext bool, cfg validation.FieldConfig) validation.Result {
	if f, err := cli.ResolveField(name); err == nil {
		switch f {
		case vitals.FieldSupplementalOxygen:
			return validation.Result{IsValid: true}
		case vitals.FieldConsciousnessLevel:
			if raw == "" && cfg.Required {
				return validation.Field(name, validation.Text(raw), cfg)
			}
			if l, err := vitals.ParseConsciousnessLevel(raw); err == nil {
				raw = l.Code()
			}
			return validation.ConsciousnessLevel(raw)
		}
		name = string(f)
	}
	switch {
	case withContext:
		return validation.WithPhysiologicalContext(name, validation.Text(raw), cfg)
	case cfg.Required || cfg.Min.IsPresent() || cfg.Max.IsPresent():
		return validation.Field(name, validation.Text(raw), cfg)
	default:
		return validation.InputChange(name, raw)
	}
}

// Command mvpplan serves and inspects the MVP participation planner.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mvpplanner/internal/config"
	"mvpplanner/internal/core"
	"mvpplanner/internal/logging"
	"mvpplanner/internal/source"
)

const serviceName = "mvpplan"

var exitFunc = os.Exit

func main() {
	exitFunc(cli(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// cli runs the command tree and maps the outcome to a process exit code.
func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "mvpplan: %v\n", err)
		return 1
	}
	return 0
}

// app carries what every subcommand shares once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	stdout io.Writer
	stderr io.Writer

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Plan clinician participation in MIPS Value Pathways",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Only serve logs to stdout; the other commands print data there.
			output := "stderr"
			if cmd.Name() == "serve" {
				output = "stdout"
			}
			return a.setup(output)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", os.Getenv("MVPPLAN_CONFIG"), "path to a YAML config file")
	flags.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	flags.StringVar(&a.logFormat, "log-format", "", "json or console (overrides config)")

	root.AddCommand(
		newServeCmd(a),
		newReportCmd(a),
		newStatsCmd(a),
		newFetchCmd(a),
		newMirrorCmd(a),
	)
	return root
}

func (a *app) setup(output string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	logger, err := logging.NewTo(cfg.Logging.Level, cfg.Logging.Format, serviceName, output)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// planner is a loaded engine bound to its source.
type planner struct {
	engine *core.Engine
	source *source.Handle
	reload func(ctx context.Context) (core.LoadResult, error)
}

func (p *planner) Close() error {
	return p.source.Close()
}

// openPlanner opens the configured source and performs the initial load.
// A failed initial load is returned alongside the planner so serve can keep
// running and retry through refresh.
func (a *app) openPlanner(ctx context.Context, opts ...core.Option) (*planner, error) {
	handle, err := source.Open(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	opts = append([]core.Option{
		core.WithLogger(a.logger.Named("engine")),
		core.WithOrganization(a.cfg.Organization),
	}, opts...)
	engine := core.NewEngine(opts...)
	p := &planner{engine: engine, source: handle}
	p.reload = func(ctx context.Context) (core.LoadResult, error) {
		snapshot, err := source.FetchAll(ctx, handle.Provider)
		if err != nil {
			return core.LoadResult{}, err
		}
		return engine.Load(ctx, snapshot)
	}
	if _, err := p.reload(ctx); err != nil {
		return p, fmt.Errorf("load planner data: %w", err)
	}
	return p, nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pngdoctor/adapter"
	"github.com/justapithecus/pngdoctor/adapter/redis"
	"github.com/justapithecus/pngdoctor/adapter/webhook"
	pngconfig "github.com/justapithecus/pngdoctor/cli/config"
	"github.com/justapithecus/pngdoctor/cli/render"
	"github.com/justapithecus/pngdoctor/doctor"
	"github.com/justapithecus/pngdoctor/framer"
	"github.com/justapithecus/pngdoctor/iox"
	"github.com/justapithecus/pngdoctor/lode"
	"github.com/justapithecus/pngdoctor/log"
	"github.com/justapithecus/pngdoctor/metrics"
	"github.com/justapithecus/pngdoctor/policy"
	"github.com/justapithecus/pngdoctor/validator"
)

// Exit codes for pngdoctor validate.
const (
	exitSuccess     = 0
	exitHalted      = 1
	exitFailed      = 2
	exitConfigError = 3
)

// ValidateCommand returns the validate command.
func ValidateCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to pngdoctor.yaml (CLI flags override config values)",
		},
		&cli.BoolFlag{
			Name:  "fail-fast",
			Usage: "Stop each pass at the first violation",
		},
		&cli.StringFlag{
			Name:  "policy",
			Usage: "Decode policy: " + strings.Join(policy.Names(), ", "),
			Value: "strict",
		},
		&cli.BoolFlag{
			Name:  "records",
			Usage: "Read msgpack chunk-record streams instead of PNG bytes",
		},
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Maximum files inspected concurrently",
			Value: doctor.DefaultParallel,
		},
		&cli.Int64Flag{
			Name:  "max-file-size",
			Usage: "Maximum bytes read per file",
			Value: framer.DefaultMaxFileSize,
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a JSON run report to this path (- for stderr)",
		},
		&cli.StringFlag{
			Name:  "run-id",
			Usage: "Run identifier (default: generated UUID)",
		},
		&cli.StringFlag{
			Name:  "source",
			Usage: "Source partition label for stored records",
			Value: lode.DefaultSource,
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
			Value: "info",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Suppress result output (exit code only)",
		},
		FormatFlag,
		NoColorFlag,
	}
	flags = append(flags, StorageFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Event adapter: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Adapter endpoint (webhook URL or redis:// URL)",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel (default " + redis.DefaultChannel + ")",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Webhook header as key=value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-publish timeout",
			Value: webhook.DefaultTimeout,
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Publish retry attempts",
			Value: webhook.DefaultRetries,
		},
	)

	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate the chunk structure of PNG files",
		ArgsUsage: "FILE... (- reads stdin)",
		Flags:     flags,
		Action:    validateAction,
	}
}

// validateChoice holds the resolved run settings.
type validateChoice struct {
	mode        validator.Mode
	policy      string
	records     bool
	parallel    int
	maxFileSize int64
	runID       string
	source      string
	logLevel    string
}

// resolveValidateChoice applies CLI > config > default precedence.
func resolveValidateChoice(c *cli.Context, cfg *pngconfig.Config) (validateChoice, error) {
	vc := validateChoice{
		policy:      resolveString(c, "policy", configVal(cfg, func(c *pngconfig.Config) string { return c.Policy })),
		records:     resolveBool(c, "records", configVal(cfg, func(c *pngconfig.Config) bool { return c.Records })),
		parallel:    resolveInt(c, "parallel", configVal(cfg, func(c *pngconfig.Config) int { return c.Parallel })),
		maxFileSize: resolveInt64(c, "max-file-size", configVal(cfg, func(c *pngconfig.Config) int64 { return c.MaxFileSize })),
		runID:       c.String("run-id"),
		source:      resolveString(c, "source", configVal(cfg, func(c *pngconfig.Config) string { return c.Source })),
		logLevel:    resolveString(c, "log-level", configVal(cfg, func(c *pngconfig.Config) string { return c.LogLevel })),
	}

	mode := configVal(cfg, func(c *pngconfig.Config) string { return c.Mode })
	if c.IsSet("fail-fast") {
		mode = pngconfig.ModeCollectAll
		if c.Bool("fail-fast") {
			mode = pngconfig.ModeFailFast
		}
	}
	m, err := validator.ParseMode(mode)
	if err != nil {
		return vc, err
	}
	vc.mode = m

	if vc.parallel < 1 {
		return vc, fmt.Errorf("invalid --parallel %d (must be >= 1)", vc.parallel)
	}
	if vc.maxFileSize < 1 {
		return vc, fmt.Errorf("invalid --max-file-size %d (must be >= 1)", vc.maxFileSize)
	}
	if vc.runID == "" {
		vc.runID = uuid.NewString()
	}
	return vc, nil
}

// adapterChoice holds resolved adapter configuration.
type adapterChoice struct {
	adapterType string
	url         string
	channel     string
	headers     map[string]string
	timeout     time.Duration
	retries     int
}

// parseAdapterConfigWithPrecedence resolves adapter settings. Config
// headers are merged first; CLI headers override them key by key.
func parseAdapterConfigWithPrecedence(c *cli.Context, cfg *pngconfig.Config, adapterType string) (adapterChoice, error) {
	ac := adapterChoice{
		adapterType: adapterType,
		url:         resolveString(c, "adapter-url", configVal(cfg, func(c *pngconfig.Config) string { return c.Adapter.URL })),
		channel:     resolveString(c, "adapter-channel", configVal(cfg, func(c *pngconfig.Config) string { return c.Adapter.Channel })),
		timeout:     resolveDuration(c, "adapter-timeout", configVal(cfg, func(c *pngconfig.Config) time.Duration { return c.Adapter.Timeout.Duration })),
		retries:     c.Int("adapter-retries"),
	}
	if !c.IsSet("adapter-retries") {
		if r := configVal(cfg, func(c *pngconfig.Config) *int { return c.Adapter.Retries }); r != nil {
			ac.retries = *r
		}
	}

	switch adapterType {
	case "webhook", "redis":
	default:
		return ac, fmt.Errorf("unknown adapter type %q (must be webhook or redis)", adapterType)
	}
	if ac.url == "" {
		return ac, fmt.Errorf("--adapter-url is required when --adapter=%s", adapterType)
	}

	if adapterType == "webhook" {
		ac.headers = make(map[string]string)
		for k, v := range configVal(cfg, func(c *pngconfig.Config) map[string]string { return c.Adapter.Headers }) {
			ac.headers[k] = v
		}
		for _, h := range c.StringSlice("adapter-header") {
			k, v, ok := strings.Cut(h, "=")
			if !ok || k == "" {
				return ac, fmt.Errorf("invalid --adapter-header %q (expected key=value)", h)
			}
			ac.headers[k] = v
		}
	}
	return ac, nil
}

// buildAdapter constructs the event adapter.
func buildAdapter(ac adapterChoice) (adapter.Adapter, error) {
	switch ac.adapterType {
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     ac.url,
			Headers: ac.headers,
			Timeout: ac.timeout,
			Retries: ac.retries,
		})
	case "redis":
		return redis.New(redis.Config{
			URL:     ac.url,
			Channel: ac.channel,
			Timeout: ac.timeout,
			Retries: ac.retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q", ac.adapterType)
	}
}

// buildSink wires the Lode client behind an instrumented sink.
func buildSink(ctx context.Context, sc storageChoice, cfg lode.Config, collector *metrics.Collector) (doctor.Sink, error) {
	client, err := buildLodeClient(ctx, sc, cfg)
	if err != nil {
		return nil, err
	}
	return lode.NewInstrumentedSink(lode.NewSink(client), collector), nil
}

// exitCodeFor maps a finished run to the process exit code.
func exitCodeFor(result *doctor.RunResult, runErr error) int {
	if runErr != nil {
		return exitFailed
	}
	s := result.Summary()
	switch {
	case s.Failed > 0:
		return exitFailed
	case s.Halted > 0:
		return exitHalted
	default:
		return exitSuccess
	}
}

func validateAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("at least one FILE is required", exitConfigError)
	}
	paths := c.Args().Slice()

	var cfg *pngconfig.Config
	if path := c.String("config"); path != "" {
		loaded, err := pngconfig.Load(path)
		if err != nil {
			return cli.Exit(err.Error(), exitConfigError)
		}
		cfg = loaded
	}

	vc, err := resolveValidateChoice(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	pol, err := policy.New(vc.policy)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid --policy: %v", err), exitConfigError)
	}

	logger, err := log.NewLoggerWithLevel(nil, vc.logLevel)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid --log-level: %v", err), exitConfigError)
	}
	defer iox.DiscardErr(logger.Sync)

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	sc := resolveStorage(c, cfg)
	backend := "none"
	if sc.enabled() {
		if err := validateStorageConfig(sc); err != nil {
			return cli.Exit(err.Error(), exitConfigError)
		}
		backend = sc.backend
	}
	collector := metrics.NewCollector(pol.Name(), vc.mode.String(), backend, vc.runID)

	inspCfg := doctor.Config{
		Mode:        vc.mode,
		Policy:      pol,
		Logger:      logger,
		Collector:   collector,
		MaxFileSize: vc.maxFileSize,
		Records:     vc.records,
		Parallel:    vc.parallel,
		RunID:       vc.runID,
	}

	if sc.enabled() {
		lodeCfg := lode.Config{
			Dataset: sc.dataset,
			Source:  vc.source,
			Day:     lode.DeriveDay(time.Now()),
			RunID:   vc.runID,
		}
		if err := lodeCfg.Validate(); err != nil {
			return cli.Exit(err.Error(), exitConfigError)
		}
		sink, err := buildSink(ctx, sc, lodeCfg, collector)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to open storage: %v", err), exitFailed)
		}
		defer iox.DiscardClose(sink)
		inspCfg.Sink = sink
		inspCfg.StoragePath = buildStoragePath(sc, sc.dataset, vc.source)
	}

	adapterType := resolveString(c, "adapter", configVal(cfg, func(c *pngconfig.Config) string { return c.Adapter.Type }))
	if adapterType != "" {
		ac, err := parseAdapterConfigWithPrecedence(c, cfg, adapterType)
		if err != nil {
			return cli.Exit(err.Error(), exitConfigError)
		}
		a, err := buildAdapter(ac)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to create adapter: %v", err), exitConfigError)
		}
		defer iox.DiscardClose(a)
		inspCfg.Adapter = a
	}

	result, runErr := doctor.New(inspCfg).InspectAll(ctx, paths)
	code := exitCodeFor(result, runErr)
	if runErr != nil {
		logger.Error("run finished with errors", map[string]any{"error": runErr.Error()})
	}

	if reportPath := c.String("report"); reportPath != "" {
		rr := doctor.BuildRunReport(result, collector.Snapshot(), code)
		if err := doctor.WriteRunReport(rr, reportPath); err != nil {
			logger.Error("failed to write run report", map[string]any{"path": reportPath, "error": err.Error()})
		}
	}

	if !c.Bool("quiet") {
		out := validateOutput{
			RunID:   result.RunID,
			Policy:  result.Policy,
			Mode:    vc.mode.String(),
			Summary: result.Summary(),
			Reports: result.Reports,
		}
		if err := r.Render(out); err != nil {
			return cli.Exit(fmt.Sprintf("render failed: %v", err), exitFailed)
		}
	}

	if errors.Is(runErr, context.Canceled) {
		return cli.Exit("interrupted", code)
	}
	return cli.Exit("", code)
}

// validateOutput is the rendered result of a validate run.
type validateOutput struct {
	RunID   string           `json:"run_id" yaml:"run_id"`
	Policy  string           `json:"policy" yaml:"policy"`
	Mode    string           `json:"mode" yaml:"mode"`
	Summary doctor.Summary   `json:"summary" yaml:"summary"`
	Reports []*doctor.Report `json:"reports" yaml:"reports"`
}

// TableSections implements render.Tabular.
func (o validateOutput) TableSections() []render.Section {
	files := render.Section{
		Headers: []string{"FILE", "OUTCOME", "DECISION", "CHUNKS", "VIOLATIONS", "DETAIL"},
	}
	for _, rep := range o.Reports {
		decision := "-"
		if rep.Decision != nil {
			decision = rep.Decision.Action
		}
		files.Rows = append(files.Rows, []string{
			rep.Source,
			string(rep.Outcome),
			decision,
			strconv.Itoa(len(rep.Chunks)),
			strconv.Itoa(len(rep.Violations)),
			reportDetail(rep),
		})
	}

	s := o.Summary
	summary := render.Section{
		Title:   fmt.Sprintf("Run %s (policy=%s, mode=%s)", o.RunID, o.Policy, o.Mode),
		Headers: []string{"TOTAL", "ACCEPTED", "REJECTED", "FAILED", "HALTED"},
		Rows: [][]string{{
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Accepted),
			strconv.Itoa(s.Rejected),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.Halted),
		}},
	}
	return []render.Section{files, summary}
}

// reportDetail is the one-line explanation shown in tables.
func reportDetail(rep *doctor.Report) string {
	if rep.FramingError != "" {
		return rep.FramingError
	}
	if len(rep.Violations) > 0 {
		v := rep.Violations[0]
		if len(rep.Violations) > 1 {
			return fmt.Sprintf("%s (+%d more)", v.Message, len(rep.Violations)-1)
		}
		return v.Message
	}
	return ""
}

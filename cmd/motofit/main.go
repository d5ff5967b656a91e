package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/motofit/api"
	"github.com/aluiziolira/motofit/catalog"
	"github.com/aluiziolira/motofit/config"
	"github.com/aluiziolira/motofit/demo"
	"github.com/aluiziolira/motofit/metrics"
	"github.com/aluiziolira/motofit/models"
	"github.com/aluiziolira/motofit/pipeline"
	"github.com/aluiziolira/motofit/present"
	"github.com/aluiziolira/motofit/recommend"
	"github.com/aluiziolira/motofit/supervisor"
	"github.com/aluiziolira/motofit/validation"
)

const usage = `usage: motofit [serve|recommend|demo] [flags]

  serve      run the HTTP API (default)
  recommend  run one query and print or export the result
  demo       write a small balanced sample of a catalog

Run "motofit <command> -h" for the flags of a command.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("motofit failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	command := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		return runServe(ctx, args)
	case "recommend":
		return runRecommend(ctx, args, stdout)
	case "demo":
		return runDemo(ctx, args)
	case "help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

// commonFlags are shared by every command.
type commonFlags struct {
	configPath string
	source     string
	verbose    bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	configDefault, _ := config.EnvString(config.ConfigPathEnvVar)
	fs.StringVar(&c.configPath, "config", configDefault, "Path to a YAML config file")
	fs.StringVar(&c.source, "source", "", "Catalog CSV path or http(s) URL (overrides config)")
	fs.BoolVar(&c.verbose, "v", false, "Enable verbose logging")
}

// setup loads configuration, applies flag overrides and installs the logger.
func (c *commonFlags) setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	if c.source != "" {
		cfg.Catalog.Source = c.source
	}
	if c.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, level := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())
	return cfg, logger, nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	defaultPort, err := portFromEnv()
	if err != nil {
		return err
	}
	port := fs.Int("port", defaultPort, "Listen port, defaults to $PORT (overrides config)")
	refresh := fs.Duration("refresh", -1, "Catalog reload interval, 0 disables (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := common.setup()
	if err != nil {
		return err
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *refresh >= 0 {
		cfg.Catalog.RefreshInterval = *refresh
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	required, err := cfg.Results.Columns()
	if err != nil {
		return err
	}

	m := metrics.New()
	loader := catalog.NewLoader(cfg, m, logger)
	store := catalog.NewStore(required, m)
	refresher := catalog.NewRefresher(loader, store, cfg.Catalog.Source, cfg.Catalog.RefreshInterval, logger)
	if err := refresher.Reload(ctx); err != nil {
		return err
	}

	sessions := present.NewSessions(cfg.Results.SessionCapacity, cfg.Results.SessionTTL, m)
	cache := api.NewResultCache(cfg.Results.CacheSize, cfg.Results.CacheTTL, m)
	handler := api.NewHandler(store, sessions, cache, cfg.Results, m, logger)
	router := api.NewRouter(handler, api.MiddlewareConfigFrom(cfg.Server), m, logger)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree(logger, supervisor.TreeConfig{ShutdownTimeout: cfg.Server.ShutdownTimeout})
	tree.AddAPIService(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))
	if cfg.Catalog.RefreshInterval > 0 {
		tree.AddCatalogService(refresher)
	}

	logger.Info("serving",
		slog.String("addr", server.Addr),
		slog.String("catalog", cfg.Catalog.Source),
		slog.Duration("refresh_interval", cfg.Catalog.RefreshInterval),
	)
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// portFromEnv reads the PORT variable hosting platforms set. Zero means
// unset.
func portFromEnv() (int, error) {
	port, ok, err := config.EnvInt("PORT")
	if err != nil {
		return 0, fmt.Errorf("invalid PORT: %w", err)
	}
	if !ok {
		return 0, nil
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid PORT: %d out of range", port)
	}
	return port, nil
}

func runRecommend(ctx context.Context, args []string, stdout io.Writer) error {
	defaults := api.NewRecommendationRequest()

	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	priceMin := fs.Float64("price-min", defaults.PriceMin, "Minimum price in euros")
	priceMax := fs.Float64("price-max", defaults.PriceMax, "Maximum price in euros")
	ccMin := fs.Float64("cc-min", defaults.DisplacementMin, "Minimum displacement in cc")
	ccMax := fs.Float64("cc-max", defaults.DisplacementMax, "Maximum displacement in cc")
	license := fs.String("license", defaults.License, "Rider license: AM, B, A1, A2 or A")
	height := fs.Float64("height", defaults.RiderHeight, "Rider height in cm")
	brands := fs.String("brands", "", "Comma-separated brands (empty means all)")
	types := fs.String("types", "", "Comma-separated types (empty means all)")
	sortBy := fs.String("sort", defaults.SortBy, "Sort by price, power, seat_height or dry_weight")
	desc := fs.Bool("desc", false, "Sort descending")
	page := fs.Int("page", 1, "Page to print")
	output := fs.String("output", "", "Write every result to this file instead of printing a page")
	format := fs.String("format", "csv", "Output format: csv, json, or dual")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := defaults
	req.PriceMin, req.PriceMax = *priceMin, *priceMax
	req.DisplacementMin, req.DisplacementMax = *ccMin, *ccMax
	req.License = *license
	req.RiderHeight = *height
	req.Brands = splitList(*brands)
	req.Types = splitList(*types)
	req.SortBy = *sortBy
	if *desc {
		req.SortOrder = "desc"
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		return fmt.Errorf("invalid query: %w", verr)
	}

	cfg, logger, err := common.setup()
	if err != nil {
		return err
	}
	cat, result, err := loadCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}

	res, err := recommend.Recommend(cat, req.Query())
	if err != nil {
		return err
	}

	if *output != "" {
		if err := exportResult(res, strings.ToLower(*format), *output); err != nil {
			return err
		}
		printSummary(stdout, result, res.Len(), *output)
		return nil
	}

	p := present.Paginate(present.NewCards(res.Rows, nil), *page, cfg.Results.PageSize)
	printPage(stdout, p)
	return nil
}

func runDemo(ctx context.Context, args []string) error {
	opt := demo.DefaultOptions()

	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	output := fs.String("output", "data/motofit_demo.csv", "Demo CSV path")
	brands := fs.String("brands", strings.Join(opt.Brands, ","), "Comma-separated brands to sample")
	perGroup := fs.Int("per-group", opt.PerGroup, "Rows sampled per brand and type")
	maxRows := fs.Int("max-rows", opt.MaxRows, "Maximum rows in the demo")
	seed := fs.Uint64("seed", opt.Seed, "Sampling seed")
	noMask := fs.Bool("no-mask", false, "Keep model names unmodified")
	if err := fs.Parse(args); err != nil {
		return err
	}
	opt.Brands = splitList(*brands)
	opt.PerGroup = *perGroup
	opt.MaxRows = *maxRows
	opt.Seed = *seed
	opt.Mask = !*noMask

	cfg, logger, err := common.setup()
	if err != nil {
		return err
	}
	cat, _, err := loadCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sample := demo.Build(cat.Rows, opt)
	writer, err := pipeline.NewCSVWriter(*output, nil)
	if err != nil {
		return fmt.Errorf("create demo writer: %w", err)
	}
	if err := writeAll(writer, pipeline.Rows(sample)); err != nil {
		return fmt.Errorf("write demo: %w", err)
	}

	logger.Info("demo written",
		slog.String("output", *output),
		slog.Int("rows", len(sample)),
		slog.Int("source_rows", cat.Len()),
	)
	return nil
}

// loadCatalog loads the configured source and checks it carries the
// required columns.
func loadCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*models.Catalog, *models.LoadResult, error) {
	required, err := cfg.Results.Columns()
	if err != nil {
		return nil, nil, err
	}
	cat, result, err := catalog.NewLoader(cfg, nil, logger).Load(ctx, cfg.Catalog.Source)
	if err != nil {
		return nil, nil, err
	}
	if err := recommend.Negotiate(cat.Columns, required); err != nil {
		return nil, nil, err
	}
	return cat, result, nil
}

func exportResult(res *recommend.Result, format, filename string) error {
	writer, err := createWriter(format, filename, res.Columns)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	if err := writeAll(writer, pipeline.DisplayRows(res.Rows)); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// writeAll writes rows, validates non-empty output and closes the writer.
func writeAll(writer pipeline.OutputWriter, rows []pipeline.Row) error {
	if err := writer.Write(rows); err != nil {
		return errors.Join(err, writer.Close())
	}
	if len(rows) > 0 {
		if err := writer.Validate(); err != nil {
			return errors.Join(fmt.Errorf("output validation failed: %w", err), writer.Close())
		}
	}
	return writer.Close()
}

func createWriter(format, filename string, columns []models.Column) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename, columns)
	case "csv":
		return pipeline.NewCSVWriter(filename, columns)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return pipeline.NewDualWriter(filename, jsonFilename, columns)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printPage(w io.Writer, p present.Page[present.Card]) {
	fmt.Fprintln(w, p.Caption())
	for _, c := range p.Items {
		fmt.Fprintf(w, "  %-10s %-24s %-10s %9s  %7s  %7s  %7s\n",
			c.Brand, c.Model, c.Type, c.Price, c.Power, c.SeatHeight, c.DryWeight)
	}
	if p.TotalPages > 1 {
		fmt.Fprintf(w, "Page %d of %d\n", p.Number, p.TotalPages)
	}
}

func printSummary(w io.Writer, result *models.LoadResult, matches int, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Recommendation complete")
	fmt.Fprintf(w, "  Catalog:       %s\n", result.Source)
	fmt.Fprintf(w, "  Rows read:     %d\n", result.RowsRead)
	fmt.Fprintf(w, "  Rows kept:     %d\n", result.RowsKept)
	if result.RowsRejected > 0 {
		fmt.Fprintf(w, "  Rejected:      %d %v\n", result.RowsRejected, result.RejectReasons)
	}
	if result.RetryCount > 0 {
		fmt.Fprintf(w, "  Retries:       %d\n", result.RetryCount)
	}
	fmt.Fprintf(w, "  Load time:     %v\n", result.Duration())
	fmt.Fprintf(w, "  Matches:       %d\n", matches)
	fmt.Fprintf(w, "  Output file:   %s\n", outputFile)
	fmt.Fprintln(w, separator)
}

func newLogger(cfg config.LoggingConfig) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch {
	case cfg.Format == "text", cfg.Format == "auto" && isTerminal(os.Stderr):
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

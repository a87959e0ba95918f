package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"bondsignal/internal/cache"
	"bondsignal/internal/config"
	"bondsignal/internal/engine"
	"bondsignal/internal/metrics"
	"bondsignal/internal/provider"
	"bondsignal/internal/reference"
	"bondsignal/internal/risk"
	"bondsignal/internal/scanner"
	"bondsignal/internal/web"
	"bondsignal/pkg/logger"
	"bondsignal/pkg/model"
)

var (
	cfgFile  string
	format   string
	days     int
	workers  int
	codeList string
	minScore float64
	limit    int
	entry    float64
	priceCSV string
	addr     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bondsignal",
		Short: "Convertible bond technical signal engine",
		Long: `bondsignal scores convertible bonds on trend, momentum, volume and
structure signals, rates them against reference data and plans stops.

Examples:
  bondsignal analyze 113001
  bondsignal scan --min-score 60
  bondsignal risk 113001 --entry 118.5 --prices 119,121,120.2
  bondsignal serve --addr :8080`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "output format: table, json")
	rootCmd.PersistentFlags().IntVar(&days, "days", 0, "trading days of history to fetch (default from config)")

	analyzeCmd := &cobra.Command{
		Use:   "analyze <code>",
		Short: "Analyze a single bond",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Analyze many bonds and rank them by buy score",
		RunE:  runScan,
	}
	scanCmd.Flags().StringVar(&codeList, "codes", "", "comma-separated bond codes (default: every bond in the reference file)")
	scanCmd.Flags().IntVar(&workers, "workers", 0, "number of parallel workers")
	scanCmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum buy score to report")
	scanCmd.Flags().IntVar(&limit, "limit", 30, "maximum rows to print")

	riskCmd := &cobra.Command{
		Use:   "risk <code>",
		Short: "Plan stops and take-profit targets for a position",
		Args:  cobra.ExactArgs(1),
		RunE:  runRisk,
	}
	riskCmd.Flags().Float64Var(&entry, "entry", 0, "entry price (default: last close)")
	riskCmd.Flags().StringVar(&priceCSV, "prices", "", "comma-separated prices to replay after entry")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	rootCmd.AddCommand(analyzeCmd, scanCmd, riskCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the wired components shared by every command
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	provider provider.Provider
	refs     *reference.Store
	analyzer *engine.Analyzer
	registry *prometheus.Registry
	metrics  *metrics.Recorder
	closers  []func() error
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if days > 0 {
		cfg.Scanner.Days = days
	}
	if format != "table" && format != "json" {
		return nil, fmt.Errorf("unknown format %q", format)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}

	providers := []provider.Provider{provider.NewCSVProvider(cfg.Data.Dir)}
	if cfg.Data.HTTPURL != "" {
		providers = append(providers, provider.NewHTTPProvider(cfg.Data.HTTPURL, cfg.Data.RateLimit, cfg.Data.Timeout))
	}
	fallback := provider.NewFallbackProvider(providers...)

	var store cache.Store = cache.NewMemory()
	if cfg.Cache.Redis.Addr != "" {
		rdb, err := cache.NewRedis(ctx, cfg.Cache.Redis)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Cache.Redis.Addr).Msg("redis unavailable, using in-process cache")
		} else {
			store = rdb
			a.closers = append(a.closers, rdb.Close)
		}
	}
	a.provider = provider.NewCachingProvider(fallback, store, cfg.Cache.TTL, cfg.Cache.MaxDays, log)

	a.refs, err = reference.Load(cfg.Data.References)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", cfg.Data.References).Msg("no reference file, fundamentals will not be checked")
		a.refs, err = reference.New(nil)
	}
	if err != nil {
		return nil, err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)
	a.analyzer = engine.New(cfg.Engine, log)

	names := make([]string, 0, len(fallback.Providers()))
	for _, p := range fallback.Providers() {
		names = append(names, p.Name())
	}
	log.Debug().Strs("providers", names).Int("bonds", a.refs.Len()).Msg("setup complete")

	return a, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Warn().Err(err).Msg("close failed")
		}
	}
}

func (a *app) newScanner() *scanner.Scanner {
	return scanner.NewScanner(a.provider, a.analyzer, a.refs, a.cfg.Scanner, a.metrics, a.log)
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nInterrupted. Stopping...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func (a *app) fetch(ctx context.Context, code string) (model.Bond, *model.Reference, []model.Bar, error) {
	bond, ref, err := a.refs.Get(code)
	if err != nil && !errors.Is(err, reference.ErrUnknownBond) {
		return bond, nil, nil, err
	}
	bars, err := a.provider.GetDailyBars(ctx, code, a.cfg.Scanner.Days)
	if err != nil {
		return bond, ref, nil, fmt.Errorf("fetching bars: %w", err)
	}
	return bond, ref, bars, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	bond, ref, bars, err := a.fetch(ctx, args[0])
	if err != nil {
		return err
	}
	res, err := a.analyzer.Analyze(bond, bars, ref)
	if err != nil {
		return err
	}

	if format == "json" {
		return outputJSON(res)
	}
	printAnalysis(res)
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if workers > 0 {
		a.cfg.Scanner.Workers = workers
	}

	var bonds []model.Bond
	if codeList != "" {
		for _, code := range strings.Split(codeList, ",") {
			if code = strings.TrimSpace(code); code != "" {
				bonds = append(bonds, model.Bond{Code: code})
			}
		}
	} else {
		bonds = a.refs.Bonds()
	}
	if len(bonds) == 0 {
		return fmt.Errorf("no bonds to scan: pass --codes or list bonds in %s", a.cfg.Data.References)
	}

	s := a.newScanner()
	if format == "table" {
		fmt.Printf("Scanning %d bonds over %d days...\n\n", len(bonds), a.cfg.Scanner.Days)
		bar := progressbar.NewOptions(len(bonds),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Scanning"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]█[reset]",
				SaucerHead:    "[green]█[reset]",
				SaucerPadding: "░",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
		s.SetProgressCallback(func(scanned, total int) {
			_ = bar.Set(scanned)
		})
		defer fmt.Println()
	}

	res, err := s.Scan(ctx, bonds)
	if err != nil && res == nil {
		return err
	}
	if err != nil {
		a.log.Warn().Err(err).Msg("showing partial results")
	}

	results := res.Filter(minScore)
	if format == "json" {
		res.Results = results
		return outputJSON(res)
	}
	printScan(res, results, limit)
	return nil
}

func runRisk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	prices, err := parsePrices(priceCSV)
	if err != nil {
		return err
	}

	_, _, bars, err := a.fetch(ctx, args[0])
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("%s: %w", args[0], engine.ErrNoBars)
	}
	if entry <= 0 {
		entry = bars[len(bars)-1].Close
	}

	st, err := a.analyzer.OpenRisk(bars, entry)
	if err != nil {
		return err
	}
	plan := riskReplay{
		Code:      args[0],
		ID:        st.ID,
		Mode:      st.Mode,
		Entry:     st.EntryPrice,
		ATR:       st.ATR,
		FixedStop: st.FixedStop,
		Ladder:    append([]risk.Rung(nil), st.Ladder...),
		StoppedAt: -1,
	}
	for i, p := range prices {
		u := st.Update(p)
		plan.Updates = append(plan.Updates, u)
		if u.StopHit && plan.StoppedAt < 0 {
			plan.StoppedAt = i
		}
	}
	plan.Final = st

	if format == "json" {
		return outputJSON(plan)
	}
	printRisk(plan)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if addr != "" {
		a.cfg.Server.Addr = addr
	}

	srv := web.NewServer(a.cfg.Server, web.Deps{
		Analyzer: a.analyzer,
		Provider: a.provider,
		Universe: a.refs,
		Scanner:  a.newScanner(),
		Gatherer: a.registry,
		Log:      a.log,
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	a.log.Info().Msg("server stopped")
	return nil
}

func parsePrices(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	prices := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid price %q", p)
		}
		prices = append(prices, v)
	}
	return prices, nil
}

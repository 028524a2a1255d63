package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"imbalcv/config"
	"imbalcv/dataset"
	"imbalcv/evaluation"
	"imbalcv/folds"
	"imbalcv/logger"
	"imbalcv/ml"
	"imbalcv/report"
	"imbalcv/sampling"
	"imbalcv/store"
)

var (
	configPath  string
	outPath     string
	metricsAddr string
	modelDir    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the benchmark described by a config file",
	RunE:  runBenchmark,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the fold plan with per-fold class counts",
	RunE:  runPlan,
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <dir>",
	Short: "Write the configured train and test data as CSV files",
	Args:  cobra.ExactArgs(1),
	RunE:  writeData,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the runs kept in a results database",
	RunE:  listRuns,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults apply when empty)")

	runCmd.Flags().StringVarP(&outPath, "out", "o", "", "SQLite results database; overrides store.path")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	runCmd.Flags().StringVar(&modelDir, "model-out", "", "directory to save the final model of every strategy")

	runsCmd.Flags().StringVarP(&outPath, "out", "o", "", "SQLite results database; overrides store.path")

	rootCmd.AddCommand(runCmd, planCmd, simulateCmd, runsCmd)
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Parse(nil)
	}
	return config.Load(configPath)
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Console:    true,
	})
}

func runBenchmark(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		srv := serveMetrics(metricsAddr, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	train, test, err := cfg.Data.LoadData(cfg.Seed)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}
	log.Info("data loaded",
		zap.Int("train", train.Len()),
		zap.Int("test", test.Len()),
		zap.Any("train_classes", train.ClassCounts()),
	)

	settings, err := config.Build(cfg, config.BuildOptions{Logger: log})
	if err != nil {
		return err
	}
	orch, err := evaluation.New(settings)
	if err != nil {
		return err
	}
	bench, err := orch.Benchmark(ctx, train, test)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	primary := orch.Settings().Primary
	for _, m := range orch.Settings().Metrics {
		rows, err := report.FromBenchmark(bench, m.Name())
		if err != nil {
			return err
		}
		if err := report.Render(out, m.Name(), rows); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	printFailures(out, bench)
	fmt.Fprintf(out, "run %s, best candidates chosen by %s\n", bench.RunID, primary)

	if modelDir != "" {
		if err := saveModels(modelDir, bench); err != nil {
			return err
		}
	}

	path := outPath
	if path == "" {
		path = cfg.Store.Path
	}
	if path != "" {
		st, err := store.Open(path)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveBenchmark(ctx, bench); err != nil {
			return fmt.Errorf("save benchmark: %w", err)
		}
		log.Info("results stored", zap.String("path", path), zap.String("run_id", bench.RunID))
	}
	return nil
}

func serveMetrics(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return srv
}

func printFailures(w io.Writer, b *evaluation.Benchmark) {
	for _, s := range b.Summaries {
		classes := s.FailureClasses()
		if len(classes) == 0 {
			continue
		}
		parts := make([]string, 0, len(classes))
		for _, c := range classes {
			parts = append(parts, fmt.Sprintf("%s=%d", c, s.Failures[c]))
		}
		fmt.Fprintf(w, "%s: %d/%d folds failed (%s)\n", s.Strategy, s.Failed, s.Scheduled, strings.Join(parts, ", "))
	}
	for _, t := range b.Tests {
		if t.Err != nil {
			fmt.Fprintf(w, "%s: test evaluation failed (%s): %v\n", t.Strategy, t.Class, t.Err)
		}
	}
}

func saveModels(dir string, b *evaluation.Benchmark) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model dir: %w", err)
	}
	for _, t := range b.Tests {
		if t.Fitted == nil {
			continue
		}
		model, ok := t.Fitted.Predictor.(ml.Model)
		if !ok {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s-%s.model", t.Strategy, b.Trainer))
		if err := model.Save(path); err != nil {
			return fmt.Errorf("save model %s: %w", t.Strategy, err)
		}
	}
	return nil
}

func runPlan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	train, _, err := cfg.Data.LoadData(cfg.Seed)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}
	settings, err := config.Build(cfg, config.BuildOptions{Custom: placeholderSamplers(cfg)})
	if err != nil {
		return err
	}
	orch, err := evaluation.New(settings)
	if err != nil {
		return err
	}
	plan, err := orch.Plan(train)
	if err != nil {
		return err
	}
	return renderPlan(cmd.OutOrStdout(), settings.Scheme.String(), train, plan)
}

// placeholderSamplers stands in for custom samplers, which only a Go caller
// can register; planning never samples.
func placeholderSamplers(cfg config.Config) map[string]sampling.Subsampler {
	custom := make(map[string]sampling.Subsampler)
	for _, sc := range cfg.Strategies {
		if sc.Kind == "custom" {
			custom[sc.Name] = sampling.Func(func(train dataset.Frame, _ *rand.Rand) (dataset.Frame, error) {
				return train, nil
			})
		}
	}
	return custom
}

func renderPlan(w io.Writer, scheme string, data dataset.Frame, plan []folds.Partition) error {
	classes := data.Classes()
	fmt.Fprintf(w, "%s over %d records\n", scheme, data.Len())
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"repeat", "fold", "train", "holdout"}
	for _, c := range classes {
		header = append(header, "train "+c, "holdout "+c)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for _, p := range plan {
		cols := []string{fmt.Sprint(p.Repeat), fmt.Sprint(p.Fold), fmt.Sprint(len(p.Train)), fmt.Sprint(len(p.Holdout))}
		trainCounts := countLabels(data.Labels, p.Train)
		holdoutCounts := countLabels(data.Labels, p.Holdout)
		for _, c := range classes {
			cols = append(cols, fmt.Sprint(trainCounts[c]), fmt.Sprint(holdoutCounts[c]))
		}
		fmt.Fprintln(tw, strings.Join(cols, "\t")+"\t")
	}
	return tw.Flush()
}

func countLabels(labels []string, idx []int) map[string]int {
	counts := make(map[string]int)
	for _, i := range idx {
		counts[labels[i]]++
	}
	return counts
}

func listRuns(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := outPath
	if path == "" {
		path = cfg.Store.Path
	}
	if path == "" {
		return errors.New("no results database: pass --out or set store.path")
	}
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()
	runs, err := st.Runs(cmd.Context())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "run\tstarted\tscheme\tplacement\ttrainer\tprimary\tfold rows\t")
	for _, r := range runs {
		n, err := st.FoldCount(cmd.Context(), r.RunID)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t\n", r.RunID, r.Started.Format(time.RFC3339), r.Scheme, r.Placement, r.Trainer, r.Primary, n)
	}
	return tw.Flush()
}

// writeData exports the frames a run would use, so a simulated benchmark can
// be replayed from files.
func writeData(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	train, test, err := cfg.Data.LoadData(cfg.Seed)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}
	dir := args[0]
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	for name, frame := range map[string]dataset.Frame{"train.csv": train, "test.csv": test} {
		if err := writeFrame(filepath.Join(dir, name), frame); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d train and %d test records to %s\n", train.Len(), test.Len(), dir)
	return nil
}

func writeFrame(path string, frame dataset.Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dataset.WriteCSV(f, frame); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

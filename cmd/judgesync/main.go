// Command judgesync measures judge/human alignment from the command line.
// It loads human-scored items from a CSV file, runs either a single judge
// configuration or a YAML suite of configurations against them, and prints
// the alignment metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jasher4994/judgesync/infrastructure/judge"
	"github.com/jasher4994/judgesync/infrastructure/llm"
	"github.com/jasher4994/judgesync/infrastructure/loader"
	"github.com/jasher4994/judgesync/infrastructure/observability"
	"github.com/jasher4994/judgesync/internal/application"
	"github.com/jasher4994/judgesync/internal/domain"
	"github.com/jasher4994/judgesync/internal/metrics"
)

func main() {
	var (
		dataPath    = flag.String("data", "", "CSV file of human-scored items (required)")
		suitePath   = flag.String("suite", "", "YAML suite of judge configurations to compare")
		prompt      = flag.String("prompt", "", "Judge prompt for a single alignment run")
		provider    = flag.String("provider", "azure", "LLM provider: openai, azure, anthropic, google")
		model       = flag.String("model", "", "Model or deployment name (provider default if empty)")
		rangeName   = flag.String("range", "five_point", "Score range: binary, five_point, ten_point, percentage")
		temperature = flag.Float64("temperature", 0, "Judge sampling temperature")
		tolerance   = flag.Float64("tolerance", 0, "Agreement tolerance in score units")
		weighting   = flag.String("weighting", "none", "Kappa weighting: none, linear, quadratic")
		concurrency = flag.Int("concurrency", application.DefaultMaxConcurrency, "Max simultaneous judge calls")
		timeout     = flag.Duration("timeout", 30*time.Second, "Per-request LLM timeout")
	)
	flag.Parse()

	if *dataPath == "" {
		log.Fatal("-data is required")
	}
	if *suitePath == "" && *prompt == "" {
		log.Fatal("either -prompt (single run) or -suite (comparison) is required")
	}

	rng, err := parseRange(*rangeName)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := buildClient(*provider, *model, *timeout)
	if err != nil {
		log.Fatalf("creating LLM client: %v", err)
	}
	exec, err := judge.NewExecutor(client, rng)
	if err != nil {
		log.Fatalf("creating judge executor: %v", err)
	}

	csvLoader, err := loader.NewCSVLoader(rng, loader.CSVOptions{})
	if err != nil {
		log.Fatalf("creating csv loader: %v", err)
	}

	snapshot := metrics.SnapshotOptions{
		Weighting: domain.KappaWeighting(*weighting),
		Tolerance: *tolerance,
	}

	if *suitePath != "" {
		if err := runComparison(ctx, rng, exec, csvLoader, *dataPath, *suitePath, *concurrency, snapshot); err != nil {
			log.Fatal(err)
		}
		return
	}

	cfg := domain.JudgeConfig{
		Name:        "cli",
		Prompt:      *prompt,
		Model:       *model,
		Temperature: *temperature,
	}
	if err := runSingle(ctx, rng, exec, csvLoader, *dataPath, cfg, *concurrency, snapshot); err != nil {
		log.Fatal(err)
	}
}

func runSingle(
	ctx context.Context,
	rng domain.ScoreRange,
	exec *judge.Executor,
	csvLoader *loader.CSVLoader,
	dataPath string,
	cfg domain.JudgeConfig,
	concurrency int,
	snapshot metrics.SnapshotOptions,
) error {
	tracker, err := application.NewAlignmentTracker(rng, exec,
		application.WithDataLoader(csvLoader),
		application.WithConcurrency(concurrency),
		application.WithSnapshotOptions(snapshot),
	)
	if err != nil {
		return err
	}
	if err := tracker.LoadHumanScores(ctx, dataPath); err != nil {
		return err
	}
	if err := tracker.SetJudge(cfg); err != nil {
		return err
	}

	fmt.Print(tracker.Summary())
	fmt.Printf("Running alignment test over %d items...\n\n", tracker.Len())

	result, err := tracker.RunAlignmentTest(ctx)
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

func runComparison(
	ctx context.Context,
	rng domain.ScoreRange,
	exec *judge.Executor,
	csvLoader *loader.CSVLoader,
	dataPath, suitePath string,
	concurrency int,
	snapshot metrics.SnapshotOptions,
) error {
	configs, err := application.LoadJudgeConfigs(suitePath)
	if err != nil {
		return err
	}
	items, err := csvLoader.Load(ctx, dataPath)
	if err != nil {
		return err
	}

	comparison, err := application.NewJudgeComparison(rng, exec,
		application.WithComparisonConcurrency(concurrency),
		application.WithComparisonSnapshotOptions(snapshot),
	)
	if err != nil {
		return err
	}
	if err := comparison.AddConfigs(configs...); err != nil {
		return err
	}

	fmt.Printf("Comparing %d judge configurations over %d items...\n\n", len(configs), len(items))

	results, err := comparison.RunComparison(ctx, items)
	if err != nil {
		return err
	}

	for _, entry := range results.Entries() {
		if entry.Failed() {
			fmt.Printf("%s: FAILED: %v\n\n", entry.Config.Name, entry.Err)
			continue
		}
		fmt.Printf("%s:\n", entry.Config.Name)
		printResult(*entry.Result)
	}

	best, err := results.Best()
	if err != nil {
		return err
	}
	fmt.Printf("Best configuration: %s (kappa %.3f)\n", best.Config.Name, best.Result.Kappa)

	if disagreements := results.Disagreements(1.0); len(disagreements) > 0 {
		fmt.Printf("\nItems with judge disagreement above 1.0:\n")
		for _, d := range disagreements {
			fmt.Printf("  %q spread %.1f %v\n", truncate(d.Item.Question, 60), d.Spread, d.Scores)
		}
	}
	return nil
}

func buildClient(provider, model string, timeout time.Duration) (*llm.Client, error) {
	collector := observability.NewPrometheusCollector("judgesync")
	cfg := llm.ClientConfig{
		Model:   model,
		Timeout: timeout,
		Middleware: []llm.Middleware{
			llm.TracingMiddleware("judgesync"),
			llm.MetricsMiddleware(collector, provider),
			llm.RetryMiddleware(3, 500*time.Millisecond, 10*time.Second),
		},
	}

	switch provider {
	case "azure":
		cfg.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		cfg.AzureEndpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
		cfg.AzureAPIVersion = os.Getenv("AZURE_OPENAI_API_VERSION")
	case "openai":
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case "google":
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	return llm.NewClient(provider, cfg)
}

func parseRange(name string) (domain.ScoreRange, error) {
	switch domain.ScoreRangeKind(name) {
	case domain.RangeBinary:
		return domain.BinaryRange(), nil
	case domain.RangeFivePoint:
		return domain.FivePointRange(), nil
	case domain.RangeTenPoint:
		return domain.TenPointRange(), nil
	case domain.RangePercentage:
		return domain.PercentageRange(), nil
	default:
		return domain.ScoreRange{}, fmt.Errorf("unknown score range %q", name)
	}
}

func printResult(r domain.AlignmentResult) {
	fmt.Printf("  kappa (%s): %.3f\n", r.KappaWeighting, r.Kappa)
	fmt.Printf("  agreement rate (tolerance %g): %.1f%%\n", r.Tolerance, r.AgreementRate*100)
	if r.CorrelationDefined {
		fmt.Printf("  correlation (%s): %.3f\n", r.CorrelationMethod, r.Correlation)
	} else {
		fmt.Printf("  correlation (%s): undefined (zero variance)\n", r.CorrelationMethod)
	}
	fmt.Printf("  sample size: %d", r.SampleSize)
	if r.Excluded > 0 {
		fmt.Printf(" (%d excluded after judge failures)", r.Excluded)
	}
	fmt.Println()
	fmt.Println()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

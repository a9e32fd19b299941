package crawl

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/toyofumi/opendata/collector"
	"github.com/toyofumi/opendata/engine"
	"github.com/toyofumi/opendata/limiter"
	"github.com/toyofumi/opendata/log"
	"github.com/toyofumi/opendata/proxy"
	"github.com/toyofumi/opendata/spider"
	"github.com/toyofumi/opendata/storage/csvstore"
	"github.com/toyofumi/opendata/storage/sqlstore"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

var CrawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "run crawl.",
	Long:  "run crawl.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Run()
	},
}

var ConfigsCmd = &cobra.Command{
	Use:   "configs",
	Short: "list discovered crawl configurations.",
	Long:  "list discovered crawl configurations.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunConfigs()
	},
}

var (
	topic      string
	country    string
	configPath string
	topicsDir  string
	outPath    string
	sqlURL     string
	countries  string
	wait       time.Duration
	proxies    []string
	perMinute  int
	maxDepth   int
	logLevel   string
	logFile    string
)

func init() {
	CrawlCmd.Flags().StringVar(&topic, "topic", "", "topic to collect, empty means all")
	CrawlCmd.Flags().StringVar(&country, "country", "", "two-letter country code, empty means all")
	CrawlCmd.Flags().StringVar(&configPath, "config", "", "run a single scrape configuration file")
	CrawlCmd.Flags().StringVar(&topicsDir, "topics", "topics", "configuration directory")
	CrawlCmd.Flags().StringVar(&outPath, "out", "", "output csv path for single-config mode")
	CrawlCmd.Flags().StringVar(&sqlURL, "sql-url", "", "mysql dsn, also store single-config records into MySQL")
	CrawlCmd.Flags().StringVar(&countries, "countries", "", "country code table used to validate --country")
	CrawlCmd.Flags().DurationVar(&wait, "wait", 500*time.Millisecond, "base pause between requests")
	CrawlCmd.Flags().StringSliceVar(&proxies, "proxy", nil, "proxy urls, rotated round robin")
	CrawlCmd.Flags().IntVar(&perMinute, "per-minute", 0, "hard request-per-minute cap, 0 disables")
	CrawlCmd.Flags().IntVar(&maxDepth, "max-depth", 5, "maximum navigation depth")
	CrawlCmd.Flags().StringVar(&logLevel, "log-level", "INFO", "log verbosity")
	CrawlCmd.Flags().StringVar(&logFile, "log-file", "", "also write logs to this file")

	ConfigsCmd.Flags().StringVar(&topic, "topic", "", "topic to list, empty means all")
	ConfigsCmd.Flags().StringVar(&country, "country", "", "country code to list, empty means all")
	ConfigsCmd.Flags().StringVar(&topicsDir, "topics", "topics", "configuration directory")
}

func newLogger() (*zap.Logger, io.Closer, error) {
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	plugin := log.NewStdoutPlugin(level)
	var closer io.Closer
	if logFile != "" {
		filePlugin, c := log.NewFilePlugin(logFile, level)
		closer = c
		plugin = zapcore.NewTee(plugin, filePlugin)
	}
	return log.NewLogger(plugin), closer, nil
}

func Run() error {
	logger, closer, err := newLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	defer logger.Sync()
	logger.Info("log init end")

	fetcher := &spider.BaseFetch{
		WaitTime: wait,
		Logger:   logger,
	}
	if len(proxies) > 0 {
		pf, err := proxy.RoundRobinProxySwitcher(proxies...)
		if err != nil {
			return err
		}
		fetcher.Proxy = pf
	}
	if perMinute > 0 {
		fetcher.Limit = limiter.Multi(
			rate.NewLimiter(limiter.Per(perMinute, time.Minute), 1),
		)
	}

	if configPath != "" {
		return runSingle(logger, fetcher)
	}

	if country != "" && countries != "" {
		table, err := collector.LoadCountries(countries)
		if err != nil {
			return err
		}
		if _, ok := table[strings.ToLower(country)]; !ok {
			return fmt.Errorf("unknown country code: %q", country)
		}
	}

	c := collector.New(
		collector.WithConfigDir(topicsDir),
		collector.WithFetcher(fetcher),
		collector.WithLogger(logger),
		collector.WithMaxDepth(maxDepth),
	)

	if topic != "" || country != "" {
		saved, err := c.Collect(topic, country)
		if err != nil {
			return err
		}
		for cfg, files := range saved {
			logger.Info("configuration done",
				zap.String("config", cfg), zap.Strings("files", files))
		}
		return nil
	}

	jobs, err := c.DiscoverJobs()
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no configurations found under %s", topicsDir)
	}

	results := c.RunBatch(context.Background(), jobs)
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			logger.Error("FAILED",
				zap.String("topic", res.Job.Topic),
				zap.String("country", res.Job.Country),
				zap.Error(res.Err))
			continue
		}
		logger.Info("SUCCESS",
			zap.String("topic", res.Job.Topic),
			zap.String("country", res.Job.Country),
			zap.Strings("files", res.SavedFiles))
	}
	logger.Info("batch finished",
		zap.Int("total", len(results)), zap.Int("failed", failed))
	return nil
}

// runSingle crawls one scrape configuration and writes its records to a csv,
// bypassing the topic tree entirely.
func runSingle(logger *zap.Logger, fetcher spider.Fetcher) error {
	cfg, err := spider.LoadScrapeConfig(configPath)
	if err != nil {
		return err
	}

	crawler := engine.NewCrawler(
		engine.WithFetcher(fetcher),
		engine.WithLogger(logger),
		engine.WithMaxDepth(maxDepth),
	)
	report, err := crawler.Run(cfg)
	if err != nil {
		return err
	}
	logger.Info("crawl finished",
		zap.Int("records", report.Results.Len()),
		zap.Int("warnings", report.Warnings))

	out := outPath
	if out == "" {
		out = "results.csv"
	}
	store, err := csvstore.New(csvstore.WithPath(out), csvstore.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := store.Save(report.Results.All()...); err != nil {
		return err
	}
	if err := store.Flush(); err != nil {
		return err
	}

	if sqlURL == "" {
		return nil
	}
	db, err := sqlstore.New(sqlstore.WithSQLURL(sqlURL), sqlstore.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := db.Save(report.Results.All()...); err != nil {
		return err
	}
	return db.Flush()
}

func RunConfigs() error {
	c := collector.New(collector.WithConfigDir(topicsDir))
	paths, err := c.Discover(topic, country)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Println("no configurations found")
		return nil
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

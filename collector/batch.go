package collector

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is one discovered topic/country configuration.
type Job struct {
	Topic      string
	Country    string
	ConfigPath string
}

// JobResult is the per-job outcome of a batch run.
type JobResult struct {
	Job        Job
	SavedFiles []string
	Err        error
}

// DiscoverJobs walks the whole configuration tree.
func (c *Collector) DiscoverJobs() ([]Job, error) {
	entries, err := os.ReadDir(c.configDir)
	if err != nil {
		return nil, err
	}

	var jobs []Job
	for _, topicEntry := range entries {
		if !topicEntry.IsDir() {
			continue
		}
		topicDir := filepath.Join(c.configDir, topicEntry.Name())
		countries, err := os.ReadDir(topicDir)
		if err != nil {
			continue
		}
		for _, countryEntry := range countries {
			if !countryEntry.IsDir() {
				continue
			}
			p := filepath.Join(topicDir, countryEntry.Name(), indexFile)
			if _, err := os.Stat(p); err != nil {
				continue
			}
			jobs = append(jobs, Job{
				Topic:      topicEntry.Name(),
				Country:    strings.ToUpper(countryEntry.Name()),
				ConfigPath: p,
			})
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ConfigPath < jobs[j].ConfigPath })
	return jobs, nil
}

// RunBatch processes jobs concurrently with at most min(10, len(jobs))
// workers. Each job owns its own crawl engine and result sink, so workers
// share no mutable state; failures are reported per job and never cancel
// the others.
func (c *Collector) RunBatch(ctx context.Context, jobs []Job) []JobResult {
	if len(jobs) == 0 {
		return nil
	}

	limit := len(jobs)
	if limit > 10 {
		limit = 10
	}

	results := make([]JobResult, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			select {
			case <-ctx.Done():
				results[i] = JobResult{Job: job, Err: ctx.Err()}
				return nil
			default:
			}

			c.logger.Info("running crawler",
				zap.String("topic", job.Topic),
				zap.String("country", job.Country))

			res := JobResult{Job: job}
			out, err := c.ProcessConfig(job.ConfigPath)
			if err == nil {
				res.SavedFiles, err = c.Save(out)
			}
			res.Err = err

			// each job writes only its own slot
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"nui/internal/config"
	"nui/internal/crawler"
	"nui/internal/sink"
	"nui/internal/validator"
	"nui/pkg/nui"
)

// Crawl errors.
var (
	ErrSourcesFailed = errors.New("some sources failed")
	ErrSchemaCheck   = errors.New("entries failed the schema check")
)

type crawlFlags struct {
	url         string
	file        string
	countryCode string
	state       string
	out         string
	format      string
	also        []string
	noStore     bool
	noPublish   bool
}

func newCrawlCmd(a *app) *cobra.Command {
	var f crawlFlags

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl configured sources and emit their entries",
		Long: "crawl fetches every enabled source from the configuration (or the single " +
			"source given with --url), builds an entry per document and writes the entries " +
			"to the configured output. Entries are also saved to the store and published to " +
			"NATS when those sections are enabled.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runCrawl(cmd, &f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.url, "url", "", "Crawl this single URL instead of the configured sources")
	flags.StringVar(&f.file, "file", "", "Local snapshot of --url to read instead of fetching")
	flags.StringVar(&f.countryCode, "country-code", "", "Country code for --url")
	flags.StringVar(&f.state, "state", "", "State or province code for --url")
	flags.StringVarP(&f.out, "out", "o", "", "Output file, - for stdout (overrides config)")
	flags.StringVar(&f.format, "format", "", "Output format (overrides config)")
	flags.StringSliceVar(&f.also, "also", nil, "Additional output files, format from extension (repeatable)")
	flags.BoolVar(&f.noStore, "no-store", false, "Do not save entries to the store")
	flags.BoolVar(&f.noPublish, "no-publish", false, "Do not publish entries to NATS")

	return cmd
}

func (f *crawlFlags) apply(cfg *config.Config) {
	if f.url != "" {
		cfg.Crawler.Sources = []config.SourceConfig{{
			URL:               f.url,
			File:              f.file,
			CountryCode:       f.countryCode,
			StateProvinceCode: f.state,
			Enabled:           true,
		}}
	}

	if f.out != "" {
		cfg.Output.Path = f.out
	}

	if f.format != "" {
		cfg.Output.Format = f.format
	} else if f.out != "" {
		cfg.Output.Format = formatFor("", f.out, cfg.Output.Format)
	}

	if f.noStore {
		cfg.Store.Enabled = false
	}

	if f.noPublish {
		cfg.Publish.Enabled = false
	}
}

func (a *app) runCrawl(cmd *cobra.Command, f *crawlFlags) error {
	cfg := *a.cfg
	f.apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid crawl configuration: %w", err)
	}

	ctx := cmd.Context()
	runID := uuid.NewString()
	log := a.log.With("run_id", runID)

	log.Info("crawl started", "sources", len(cfg.GetEnabledSources()), "format", cfg.Output.Format)

	result, err := crawler.NewClient(&cfg, log).CrawlAll(ctx, cfg.Crawler.Sources)
	if err != nil {
		return err
	}

	if cfg.Record.SchemaCheck {
		if err := checkSchema(result.Entries); err != nil {
			return err
		}
	}

	w, err := openOutputs(cmd, &cfg, f.also)
	if err != nil {
		return err
	}

	if err := sink.WriteAll(w, result.Entries); err != nil {
		_ = w.Close()
		return err
	}

	if err := w.Close(); err != nil {
		return err
	}

	log.Info("entries written", "path", cfg.GetOutputPath(), "also", f.also, "count", len(result.Entries))

	if cfg.Store.Enabled {
		if err := saveEntries(ctx, cfg.Store.Path, "crawl:"+runID, result.Entries); err != nil {
			return err
		}

		log.Info("entries stored", "dir", cfg.Store.Path, "count", len(result.Entries))
	}

	if cfg.Publish.Enabled {
		pub, err := sink.Connect(&cfg.Publish, log)
		if err != nil {
			return err
		}

		res, err := pub.Publish(ctx, result.Entries)
		closeErr := pub.Close()

		if err != nil {
			return err
		}

		if closeErr != nil {
			return closeErr
		}

		log.Info("entries published", "subject", cfg.Publish.Subject, "published", res.Published, "failed", res.Failed)

		if res.Failed > 0 {
			return fmt.Errorf("publish failed for %d entries: %w", res.Failed, errors.Join(res.Errors...))
		}
	}

	if len(result.Errors) > 0 {
		errs := make([]error, 0, len(result.Errors))
		for _, se := range result.Errors {
			errs = append(errs, se)
		}

		return fmt.Errorf("%w: %w", ErrSourcesFailed, errors.Join(errs...))
	}

	return nil
}

// openOutputs opens the configured output plus one sink per extra path.
func openOutputs(cmd *cobra.Command, cfg *config.Config, extra []string) (sink.Writer, error) {
	opts := sink.Options{
		PrettyPrint: cfg.Output.PrettyPrint,
		Validated:   cfg.Record.SchemaCheck,
	}

	primary, err := openOutput(cmd, cfg.Output.Format, cfg.GetOutputPath(), opts)
	if err != nil {
		return nil, err
	}

	if len(extra) == 0 {
		return primary, nil
	}

	writers := []sink.Writer{primary}

	for _, path := range extra {
		w, err := openOutput(cmd, formatFor("", path, cfg.Output.Format), path, opts)
		if err != nil {
			_ = sink.Multi(writers...).Close()
			return nil, err
		}

		writers = append(writers, w)
	}

	return sink.Multi(writers...), nil
}

// checkSchema validates entries against the published record schema.
func checkSchema(entries []*nui.Entry) error {
	v, err := validator.NewSchemaValidator()
	if err != nil {
		return err
	}

	docs := make([][]byte, 0, len(entries))

	for _, e := range entries {
		data, err := e.MarshalJSON()
		if err != nil {
			return err
		}

		docs = append(docs, data)
	}

	result, err := v.ValidateDocuments(docs)
	if err != nil {
		return err
	}

	if !result.IsValid {
		return fmt.Errorf("%w: %v", ErrSchemaCheck, result.Summary())
	}

	return nil
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nui/internal/crawler"
	"nui/pkg/nui"
)

type buildFlags struct {
	url              string
	crawlDate        string
	sourceDomain     string
	countryCode      string
	state            string
	simhash          string
	canonicalURLHash string
	keywords         []string
	strict           bool
	pretty           bool
}

func newBuildCmd(a *app) *cobra.Command {
	var f buildFlags

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a single entry from flags and print its record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields, err := f.fields(cmd)
			if err != nil {
				return err
			}

			entry, err := nui.New(fields, a.entryOptions(f.strict)...)
			if err != nil {
				return err
			}

			a.log.Debug("built entry", "url", entry.URL(), "hash", entry.IntegrityHash())

			return printJSON(cmd.OutOrStdout(), entry, f.pretty)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.url, "url", "", "Document URL (required)")
	flags.StringVar(&f.crawlDate, "crawl-date", "", "Crawl timestamp, ISO-8601 (default: now, UTC)")
	flags.StringVar(&f.sourceDomain, "source-domain", "", "Source domain (default: registrable domain of --url)")
	flags.StringVar(&f.countryCode, "country-code", "", "ISO-3166 alpha-2 country code (required)")
	flags.StringVar(&f.state, "state", "", "State or province code")
	flags.StringVar(&f.simhash, "simhash", "", "Simhash signature")
	flags.StringVar(&f.canonicalURLHash, "canonical-url-hash", "", "Canonical URL hash")
	flags.StringSliceVar(&f.keywords, "keyword", nil, "Keyword (repeatable)")
	flags.BoolVar(&f.strict, "strict", false, "Validate field formats before hashing")
	flags.BoolVar(&f.pretty, "pretty", false, "Indent the JSON record")

	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("country-code")

	return cmd
}

// fields turns the flags into entry input. Optional fields are only set
// when their flag was given, so an explicit empty value stays distinct
// from an absent one.
func (f *buildFlags) fields(cmd *cobra.Command) (nui.Fields, error) {
	ts := nui.Zoned(time.Now().UTC())
	if f.crawlDate != "" {
		parsed, err := nui.ParseTimestamp(f.crawlDate)
		if err != nil {
			return nui.Fields{}, fmt.Errorf("invalid --crawl-date: %w", err)
		}

		ts = parsed
	}

	domain := f.sourceDomain
	if domain == "" {
		d, err := crawler.RegistrableDomain(f.url)
		if err != nil {
			return nui.Fields{}, fmt.Errorf("cannot derive --source-domain: %w", err)
		}

		domain = d
	}

	fields := nui.Fields{
		URL:          f.url,
		CrawlDate:    ts,
		SourceDomain: domain,
		CountryCode:  f.countryCode,
		Keywords:     f.keywords,
	}

	changed := cmd.Flags().Changed
	if changed("state") {
		fields.StateProvinceCode = nui.Optional(f.state)
	}

	if changed("simhash") {
		fields.SimhashSig = nui.Optional(f.simhash)
	}

	if changed("canonical-url-hash") {
		fields.CanonicalURLHash = nui.Optional(f.canonicalURLHash)
	}

	return fields, nil
}

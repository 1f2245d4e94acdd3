package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nui/pkg/nui"
)

// referenceFields is the documented reference entry.
func referenceFields() nui.Fields {
	return nui.Fields{
		URL:               "https://www.nsf.gov/research_paper_123.pdf",
		CrawlDate:         nui.Naive(time.Date(2025, 11, 13, 10, 0, 0, 0, time.UTC)),
		SourceDomain:      "nsf.gov",
		CountryCode:       "US",
		StateProvinceCode: nui.Optional("VA"),
		SimhashSig:        nui.Optional("a3b2c1d0e4f5a6b7"),
		Keywords:          []string{"computational-science", "grant-funding", "resilience"},
	}
}

func newExampleCmd(_ *app) *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "example",
		Short: "Build the reference entry and show that tampering changes its hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			entry, err := nui.New(referenceFields())
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Core:  %s\n", entry.CoreString())
			fmt.Fprintf(out, "Hash:  %s\n\n", entry.IntegrityHash())

			if err := printJSON(out, entry, pretty); err != nil {
				return err
			}

			f := referenceFields()
			f.SourceDomain = "fake.gov"

			tampered, err := nui.New(f)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "\nTampered source_domain=fake.gov: %s\n", tampered.IntegrityHash())

			if tampered.IntegrityHash() == entry.IntegrityHash() {
				fmt.Fprintln(out, "❌ Tamper check failed: hashes are equal")
				return errors.New("tampered entry kept the original hash")
			}

			fmt.Fprintln(out, "✅ Tamper check passed: hashes differ")

			return nil
		},
	}

	cmd.Flags().BoolVar(&pretty, "pretty", true, "Indent the JSON record")

	return cmd
}

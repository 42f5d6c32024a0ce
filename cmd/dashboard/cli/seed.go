package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sekolah/dashboard/internal/seed"
)

// SeedRunner runs a seeding pass.
type SeedRunner interface {
	Run(ctx context.Context) seed.Report
}

// SeedOptions defines available flags for the seed command.
type SeedOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// SeedCommand seeds the test accounts and prints the outcome. The exit code
// is 1 when any account failed.
func SeedCommand(ctx context.Context, runner SeedRunner, opts SeedOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if runner == nil {
		_, _ = fmt.Fprintln(opts.Stderr, "seed: seeder not configured")
		return 1
	}
	report := runner.Run(ctx)
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(report); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "seed: encode json: %v\n", err)
			return 1
		}
	} else {
		renderSeedHuman(opts.Stdout, report)
	}
	for _, res := range report.Users {
		if res.Status == seed.StatusError {
			return 1
		}
	}
	return 0
}

func renderSeedHuman(w io.Writer, report seed.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "EMAIL\tROLE\tSTATUS")
	for _, res := range report.Users {
		status := res.Status
		if res.Error != "" {
			status += ": " + res.Error
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", res.Email, res.Role, status)
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(w, "%s. Password: %s\n", report.Message, report.Credentials.Password)
}

// Package seed provides the command that loads fixture organizations into
// the configured store.
package seed

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agentstation/statuspage/cmd/application"
	"github.com/agentstation/statuspage/internal/cmd/emoji"
	"github.com/agentstation/statuspage/internal/cmd/output"
	"github.com/agentstation/statuspage/internal/store"
)

// NewCommand creates the seed command.
func NewCommand(app application.Application) *cobra.Command {
	var (
		file   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load organizations, services and members from a YAML file",
		Long: `Seed reads a YAML fixture and creates the organizations, services
and members it describes in the configured store. Existing organizations
are reused, services are matched by name and members by user id, so
running the same file twice changes nothing.

Seeding only persists with a database driver (sqlite or mysql); the
memory store is discarded when the command exits.`,
		Example: `  STATUSPAGE_DATABASE_DRIVER=sqlite STATUSPAGE_DATABASE_DSN=status.db \
  statuspage seed --file seed.yaml

  # Validate a file without writing
  statuspage seed --file seed.yaml --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := app.Logger()

			seed, err := store.LoadSeed(file)
			if err != nil {
				return err
			}
			if dryRun {
				cmd.Printf("%s %s is valid (%d organizations)\n", emoji.Success, file, len(seed.Organizations))
				return nil
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			res, err := store.Apply(cmd.Context(), st, seed)
			if err != nil {
				return err
			}

			logger.Info().
				Str("file", file).
				Int("organizations", res.Organizations).
				Int("services", res.Services).
				Int("members", res.Members).
				Int("skipped", res.Skipped).
				Msg("Seed applied")

			format := output.FormatTable
			if f := cmd.Flag("format"); f != nil && f.Value.String() != "" {
				if format, err = output.ParseFormat(f.Value.String()); err != nil {
					return err
				}
			}
			return output.NewFormatter(format).Format(cmd.OutOrStdout(), result(res))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Seed YAML file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the file without writing")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// result renders a SeedResult.
type result store.SeedResult

// Table implements output.Tabular.
func (r result) Table() output.Data {
	return output.Data{
		Headers: []string{"Created", "Count"},
		Rows: [][]string{
			{"organizations", strconv.Itoa(r.Organizations)},
			{"services", strconv.Itoa(r.Services)},
			{"members", strconv.Itoa(r.Members)},
			{"skipped", strconv.Itoa(r.Skipped)},
		},
	}
}

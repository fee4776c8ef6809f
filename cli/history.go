package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gclaussn/bpmn-sol/store"
	"github.com/spf13/cobra"
)

func newHistoryCmd(cli *Cli) *cobra.Command {
	var (
		databaseUrl string
		limit       int
	)

	c := cobra.Command{
		Use:   "history",
		Short: "List recorded compilation runs",
		RunE: func(c *cobra.Command, _ []string) error {
			s, err := store.New(databaseUrl)
			if err != nil {
				return err
			}

			defer s.Shutdown()

			compilations, err := s.Query(context.Background(), limit)
			if err != nil {
				return err
			}

			t := newTable([]string{"ID", "CONTRACT", "DIAGRAM", "SHA256", "SLITHER", "CUSTOM", "ERRORS", "CREATED AT"})
			for _, compilation := range compilations {
				t.addRow([]string{
					strconv.FormatInt(compilation.Id, 10),
					compilation.ContractName,
					compilation.DiagramPath,
					compilation.ArtifactSha256[:12],
					strconv.Itoa(compilation.SlitherFindingCount),
					strconv.Itoa(compilation.CustomFindingCount),
					strconv.FormatBool(compilation.HasErrors),
					formatTime(compilation.CreatedAt),
				})
			}

			fmt.Fprint(cli.stdout, t.format())
			return nil
		},
	}

	c.Flags().StringVar(&databaseUrl, "database-url", "", "Postgres URL for recording compilation runs")
	c.Flags().IntVar(&limit, "limit", 100, "Maximum number of runs to list")

	c.Flags().SetAnnotation("database-url", envLookupAllowed, nil)

	return &c
}

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/leopaint/pkg/model"
	"github.com/m-mizutani/leopaint/pkg/service/history"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "history",
		Usage: "Inspect the local generation history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List history items, newest first",
				Flags: globalFlags(&cfg),
				Action: func(ctx context.Context, c *cli.Command) error {
					repo, err := cfg.newRepository(ctx)
					if err != nil {
						return err
					}
					defer repo.Close()

					st, err := cfg.newStudio(ctx, repo)
					if err != nil {
						return err
					}

					items := st.History()
					if len(items) == 0 {
						fmt.Fprintln(c.Root().Writer, "No history yet")
						return nil
					}

					for _, item := range items {
						created := time.UnixMilli(item.Timestamp).Format("2006-01-02 15:04:05")
						fmt.Fprintf(c.Root().Writer, "%s\tv%d\t%s\t%s\t%s\n",
							item.ID, item.Version, item.AspectRatio, created, item.Prompt)
					}
					return nil
				},
			},
			{
				Name:      "show",
				Usage:     "Show an item and its version lineage",
				ArgsUsage: "<item-id>",
				Flags:     globalFlags(&cfg),
				Action: func(ctx context.Context, c *cli.Command) error {
					id := c.Args().First()
					if id == "" {
						return goerr.New("item ID is required")
					}

					repo, err := cfg.newRepository(ctx)
					if err != nil {
						return err
					}
					defer repo.Close()

					st, err := cfg.newStudio(ctx, repo)
					if err != nil {
						return err
					}

					chain := st.Lineage(model.HistoryItemID(id))
					if len(chain) == 0 {
						return goerr.Wrap(model.ErrItemNotFound, "no such item", goerr.V("id", id))
					}

					item := chain[0]
					fmt.Fprintf(c.Root().Writer, "ID:           %s\n", item.ID)
					fmt.Fprintf(c.Root().Writer, "Prompt:       %s\n", item.Prompt)
					fmt.Fprintf(c.Root().Writer, "Aspect ratio: %s\n", item.AspectRatio)
					fmt.Fprintf(c.Root().Writer, "Version:      %d\n", item.Version)
					if item.RemoteURL != "" {
						fmt.Fprintf(c.Root().Writer, "Hosted:       %s\n", item.RemoteURL)
					}

					if len(chain) > 1 {
						fmt.Fprintln(c.Root().Writer, "Lineage:")
						for _, ancestor := range chain[1:] {
							fmt.Fprintf(c.Root().Writer, "  v%d\t%s\t%s\n",
								ancestor.Version, ancestor.ID, ancestor.Prompt)
						}
					}
					return nil
				},
			},
			{
				Name:  "clear",
				Usage: "Remove all history items",
				Flags: globalFlags(&cfg),
				Action: func(ctx context.Context, c *cli.Command) error {
					repo, err := cfg.newRepository(ctx)
					if err != nil {
						return err
					}
					defer repo.Close()

					if err := history.New(repo).Clear(ctx); err != nil {
						return err
					}
					fmt.Fprintln(c.Root().Writer, "History cleared")
					return nil
				},
			},
		},
	}
}

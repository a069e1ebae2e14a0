package cli

import (
	"context"

	"github.com/m-mizutani/leopaint/pkg/model"
	"github.com/urfave/cli/v3"
)

func shareCommand() *cli.Command {
	var (
		cfg    config
		itemID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Aliases:     []string{"i"},
			Usage:       "History item to share (defaults to the most recent)",
			Destination: &itemID,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "share",
		Usage: "Publish an image to a public host and print its share link",
		Flags: flags,
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

			if itemID != "" {
				if _, err := st.Select(model.HistoryItemID(itemID)); err != nil {
					return err
				}
			}

			result, err := st.Share(ctx, cfg.baseURL)
			if err != nil {
				return err
			}

			printShareResult(c, result)
			return nil
		},
	}
}

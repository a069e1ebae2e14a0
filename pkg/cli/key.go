package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/leopaint/pkg/service/credential"
	"github.com/urfave/cli/v3"
)

func keyCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "key",
		Usage: "Manage the stored API key",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Store an API key (persisted for one year)",
				ArgsUsage: "[api-key]",
				Flags:     globalFlags(&cfg),
				Action: func(ctx context.Context, c *cli.Command) error {
					key := strings.TrimSpace(c.Args().First())
					if key == "" {
						entered, err := promptKey()
						if err != nil {
							return err
						}
						key = entered
					}

					if len(key) < credential.MinKeyLength {
						return goerr.New("API key looks too short",
							goerr.V("min_length", credential.MinKeyLength))
					}

					repo, err := cfg.newRepository(ctx)
					if err != nil {
						return err
					}
					defer repo.Close()

					store := credential.New(repo)
					if err := store.Set(ctx, key); err != nil {
						return err
					}

					fmt.Fprintln(c.Root().Writer, "API key stored")
					return nil
				},
			},
			{
				Name:  "clear",
				Usage: "Remove the stored API key",
				Flags: globalFlags(&cfg),
				Action: func(ctx context.Context, c *cli.Command) error {
					repo, err := cfg.newRepository(ctx)
					if err != nil {
						return err
					}
					defer repo.Close()

					store := credential.New(repo)
					if err := store.Clear(ctx); err != nil {
						return err
					}

					fmt.Fprintln(c.Root().Writer, "API key cleared")
					return nil
				},
			},
		},
	}
}

func promptKey() (string, error) {
	rl, err := readline.New("")
	if err != nil {
		return "", goerr.Wrap(err, "failed to open prompt")
	}
	defer rl.Close()

	key, err := rl.ReadPassword("API key: ")
	if err != nil {
		return "", goerr.Wrap(err, "no API key given")
	}
	return strings.TrimSpace(string(key)), nil
}

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/leopaint/pkg/model"
	"github.com/urfave/cli/v3"
)

func enhanceCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "enhance",
		Usage:     "Rewrite a prompt to be more descriptive and artistic",
		ArgsUsage: "<prompt>",
		Flags:     globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			prompt := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if prompt == "" {
				return goerr.Wrap(model.ErrEmptyPrompt, "a prompt argument is required")
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

			st.SetConfig(model.GenerationConfig{
				Prompt:      prompt,
				AspectRatio: model.DefaultAspectRatio,
			})

			enhanced, err := st.Enhance(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintln(c.Root().Writer, enhanced)
			return nil
		},
	}
}

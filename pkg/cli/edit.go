package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/leopaint/pkg/model"
	"github.com/m-mizutani/leopaint/pkg/service/painter"
	"github.com/urfave/cli/v3"
)

func editCommand() *cli.Command {
	var (
		cfg      config
		sourceID string
		output   string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Aliases:     []string{"i"},
			Usage:       "History item to edit (defaults to the most recent)",
			Destination: &sourceID,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Path to write the edited image to",
			Destination: &output,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:      "edit",
		Usage:     "Edit the active image with a text instruction",
		ArgsUsage: "<instruction>",
		Flags:     flags,
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

			if sourceID != "" {
				if _, err := st.Select(model.HistoryItemID(sourceID)); err != nil {
					return err
				}
			}

			instruction := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if instruction == "" {
				instruction, err = promptInstruction()
				if err != nil {
					return err
				}
			}

			item, err := runWithSpinner(ctx, "Editing",
				func(ctx context.Context, onStatus painter.StatusFunc) (*model.HistoryItem, error) {
					return st.Edit(ctx, instruction, onStatus)
				})
			if err != nil {
				return hintCredential(c, err)
			}

			fmt.Fprintf(c.Root().Writer, "Edited %s (v%d, from %s)\n", item.ID, item.Version, item.ParentID)

			if output == "" {
				output = fmt.Sprintf("leopaint-%s.png", item.ID)
			}
			if err := writeImage(output, item.ImageURL); err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "Saved: %s\n", output)

			return nil
		},
	}
}

func promptInstruction() (string, error) {
	rl, err := readline.New("Edit instruction> ")
	if err != nil {
		return "", goerr.Wrap(err, "failed to open prompt")
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		return "", goerr.Wrap(err, "no instruction given")
	}
	return strings.TrimSpace(line), nil
}

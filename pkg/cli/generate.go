package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/leopaint/pkg/model"
	"github.com/m-mizutani/leopaint/pkg/service/painter"
	"github.com/m-mizutani/leopaint/pkg/usecase/studio"
	"github.com/urfave/cli/v3"
)

func generateCommand() *cli.Command {
	var (
		cfg         config
		prompt      string
		aspectRatio string
		fromLink    string
		enhance     bool
		share       bool
		output      string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "prompt",
			Aliases:     []string{"p"},
			Usage:       "Text prompt to generate from",
			Sources:     cli.EnvVars("LEOPAINT_PROMPT"),
			Destination: &prompt,
		},
		&cli.StringFlag{
			Name:        "aspect-ratio",
			Aliases:     []string{"a"},
			Usage:       "Aspect ratio (1:1, 3:4, 4:3, 9:16, 16:9)",
			Value:       string(model.DefaultAspectRatio),
			Sources:     cli.EnvVars("LEOPAINT_ASPECT_RATIO"),
			Destination: &aspectRatio,
		},
		&cli.StringFlag{
			Name:        "from-link",
			Usage:       "Seed prompt and aspect ratio from a share link",
			Destination: &fromLink,
		},
		&cli.BoolFlag{
			Name:        "enhance",
			Usage:       "Enhance the prompt before generating",
			Destination: &enhance,
		},
		&cli.BoolFlag{
			Name:        "share",
			Usage:       "Upload the result and print the hosted URL",
			Destination: &share,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Path to write the generated image to",
			Destination: &output,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "generate",
		Usage: "Generate an image from a text prompt",
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

			if fromLink != "" {
				linkPrompt, linkRatio, err := studio.ParseShareLink(fromLink)
				if err != nil {
					return err
				}
				st.SeedConfig(linkPrompt, string(linkRatio))
			}
			if prompt != "" {
				st.SetConfig(model.GenerationConfig{
					Prompt:      prompt,
					AspectRatio: model.ParseAspectRatio(aspectRatio),
				})
			}

			if enhance {
				enhanced, err := st.Enhance(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.Root().Writer, "Prompt: %s\n", enhanced)
			}

			item, err := runWithSpinner(ctx, "Generating", st.Generate)
			if err != nil {
				return hintCredential(c, err)
			}

			fmt.Fprintf(c.Root().Writer, "Generated %s (v%d)\n", item.ID, item.Version)

			if output == "" {
				output = fmt.Sprintf("leopaint-%s.png", item.ID)
			}
			if err := writeImage(output, item.ImageURL); err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "Saved: %s\n", output)

			if share {
				result, err := st.Share(ctx, cfg.baseURL)
				if err != nil {
					return err
				}
				printShareResult(c, result)
			}

			return nil
		},
	}
}

// runWithSpinner drives a generate/edit call with terminal progress feedback
// fed from the painter's advisory status strings.
func runWithSpinner(ctx context.Context, label string, fn func(context.Context, painter.StatusFunc) (*model.HistoryItem, error)) (*model.HistoryItem, error) {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	sp.Suffix = " " + label + "..."
	sp.Start()
	defer sp.Stop()

	return fn(ctx, func(status string) {
		sp.Suffix = " " + status
	})
}

// hintCredential augments credential failures with the recovery command,
// the CLI analog of reopening the key entry flow.
func hintCredential(c *cli.Command, err error) error {
	if errors.Is(err, model.ErrMissingCredential) {
		fmt.Fprintln(c.Root().ErrWriter, "No API key available. Run 'leopaint key set' or set GEMINI_API_KEY.")
	}
	return err
}

func printShareResult(c *cli.Command, result *studio.ShareResult) {
	fmt.Fprintf(c.Root().Writer, "Hosted: %s\n", result.HostedURL)
	if result.ShareLink != "" {
		fmt.Fprintf(c.Root().Writer, "Share: %s\n", result.ShareLink)
	}
}

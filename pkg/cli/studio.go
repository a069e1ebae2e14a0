package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/leopaint/pkg/model"
	"github.com/m-mizutani/leopaint/pkg/service/credential"
	"github.com/m-mizutani/leopaint/pkg/service/painter"
	"github.com/m-mizutani/leopaint/pkg/usecase/studio"
	"github.com/urfave/cli/v3"
)

func studioCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "studio",
		Usage: "Interactive session for generating and editing images",
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

			cred := credential.New(repo, credential.WithFallback(cfg.apiKey))

			rl, err := readline.New("leopaint> ")
			if err != nil {
				return goerr.Wrap(err, "failed to open terminal")
			}
			defer rl.Close()

			session := &studioSession{
				studio:  st,
				cred:    cred,
				rl:      rl,
				out:     c.Root().Writer,
				baseURL: cfg.baseURL,
			}

			// Missing credential at startup opens the key entry flow,
			// same as the first-run experience.
			if key, err := cred.Get(ctx); err == nil && key == "" {
				if err := session.enterKey(ctx); err != nil {
					fmt.Fprintln(session.out, "Continuing without an API key; run 'key' to set one.")
				}
			}

			session.printConfig()
			fmt.Fprintln(session.out, "Type 'help' for commands, 'exit' to quit.")

			return session.loop(ctx)
		},
	}
}

type studioSession struct {
	studio  *studio.Studio
	cred    *credential.Store
	rl      *readline.Instance
	out     io.Writer
	baseURL string
}

func (s *studioSession) loop(ctx context.Context) error {
	for {
		line, err := s.rl.Readline()
		if err != nil { // io.EOF or interrupt
			return nil
		}

		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "help":
			s.printHelp()
		case "gen", "generate":
			if arg != "" {
				cfg := s.studio.Config()
				cfg.Prompt = arg
				s.studio.SetConfig(cfg)
			}
			s.runGenerate(ctx)
		case "edit":
			s.runEdit(ctx, arg)
		case "enhance":
			enhanced, err := s.studio.Enhance(ctx)
			if err != nil {
				s.printError(err)
				continue
			}
			fmt.Fprintf(s.out, "Prompt: %s\n", enhanced)
		case "prompt":
			cfg := s.studio.Config()
			cfg.Prompt = arg
			s.studio.SetConfig(cfg)
			s.printConfig()
		case "ar":
			cfg := s.studio.Config()
			cfg.AspectRatio = model.ParseAspectRatio(arg)
			s.studio.SetConfig(cfg)
			s.printConfig()
		case "select":
			item, err := s.studio.Select(model.HistoryItemID(arg))
			if err != nil {
				s.printError(err)
				continue
			}
			fmt.Fprintf(s.out, "Active: %s (v%d)\n", item.ID, item.Version)
			s.printConfig()
		case "list":
			s.printHistory()
		case "share":
			result, err := s.studio.Share(ctx, s.baseURL)
			if err != nil {
				s.printError(err)
				continue
			}
			fmt.Fprintf(s.out, "Hosted: %s\n", result.HostedURL)
			if result.ShareLink != "" {
				fmt.Fprintf(s.out, "Share: %s\n", result.ShareLink)
			}
		case "save":
			s.runSave(arg)
		case "key":
			if err := s.enterKey(ctx); err != nil {
				s.printError(err)
			}
		default:
			fmt.Fprintf(s.out, "Unknown command %q; type 'help'\n", cmd)
		}
	}
}

func (s *studioSession) runGenerate(ctx context.Context) {
	item, err := runWithSpinner(ctx, "Generating", s.studio.Generate)
	if err != nil {
		s.printError(err)
		s.reenterKeyOnCredentialError(ctx, err)
		return
	}
	fmt.Fprintf(s.out, "Generated %s (v%d)\n", item.ID, item.Version)
}

func (s *studioSession) runEdit(ctx context.Context, instruction string) {
	if instruction == "" {
		entered, err := promptInstruction()
		if err != nil {
			s.printError(err)
			return
		}
		instruction = entered
	}

	item, err := runWithSpinner(ctx, "Editing",
		func(ctx context.Context, onStatus painter.StatusFunc) (*model.HistoryItem, error) {
			return s.studio.Edit(ctx, instruction, onStatus)
		})
	if err != nil {
		s.printError(err)
		s.reenterKeyOnCredentialError(ctx, err)
		return
	}
	fmt.Fprintf(s.out, "Edited %s (v%d, from %s)\n", item.ID, item.Version, item.ParentID)
}

func (s *studioSession) runSave(path string) {
	item := s.studio.Active()
	if item == nil {
		s.printError(model.ErrNoActiveItem)
		return
	}
	if path == "" {
		path = fmt.Sprintf("leopaint-%s.png", item.ID)
	}
	if err := writeImage(path, item.ImageURL); err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintf(s.out, "Saved: %s\n", path)
}

// enterKey drives the credential entry flow: read, sanity-check, store
func (s *studioSession) enterKey(ctx context.Context) error {
	key, err := promptKey()
	if err != nil {
		return err
	}
	if len(key) < credential.MinKeyLength {
		return goerr.New("API key looks too short",
			goerr.V("min_length", credential.MinKeyLength))
	}
	if err := s.cred.Set(ctx, key); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "API key stored")
	return nil
}

// reenterKeyOnCredentialError reopens the key entry flow after a credential
// failure, mirroring the controller's error handling.
func (s *studioSession) reenterKeyOnCredentialError(ctx context.Context, err error) {
	if errors.Is(err, model.ErrMissingCredential) {
		if keyErr := s.enterKey(ctx); keyErr != nil {
			s.printError(keyErr)
		}
	}
}

func (s *studioSession) printConfig() {
	cfg := s.studio.Config()
	fmt.Fprintf(s.out, "Prompt: %s\nAspect ratio: %s\n", cfg.Prompt, cfg.AspectRatio)
}

func (s *studioSession) printHistory() {
	items := s.studio.History()
	if len(items) == 0 {
		fmt.Fprintln(s.out, "No history yet")
		return
	}
	active := s.studio.Active()
	for _, item := range items {
		marker := " "
		if active != nil && item.ID == active.ID {
			marker = "*"
		}
		created := time.UnixMilli(item.Timestamp).Format("15:04:05")
		fmt.Fprintf(s.out, "%s %s\tv%d\t%s\t%s\n", marker, item.ID, item.Version, created, item.Prompt)
	}
}

func (s *studioSession) printError(err error) {
	fmt.Fprintf(s.out, "Error: %s\n", err.Error())
}

func (s *studioSession) printHelp() {
	fmt.Fprint(s.out, `Commands:
  gen [prompt]        generate with the current (or given) prompt
  edit [instruction]  edit the active image
  enhance             rewrite the current prompt
  prompt <text>       set the prompt
  ar <ratio>          set the aspect ratio (1:1, 3:4, 4:3, 9:16, 16:9)
  select <id>         activate a history item
  list                list history
  share               upload the active image and print its link
  save [path]         write the active image to disk
  key                 set the API key
  exit                quit
`)
}

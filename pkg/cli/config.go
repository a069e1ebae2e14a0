package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/leopaint/pkg/adapter"
	"github.com/m-mizutani/leopaint/pkg/model"
	"github.com/m-mizutani/leopaint/pkg/repository"
	"github.com/m-mizutani/leopaint/pkg/service/credential"
	"github.com/m-mizutani/leopaint/pkg/service/history"
	"github.com/m-mizutani/leopaint/pkg/service/painter"
	"github.com/m-mizutani/leopaint/pkg/usecase/studio"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	databasePath string
	apiKey       string
	baseURL      string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Path to the local state database",
			Sources:     cli.EnvVars("LEOPAINT_DATABASE"),
			Destination: &cfg.databasePath,
		},
		&cli.StringFlag{
			Name:        "api-key",
			Usage:       "Gemini API key used when none is stored",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.apiKey,
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "Application base URL for share links",
			Sources:     cli.EnvVars("LEOPAINT_BASE_URL"),
			Destination: &cfg.baseURL,
		},
	}
}

// newRepository opens the local state database
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	path := cfg.databasePath
	if path == "" {
		defaultPath, err := repository.DefaultDBPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	repo, err := repository.NewSQLite(ctx, path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open repository")
	}
	return repo, nil
}

// newStudio wires a full studio session on top of the repository
func (cfg *config) newStudio(ctx context.Context, repo repository.Repository) (*studio.Studio, error) {
	cred := credential.New(repo, credential.WithFallback(cfg.apiKey))

	return studio.New(ctx, studio.NewInput{
		History:    history.New(repo),
		Painter:    painter.New(cred),
		Credential: cred,
		Uploader:   adapter.NewCatbox(),
	})
}

// writeImage decodes a data URI and writes the image bytes to path
func writeImage(path, imageDataURI string) error {
	_, data, err := model.ParseDataURI(imageDataURI)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return goerr.Wrap(err, "failed to write image", goerr.V("path", path))
	}
	return nil
}

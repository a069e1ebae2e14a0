package studio

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/leopaint/pkg/adapter"
	"github.com/m-mizutani/leopaint/pkg/model"
	"github.com/m-mizutani/leopaint/pkg/service/credential"
	"github.com/m-mizutani/leopaint/pkg/service/history"
	"github.com/m-mizutani/leopaint/pkg/service/painter"
	"github.com/m-mizutani/leopaint/pkg/utils/logging"
)

// Studio orchestrates user intents against the painter, the history store,
// and the credential store. It owns the transient state: the active item,
// the editable configuration, and the in-flight guards.
type Studio struct {
	history    *history.Store
	painter    *painter.Service
	credential *credential.Store
	uploader   adapter.Uploader

	// At most one generate/edit request runs at a time. The guard is held
	// for the whole operation, so a superseded response can never be
	// applied to current state.
	generating atomic.Bool
	enhancing  atomic.Bool

	mu     sync.Mutex
	active *model.HistoryItem
	config model.GenerationConfig
}

// NewInput contains the collaborators of a studio session
type NewInput struct {
	History    *history.Store
	Painter    *painter.Service
	Credential *credential.Store
	Uploader   adapter.Uploader
}

// New loads the persisted history and restores the last session: the newest
// item becomes active and republishes its configuration.
func New(ctx context.Context, input NewInput) (*Studio, error) {
	s := &Studio{
		history:    input.History,
		painter:    input.Painter,
		credential: input.Credential,
		uploader:   input.Uploader,
		config: model.GenerationConfig{
			Prompt:      model.DefaultPrompt,
			AspectRatio: model.DefaultAspectRatio,
		},
	}

	if err := s.history.Load(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to load history")
	}

	if items := s.history.Items(); len(items) > 0 {
		s.active = items[0]
		s.config = model.GenerationConfig{
			Prompt:      items[0].Prompt,
			AspectRatio: model.ParseAspectRatio(string(items[0].AspectRatio)),
		}
	}

	return s, nil
}

// SeedConfig applies share-link parameters to the editable configuration.
// An empty prompt leaves the current one in place; an invalid aspect ratio
// falls back to 1:1.
func (s *Studio) SeedConfig(prompt, aspectRatio string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prompt != "" {
		s.config.Prompt = prompt
		s.config.AspectRatio = model.ParseAspectRatio(aspectRatio)
	}
}

// SetConfig replaces the editable configuration
func (s *Studio) SetConfig(cfg model.GenerationConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

// Config returns the current editable configuration
func (s *Studio) Config() model.GenerationConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Active returns the currently active item, or nil
func (s *Studio) Active() *model.HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// History returns the history list, newest first
func (s *Studio) History() []*model.HistoryItem {
	return s.history.Items()
}

// Lineage returns the version chain of an item, newest first
func (s *Studio) Lineage(id model.HistoryItemID) []*model.HistoryItem {
	return s.history.Lineage(id)
}

// requireCredential checks that a credential is available before any
// network call is attempted.
func (s *Studio) requireCredential(ctx context.Context) error {
	key, err := s.credential.Get(ctx)
	if err != nil {
		return err
	}
	if key == "" {
		return goerr.Wrap(model.ErrMissingCredential, "set an API key before generating")
	}
	return nil
}

// Generate runs a text-to-image request with the current configuration. On
// success the result is appended to history and becomes the active item.
func (s *Studio) Generate(ctx context.Context, onStatus painter.StatusFunc) (*model.HistoryItem, error) {
	cfg := s.Config()
	if strings.TrimSpace(cfg.Prompt) == "" {
		return nil, model.ErrEmptyPrompt
	}
	if err := s.requireCredential(ctx); err != nil {
		return nil, err
	}

	if !s.generating.CompareAndSwap(false, true) {
		return nil, model.ErrRequestInFlight
	}
	defer s.generating.Store(false)

	logger := logging.From(ctx).With("request_id", uuid.New().String())
	logger.Info("generating image", "aspect_ratio", cfg.AspectRatio)

	imageURL, err := s.painter.GenerateImage(ctx, cfg, onStatus)
	if err != nil {
		return nil, err
	}

	item, err := s.history.Append(ctx, imageURL, cfg, "")
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.active = item
	s.mu.Unlock()

	logger.Info("image generated", "id", item.ID, "version", item.Version)
	return item, nil
}

// Edit runs an image-to-image request against the active item. The new item
// records the active item as its parent and carries the instruction as its
// prompt.
func (s *Studio) Edit(ctx context.Context, instruction string, onStatus painter.StatusFunc) (*model.HistoryItem, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, model.ErrEmptyPrompt
	}

	source := s.Active()
	if source == nil || source.ImageURL == "" {
		return nil, model.ErrNoActiveItem
	}
	if err := s.requireCredential(ctx); err != nil {
		return nil, err
	}

	if !s.generating.CompareAndSwap(false, true) {
		return nil, model.ErrRequestInFlight
	}
	defer s.generating.Store(false)

	logger := logging.From(ctx).With("request_id", uuid.New().String())
	logger.Info("editing image", "source", source.ID)

	ratio := model.ParseAspectRatio(string(source.AspectRatio))
	imageURL, err := s.painter.EditImage(ctx, source.ImageURL, instruction, ratio, onStatus)
	if err != nil {
		return nil, err
	}

	cfg := model.GenerationConfig{
		Prompt:      instruction,
		AspectRatio: s.Config().AspectRatio,
	}

	item, err := s.history.Append(ctx, imageURL, cfg, source.ID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.active = item
	s.mu.Unlock()

	logger.Info("image edited", "id", item.ID, "version", item.Version, "parent", item.ParentID)
	return item, nil
}

// Enhance rewrites the current prompt through the text model and stores the
// result as the editable prompt. Enhancement is best effort and serialized
// by its own flag.
func (s *Studio) Enhance(ctx context.Context) (string, error) {
	cfg := s.Config()
	if strings.TrimSpace(cfg.Prompt) == "" {
		return cfg.Prompt, nil
	}

	if !s.enhancing.CompareAndSwap(false, true) {
		return "", model.ErrRequestInFlight
	}
	defer s.enhancing.Store(false)

	enhanced := s.painter.EnhancePrompt(ctx, cfg.Prompt)

	s.mu.Lock()
	s.config.Prompt = enhanced
	s.mu.Unlock()

	return enhanced, nil
}

// Select activates an existing history item and republishes its
// configuration. No network call is involved.
func (s *Studio) Select(id model.HistoryItemID) (*model.HistoryItem, error) {
	item := s.history.Find(id)
	if item == nil {
		return nil, goerr.Wrap(model.ErrItemNotFound, "cannot select item", goerr.V("id", id))
	}

	s.mu.Lock()
	s.active = item
	s.config = model.GenerationConfig{
		Prompt:      item.Prompt,
		AspectRatio: model.ParseAspectRatio(string(item.AspectRatio)),
	}
	s.mu.Unlock()

	return item, nil
}

// ShareResult is the outcome of publishing the active item
type ShareResult struct {
	HostedURL string
	ShareLink string
}

// Share publishes the active item through the upload fallback chain and
// builds a share link carrying the item's prompt and aspect ratio. Upload
// failure never disturbs local state.
func (s *Studio) Share(ctx context.Context, baseURL string) (*ShareResult, error) {
	item := s.Active()
	if item == nil || item.ImageURL == "" {
		return nil, model.ErrNoActiveItem
	}

	hostedURL := item.RemoteURL
	if hostedURL == "" {
		uploaded, err := s.uploader.Upload(ctx, item.ImageURL)
		if err != nil {
			return nil, err
		}
		hostedURL = uploaded

		if err := s.history.SetRemoteURL(ctx, item.ID, hostedURL); err != nil {
			logging.From(ctx).Warn("failed to record hosted URL", "error", err)
		}
	}

	return &ShareResult{
		HostedURL: hostedURL,
		ShareLink: BuildShareLink(baseURL, item.Prompt, item.AspectRatio),
	}, nil
}

// BuildShareLink appends prompt and ar query parameters to the application
// base URL. An empty base yields an empty link.
func BuildShareLink(baseURL, prompt string, ratio model.AspectRatio) string {
	if baseURL == "" {
		return ""
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	q := u.Query()
	q.Set("prompt", prompt)
	q.Set("ar", string(ratio))
	u.RawQuery = q.Encode()
	return u.String()
}

// ParseShareLink extracts the prompt and ar query parameters from a share
// link. The aspect ratio defaults to 1:1 when absent or invalid.
func ParseShareLink(link string) (string, model.AspectRatio, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", model.DefaultAspectRatio, goerr.Wrap(err, "invalid share link")
	}

	q := u.Query()
	return q.Get("prompt"), model.ParseAspectRatio(q.Get("ar")), nil
}

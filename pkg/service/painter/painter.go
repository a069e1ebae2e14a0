package painter

import (
	"context"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/leopaint/pkg/adapter"
	"github.com/m-mizutani/leopaint/pkg/model"
	"github.com/m-mizutani/leopaint/pkg/service/credential"
	"github.com/m-mizutani/leopaint/pkg/utils/logging"
	"google.golang.org/genai"
)

// StatusFunc receives coarse-grained progress strings. They are advisory
// UI feedback, not part of the contract.
type StatusFunc func(status string)

const enhanceSystemPrompt = "You are an expert art director. Rewrite the following image prompt to be more descriptive, artistic, and detailed, suitable for a high-quality AI image generator. Keep it under 50 words. Return ONLY the prompt text."

// ClientFactory builds a provider client bound to an API key
type ClientFactory func(ctx context.Context, apiKey string) (adapter.Gemini, error)

// Service translates domain requests into provider calls and provider
// responses back into domain results. The provider client is built lazily,
// keyed on the current credential, and rebuilt whenever the credential
// changes.
type Service struct {
	credential *credential.Store
	newClient  ClientFactory

	mu        sync.Mutex
	client    adapter.Gemini
	clientKey string
}

type Option func(*Service)

// WithClientFactory replaces the provider client constructor
func WithClientFactory(factory ClientFactory) Option {
	return func(s *Service) {
		s.newClient = factory
	}
}

func New(cred *credential.Store, opts ...Option) *Service {
	s := &Service{
		credential: cred,
		newClient: func(ctx context.Context, apiKey string) (adapter.Gemini, error) {
			return adapter.NewGemini(ctx, apiKey)
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// provider returns the cached client when the credential is unchanged,
// otherwise builds a fresh one. Checked before any network call.
func (s *Service) provider(ctx context.Context) (adapter.Gemini, error) {
	key, err := s.credential.Get(ctx)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, goerr.Wrap(model.ErrMissingCredential, "no API key is stored and no fallback is configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil && s.clientKey == key {
		return s.client, nil
	}

	client, err := s.newClient(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build provider client")
	}

	s.client = client
	s.clientKey = key
	return client, nil
}

// GenerateImage sends the prompt and aspect ratio to the image model and
// returns the result as an inline data URI.
func (s *Service) GenerateImage(ctx context.Context, cfg model.GenerationConfig, onStatus StatusFunc) (string, error) {
	if err := cfg.AspectRatio.Validate(); err != nil {
		return "", err
	}

	report(onStatus, "Initializing neural pathways...")

	client, err := s.provider(ctx)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromText(cfg.Prompt, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			AspectRatio: string(cfg.AspectRatio),
		},
	}

	resp, err := client.GenerateImage(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to synthesize image")
	}

	report(onStatus, "Decoding visual data...")

	return decodeImage(resp)
}

// EditImage sends a source image plus a free-text instruction to the image
// model and returns the edited result as an inline data URI.
func (s *Service) EditImage(ctx context.Context, imageDataURI, instruction string, ratio model.AspectRatio, onStatus StatusFunc) (string, error) {
	if err := ratio.Validate(); err != nil {
		return "", err
	}

	report(onStatus, "Analyzing source matrix...")

	client, err := s.provider(ctx)
	if err != nil {
		return "", err
	}

	mimeType, data, err := model.ParseDataURI(imageDataURI)
	if err != nil {
		return "", goerr.Wrap(err, "failed to decode source image")
	}

	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
		genai.NewPartFromText(instruction),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			AspectRatio: string(ratio),
		},
	}

	resp, err := client.GenerateImage(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to edit image")
	}

	report(onStatus, "Refining details...")

	return decodeImage(resp)
}

// EnhancePrompt rewrites the prompt through the text model. Enhancement is
// best effort: any failure returns the original prompt unchanged.
func (s *Service) EnhancePrompt(ctx context.Context, prompt string) string {
	client, err := s.provider(ctx)
	if err != nil {
		logging.From(ctx).Warn("prompt enhancement skipped", "error", err)
		return prompt
	}

	contents := []*genai.Content{
		genai.NewContentFromText(`Original: "`+prompt+`"`, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(enhanceSystemPrompt, ""),
	}

	resp, err := client.GenerateText(ctx, contents, config)
	if err != nil {
		logging.From(ctx).Warn("prompt enhancement failed", "error", err)
		return prompt
	}

	enhanced := strings.TrimSpace(resp.Text())
	if enhanced == "" {
		return prompt
	}
	return enhanced
}

// decodeImage scans the first candidate's content parts in order and builds
// a data URI from the first part carrying inline binary data. A response
// without one is a failure, not an empty success.
func decodeImage(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", model.ErrNoImageData
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return model.FormatDataURI(part.InlineData.MIMEType, part.InlineData.Data), nil
		}
	}

	return "", model.ErrNoImageData
}

func report(onStatus StatusFunc, status string) {
	if onStatus != nil {
		onStatus(status)
	}
}

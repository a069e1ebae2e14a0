package painter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/leopaint/pkg/adapter"
	"github.com/m-mizutani/leopaint/pkg/model"
	"github.com/m-mizutani/leopaint/pkg/repository"
	"github.com/m-mizutani/leopaint/pkg/service/credential"
	"github.com/m-mizutani/leopaint/pkg/service/painter"
	"google.golang.org/genai"
)

// Mock Gemini
type mockGemini struct {
	imageFunc func(contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	textFunc  func(contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

	imageCalls int
	textCalls  int
}

func (m *mockGemini) GenerateImage(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.imageCalls++
	return m.imageFunc(contents, config)
}

func (m *mockGemini) GenerateText(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.textCalls++
	return m.textFunc(contents, config)
}

func response(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: parts}},
		},
	}
}

type testEnv struct {
	painter      *painter.Service
	gemini       *mockGemini
	cred         *credential.Store
	factoryCalls int
	factoryKeys  []string
}

func newTestEnv(t *testing.T, apiKey string) *testEnv {
	t.Helper()

	env := &testEnv{gemini: &mockGemini{}}

	opts := []credential.Option{}
	if apiKey != "" {
		opts = append(opts, credential.WithFallback(apiKey))
	}
	env.cred = credential.New(repository.NewMemory(), opts...)

	env.painter = painter.New(env.cred,
		painter.WithClientFactory(func(ctx context.Context, key string) (adapter.Gemini, error) {
			env.factoryCalls++
			env.factoryKeys = append(env.factoryKeys, key)
			return env.gemini, nil
		}))

	return env
}

func TestGenerateImageDecodesFirstInlinePart(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "test-api-key-0123456789")

	env.gemini.imageFunc = func(contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		gt.Equal(t, config.ImageConfig.AspectRatio, "16:9")
		return response(
			genai.NewPartFromText("here is your image"),
			&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("foo")}},
		), nil
	}

	var statuses []string
	uri, err := env.painter.GenerateImage(ctx, model.GenerationConfig{
		Prompt:      "a cat",
		AspectRatio: model.AspectLandscapeWide,
	}, func(s string) { statuses = append(statuses, s) })

	gt.NoError(t, err)
	gt.Equal(t, uri, "data:image/png;base64,Zm9v")
	gt.A(t, statuses).Length(2)
}

func TestGenerateImageNoImageData(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "test-api-key-0123456789")

	env.gemini.imageFunc = func(contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return response(genai.NewPartFromText("no image for you")), nil
	}

	_, err := env.painter.GenerateImage(ctx, model.GenerationConfig{
		Prompt:      "a cat",
		AspectRatio: model.AspectSquare,
	}, nil)

	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrNoImageData))
}

func TestGenerateImageProviderError(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "test-api-key-0123456789")

	env.gemini.imageFunc = func(contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return nil, goerr.New("quota exceeded")
	}

	_, err := env.painter.GenerateImage(ctx, model.GenerationConfig{
		Prompt:      "a cat",
		AspectRatio: model.AspectSquare,
	}, nil)

	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("quota exceeded")
}

func TestGenerateImageMissingCredential(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "")

	_, err := env.painter.GenerateImage(ctx, model.GenerationConfig{
		Prompt:      "a cat",
		AspectRatio: model.AspectSquare,
	}, nil)

	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrMissingCredential))

	// Checked before any network call
	gt.Equal(t, env.factoryCalls, 0)
	gt.Equal(t, env.gemini.imageCalls, 0)
}

func TestEditImageSendsInlineSource(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "test-api-key-0123456789")

	env.gemini.imageFunc = func(contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		gt.A(t, contents).Length(1)
		parts := contents[0].Parts
		gt.A(t, parts).Length(2)
		gt.V(t, parts[0].InlineData).NotNil()
		gt.Equal(t, parts[0].InlineData.MIMEType, "image/webp")
		gt.Equal(t, parts[0].InlineData.Data, []byte("foo"))
		gt.Equal(t, parts[1].Text, "add a hat")

		return response(&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("bar")}}), nil
	}

	uri, err := env.painter.EditImage(ctx, "data:image/webp;base64,Zm9v", "add a hat", model.AspectSquare, nil)
	gt.NoError(t, err)
	gt.Equal(t, uri, "data:image/png;base64,YmFy")
}

func TestEditImageNoImageData(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "test-api-key-0123456789")

	env.gemini.imageFunc = func(contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return response(genai.NewPartFromText("nope")), nil
	}

	_, err := env.painter.EditImage(ctx, "data:image/png;base64,Zm9v", "add a hat", model.AspectSquare, nil)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrNoImageData))
}

func TestEnhancePrompt(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "test-api-key-0123456789")

	env.gemini.textFunc = func(contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		gt.V(t, config.SystemInstruction).NotNil()
		return response(genai.NewPartFromText("a majestic cat, oil painting, dramatic light")), nil
	}

	enhanced := env.painter.EnhancePrompt(ctx, "a cat")
	gt.Equal(t, enhanced, "a majestic cat, oil painting, dramatic light")
}

func TestEnhancePromptFallsBackOnError(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "test-api-key-0123456789")

	env.gemini.textFunc = func(contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return nil, goerr.New("model unavailable")
	}

	gt.Equal(t, env.painter.EnhancePrompt(ctx, "a cat"), "a cat")
}

func TestEnhancePromptFallsBackWithoutCredential(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "")

	gt.Equal(t, env.painter.EnhancePrompt(ctx, "a cat"), "a cat")
	gt.Equal(t, env.factoryCalls, 0)
}

func TestClientRebuiltOnCredentialChange(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "")
	gt.NoError(t, env.cred.Set(ctx, "first-api-key-0123456789"))

	env.gemini.imageFunc = func(contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return response(&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("foo")}}), nil
	}

	cfg := model.GenerationConfig{Prompt: "a cat", AspectRatio: model.AspectSquare}

	_, err := env.painter.GenerateImage(ctx, cfg, nil)
	gt.NoError(t, err)
	_, err = env.painter.GenerateImage(ctx, cfg, nil)
	gt.NoError(t, err)

	// Same credential: the cached client is reused
	gt.Equal(t, env.factoryCalls, 1)

	gt.NoError(t, env.cred.Set(ctx, "second-api-key-0123456789"))
	_, err = env.painter.GenerateImage(ctx, cfg, nil)
	gt.NoError(t, err)

	gt.Equal(t, env.factoryCalls, 2)
	gt.Equal(t, env.factoryKeys, []string{"first-api-key-0123456789", "second-api-key-0123456789"})
}

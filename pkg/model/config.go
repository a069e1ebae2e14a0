package model

// AspectRatio is the shape of the requested image.
type AspectRatio string

const (
	AspectSquare         AspectRatio = "1:1"
	AspectPortrait       AspectRatio = "3:4"
	AspectLandscape      AspectRatio = "4:3"
	AspectPortraitTall   AspectRatio = "9:16"
	AspectLandscapeWide  AspectRatio = "16:9"
	DefaultAspectRatio               = AspectSquare
)

// Validate checks if the aspect ratio is one of the supported values
func (r AspectRatio) Validate() error {
	switch r {
	case AspectSquare, AspectPortrait, AspectLandscape, AspectPortraitTall, AspectLandscapeWide:
		return nil
	default:
		return ErrInvalidAspectRatio
	}
}

// ParseAspectRatio returns the aspect ratio for s, falling back to 1:1
// when s is empty or not a supported value.
func ParseAspectRatio(s string) AspectRatio {
	r := AspectRatio(s)
	if err := r.Validate(); err != nil {
		return DefaultAspectRatio
	}
	return r
}

// GenerationConfig is an immutable description of a generation request.
type GenerationConfig struct {
	Prompt      string      `json:"prompt"`
	AspectRatio AspectRatio `json:"aspectRatio"`
}

// DefaultPrompt seeds the editable configuration when no history exists.
const DefaultPrompt = "Astronaut in a jungle, cold color palette, muted colors, detailed, anime style"

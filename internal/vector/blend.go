package vector

import "strings"

// Blend mode presets map a mode name to the weight of the primary (base)
// vector; the prompt-derived vector receives the remainder. Unknown modes
// fall back to balanced.
const (
	ModePrimaryStrong = "primary_strong"
	ModePrimaryFocus  = "primary_focus"
	ModeImageFocus    = "image_focus"
	ModeBalanced      = "balanced"
	ModePromptFocus   = "prompt_focus"
	ModePromptStrong  = "prompt_strong"
)

var blendPresets = map[string]float64{
	ModePrimaryStrong: 0.9,
	ModePrimaryFocus:  0.7,
	ModeImageFocus:    0.7,
	ModeBalanced:      0.5,
	ModePromptFocus:   0.3,
	ModePromptStrong:  0.1,
}

// ResolveBlendWeight returns the primary weight for a blend mode name.
func ResolveBlendWeight(mode string) float64 {
	if w, ok := blendPresets[strings.ToLower(strings.TrimSpace(mode))]; ok {
		return w
	}
	return blendPresets[ModeBalanced]
}

// Blend combines a base query vector with a prompt-derived vector:
// normalize(primaryWeight*base + (1-primaryWeight)*prompt).
func Blend(base, prompt Vector, primaryWeight float64) (Vector, error) {
	if len(base) != len(prompt) {
		return nil, &DimensionMismatchError{Want: len(base), Got: len(prompt)}
	}
	out := make(Vector, len(base))
	for i := range base {
		out[i] = float32(primaryWeight*float64(base[i]) + (1-primaryWeight)*float64(prompt[i]))
	}
	return Normalize(out), nil
}

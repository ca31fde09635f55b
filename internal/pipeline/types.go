package pipeline

// Request is one multimodal search. At least one of ImageBytes and Text
// must be set. Prompts are optional clarifications that steer the query
// vectors and, when they carry hard constraints, override score order.
type Request struct {
	ImageBytes []byte
	Text       string
	K          int
	Debug      bool

	ImagePrompt     string
	ImagePromptMode string
	TextPrompt      string
	TextPromptMode  string

	// PrecomputedVariants bypasses the variant expander when non-empty.
	PrecomputedVariants []string
}

// QueryInfo echoes the effective query back to the caller.
type QueryInfo struct {
	K               int      `json:"k"`
	Text            string   `json:"text"`
	Variants        []string `json:"variants"`
	ImagePrompt     string   `json:"image_prompt,omitempty"`
	ImagePromptMode string   `json:"image_prompt_mode,omitempty"`
	TextPrompt      string   `json:"text_prompt,omitempty"`
	TextPromptMode  string   `json:"text_prompt_mode,omitempty"`
}

// Result is one ranked trademark with display-ready fields.
type Result struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Status          string   `json:"status"`
	ClassCodes      []string `json:"class_codes"`
	ImageSimilarity float64  `json:"image_similarity"`
	TextSimilarity  float64  `json:"text_similarity"`
	ThumbURL        string   `json:"thumb_url,omitempty"`
}

// Response carries both modality rankings plus the misc windows.
type Response struct {
	Query     QueryInfo `json:"query"`
	ImageTop  []Result  `json:"image_top"`
	ImageMisc []Result  `json:"image_misc"`
	TextTop   []Result  `json:"text_top"`
	TextMisc  []Result  `json:"text_misc"`
	Debug     *Debug    `json:"debug,omitempty"`
}

// Row is one entry of a per-stage debug table.
type Row struct {
	Rank  int     `json:"rank"`
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// BlendRow exposes the image sub-component scores alongside the blend.
type BlendRow struct {
	Rank     int     `json:"rank"`
	ID       string  `json:"id"`
	Dino     float64 `json:"dino"`
	Metaclip float64 `json:"metaclip"`
	Blended  float64 `json:"blended"`
}

// Debug mirrors every intermediate ranking stage. It is an observability
// side-channel and never affects ranking or filtering.
type Debug struct {
	ImageDino     []Row      `json:"image_dino"`
	ImageMetaclip []Row      `json:"image_metaclip"`
	TextMetaclip  []Row      `json:"text_metaclip"`
	TextBM25      []Row      `json:"text_bm25"`
	ImageBlended  []BlendRow `json:"image_blended"`
	TextRanked    []Row      `json:"text_ranked"`
	Log           []string   `json:"log"`
}

package command

import (
	"regexp"
	"strconv"
	"strings"
)

// Params carries the extracted parameters of every command. Each extractor
// fills only the fields its command defines; the rest stay zero.
type Params struct {
	// AgentID is the resolved agent id, or "" when the referenced token did
	// not resolve against the conversation's known agents. AgentToken keeps
	// the token the user actually typed, for error replies.
	AgentID    string
	AgentToken string

	// Text is the chat payload for an agent query.
	Text string

	// Prompt is the system prompt payload for create and modify.
	Prompt string

	// Settings holds the key=value pairs of a set command, in input order.
	Settings []Setting

	// ConfigKey and ConfigValue carry a runtime config update, case preserved.
	ConfigKey   string
	ConfigValue string

	// ProfileID names a generation profile.
	ProfileID string

	// ImagePrompt and Gen describe an image generation request. Zero fields
	// in Gen mean "use the profile value".
	ImagePrompt string
	Gen         GenerationParams

	// ProfileCreate and ProfileUpdate carry profile command payloads.
	ProfileCreate *ProfileSettings
	ProfileUpdate *ProfileUpdate

	// ModelName is a diffusion model reference (set and query commands).
	ModelName string

	// Interrogator selects the image analysis backend (clip or deepbooru).
	Interrogator string
}

// Setting is one attribute=value pair from a set command. Value is only
// meaningful when IsNumber is true.
type Setting struct {
	Attribute string
	Raw       string
	Value     float64
	IsNumber  bool
}

// GenerationParams are inline overrides for an image generation request.
type GenerationParams struct {
	Steps             int
	Width             int
	Height            int
	CfgScale          int
	NegativePrompt    string
	DenoisingStrength float64
}

// ProfileSettings is a full generation profile payload, defaults applied.
type ProfileSettings struct {
	Steps          int
	Width          int
	Height         int
	CfgScale       int
	NegativePrompt string
	StylePrompt    string
}

// ProfileUpdate is a partial profile payload. Nil fields are untouched.
type ProfileUpdate struct {
	Steps          *int
	Width          *int
	Height         *int
	CfgScale       *int
	NegativePrompt *string
	StylePrompt    *string
}

// resolveAgentID returns the first known agent id contained in token,
// comparing case-folded. Containment rather than equality tolerates
// punctuation glued to the id ("helper," still resolves), at the cost of
// ambiguity when one id is a substring of another. Known ids are checked
// in their stored order and the first hit wins.
func resolveAgentID(token string, knownAgentIDs []string) string {
	folded := strings.ToLower(token)
	for _, id := range knownAgentIDs {
		if strings.Contains(folded, strings.ToLower(id)) {
			return id
		}
	}
	return ""
}

// foldedParts lowercases the whole text and splits on single spaces. Agent
// commands fold the entire input, prompts included.
func foldedParts(text string) []string {
	return strings.Split(strings.ToLower(text), " ")
}

// ChatExtractor builds the extractor for agent queries. The second token may
// name an agent; when it resolves against a known id the payload starts at
// the third token, otherwise the query goes to defaultAgentID and the payload
// starts at the second.
func ChatExtractor(defaultAgentID string) Extractor {
	return func(text string, knownAgentIDs []string) Params {
		parts := foldedParts(text)
		if len(parts) < 2 {
			return Params{}
		}
		if id := resolveAgentID(parts[1], knownAgentIDs); id != "" {
			return Params{AgentID: id, AgentToken: parts[1], Text: strings.Join(parts[2:], " ")}
		}
		return Params{AgentID: defaultAgentID, AgentToken: parts[1], Text: strings.Join(parts[1:], " ")}
	}
}

// extractAgentRef resolves the agent reference at token index idx.
func extractAgentRef(text string, knownAgentIDs []string, idx int) Params {
	parts := foldedParts(text)
	if len(parts) <= idx {
		return Params{}
	}
	return Params{
		AgentID:    resolveAgentID(parts[idx], knownAgentIDs),
		AgentToken: parts[idx],
	}
}

// ExtractHistoryTarget handles forget and reload, where the agent id is the
// second token ("/agent <agentId> forget history").
func ExtractHistoryTarget(text string, knownAgentIDs []string) Params {
	return extractAgentRef(text, knownAgentIDs, 1)
}

// ExtractCreate takes the new agent id verbatim from the third token; the
// id need not (and normally does not) exist yet, so no resolution happens.
// The prompt is everything after it, case-folded like the rest of the text.
func ExtractCreate(text string, _ []string) Params {
	parts := foldedParts(text)
	if len(parts) < 4 {
		return Params{}
	}
	return Params{
		AgentID:    parts[2],
		AgentToken: parts[2],
		Prompt:     strings.Join(parts[3:], " "),
	}
}

// ExtractModify resolves the agent at the third token and takes the
// replacement prompt from the rest.
func ExtractModify(text string, knownAgentIDs []string) Params {
	p := extractAgentRef(text, knownAgentIDs, 2)
	parts := foldedParts(text)
	if len(parts) > 3 {
		p.Prompt = strings.Join(parts[3:], " ")
	}
	return p
}

// ExtractGet resolves the agent at the third token.
func ExtractGet(text string, knownAgentIDs []string) Params {
	return extractAgentRef(text, knownAgentIDs, 2)
}

// ExtractSet resolves the agent at the third token and parses every
// remaining token as attribute=value. Tokens without "=" become a setting
// with an empty, non-numeric value and are rejected per item downstream.
func ExtractSet(text string, knownAgentIDs []string) Params {
	p := extractAgentRef(text, knownAgentIDs, 2)
	parts := foldedParts(text)
	for i := 3; i < len(parts); i++ {
		attribute, raw, _ := strings.Cut(parts[i], "=")
		value, err := strconv.ParseFloat(raw, 64)
		p.Settings = append(p.Settings, Setting{
			Attribute: attribute,
			Raw:       raw,
			Value:     value,
			IsNumber:  err == nil,
		})
	}
	return p
}

// ExtractConfigSet preserves case: config keys and values are verbatim.
func ExtractConfigSet(text string, _ []string) Params {
	parts := strings.Split(text, " ")
	if len(parts) < 4 {
		return Params{}
	}
	return Params{
		ConfigKey:   parts[2],
		ConfigValue: strings.Join(parts[3:], " "),
	}
}

var (
	inlineParamRe   = regexp.MustCompile(`(steps|cfg|width|height)=(\d+)`)
	negativeEndRe   = regexp.MustCompile(`^(steps|cfg|width|height)=`)
	profileStepsRe  = regexp.MustCompile(`steps=(\d+)`)
	profileWidthRe  = regexp.MustCompile(`width=(\d+)`)
	profileHeightRe = regexp.MustCompile(`height=(\d+)`)
	profileCfgRe    = regexp.MustCompile(`cfg=(\d+)`)
	profileNegRe    = regexp.MustCompile(`negPrompt=(.+)`)
	profileStyleRe  = regexp.MustCompile(`stylePrompt=(.+)`)
)

// parseGeneration splits tokens into prompt text, a negative prompt and
// inline numeric overrides. "-neg" (or "--negative") switches into negative
// collection, which runs until a steps=, cfg=, width= or height= token.
func parseGeneration(parts []string) (prompt string, gen GenerationParams) {
	var promptParts, negativeParts []string
	parsingNegative := false

	for _, part := range parts {
		if part == "-neg" || part == "--negative" {
			parsingNegative = true
			continue
		}
		if parsingNegative {
			if negativeEndRe.MatchString(part) {
				parsingNegative = false
				applyInlineParam(&gen, part)
				continue
			}
			negativeParts = append(negativeParts, part)
			continue
		}
		if inlineParamRe.MatchString(part) {
			applyInlineParam(&gen, part)
			continue
		}
		promptParts = append(promptParts, part)
	}

	gen.NegativePrompt = strings.Join(negativeParts, " ")
	return strings.Join(promptParts, " "), gen
}

func applyInlineParam(gen *GenerationParams, part string) {
	m := inlineParamRe.FindStringSubmatch(part)
	if m == nil {
		return
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return
	}
	switch m[1] {
	case "steps":
		gen.Steps = n
	case "cfg":
		gen.CfgScale = n
	case "width":
		gen.Width = n
	case "height":
		gen.Height = n
	}
}

// ExtractImagine parses a text-to-image request. Only the literal token
// "default" in second position is treated as a profile reference and
// stripped from the prompt; any other profile id doubles as prompt text and
// falls back to the default profile at generation time.
func ExtractImagine(text string, _ []string) Params {
	parts := strings.Split(text, " ")
	if len(parts) < 2 {
		return Params{}
	}
	profileID := parts[1]
	promptFrom := 1
	if parts[1] == "default" {
		promptFrom = 2
	}
	prompt, gen := parseGeneration(parts[promptFrom:])
	return Params{ProfileID: profileID, ImagePrompt: prompt, Gen: gen}
}

// ExtractImg2Img parses an image-to-image request. The second token is the
// denoising strength; unparseable values fall back to 0.75.
func ExtractImg2Img(text string, _ []string) Params {
	parts := strings.Split(text, " ")
	if len(parts) < 2 {
		return Params{}
	}
	strength, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		strength = 0.75
	}
	prompt, gen := parseGeneration(parts[2:])
	gen.DenoisingStrength = strength
	return Params{ProfileID: "default", ImagePrompt: prompt, Gen: gen}
}

// profileFields scans the joined settings text for profile assignments.
// negPrompt= and stylePrompt= capture to the end of the text, so whichever
// appears first swallows the rest, later assignments included.
func profileFields(params string) (steps, width, height, cfg *int, neg, style *string) {
	matchInt := func(re *regexp.Regexp) *int {
		m := re.FindStringSubmatch(params)
		if m == nil {
			return nil
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil
		}
		return &n
	}
	matchString := func(re *regexp.Regexp) *string {
		m := re.FindStringSubmatch(params)
		if m == nil {
			return nil
		}
		return &m[1]
	}
	return matchInt(profileStepsRe), matchInt(profileWidthRe), matchInt(profileHeightRe),
		matchInt(profileCfgRe), matchString(profileNegRe), matchString(profileStyleRe)
}

// ExtractProfileCreate builds a full profile payload, applying defaults for
// any setting the user omitted.
func ExtractProfileCreate(text string, _ []string) Params {
	parts := strings.Split(text, " ")
	if len(parts) < 3 {
		return Params{}
	}
	settings := ProfileSettings{Steps: 20, Width: 512, Height: 512, CfgScale: 7}
	steps, width, height, cfg, neg, style := profileFields(strings.Join(parts[3:], " "))
	if steps != nil {
		settings.Steps = *steps
	}
	if width != nil {
		settings.Width = *width
	}
	if height != nil {
		settings.Height = *height
	}
	if cfg != nil {
		settings.CfgScale = *cfg
	}
	if neg != nil {
		settings.NegativePrompt = *neg
	}
	if style != nil {
		settings.StylePrompt = *style
	}
	return Params{ProfileID: parts[2], ProfileCreate: &settings}
}

// ExtractProfileUpdate builds a partial profile payload; omitted settings
// stay nil and leave the stored profile untouched.
func ExtractProfileUpdate(text string, _ []string) Params {
	parts := strings.Split(text, " ")
	if len(parts) < 3 {
		return Params{}
	}
	steps, width, height, cfg, neg, style := profileFields(strings.Join(parts[3:], " "))
	return Params{
		ProfileID: parts[2],
		ProfileUpdate: &ProfileUpdate{
			Steps:          steps,
			Width:          width,
			Height:         height,
			CfgScale:       cfg,
			NegativePrompt: neg,
			StylePrompt:    style,
		},
	}
}

// ExtractProfileShow names the profile to display.
func ExtractProfileShow(text string, _ []string) Params {
	parts := strings.Split(text, " ")
	if len(parts) < 3 {
		return Params{}
	}
	return Params{ProfileID: parts[2]}
}

// ExtractModelName joins everything after the subcommand; model names may
// contain spaces.
func ExtractModelName(text string, _ []string) Params {
	parts := strings.Split(text, " ")
	if len(parts) < 3 {
		return Params{}
	}
	return Params{ModelName: strings.Join(parts[2:], " ")}
}

// ExtractInterrogate folds the interrogator name (clip or deepbooru).
func ExtractInterrogate(text string, _ []string) Params {
	parts := strings.Split(text, " ")
	if len(parts) < 2 {
		return Params{}
	}
	return Params{Interrogator: strings.ToLower(parts[1])}
}

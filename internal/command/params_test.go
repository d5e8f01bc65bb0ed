package command

import (
	"reflect"
	"testing"
)

func TestChatExtractor(t *testing.T) {
	extract := ChatExtractor("default")

	tests := []struct {
		name     string
		text     string
		known    []string
		wantID   string
		wantText string
	}{
		{"no agents falls back to default", "assistant what time is it", nil, "default", "what time is it"},
		{"known agent consumes the token", "assistant helper what time is it", []string{"helper"}, "helper", "what time is it"},
		{"unknown token stays in the payload", "assistant what time is it", []string{"helper"}, "default", "what time is it"},
		{"resolution is case-insensitive", "assistant HELPER hello", []string{"Helper"}, "Helper", "hello"},
		{"token containing the id resolves", "assistant helper, hello", []string{"helper"}, "helper", "hello"},
		{"payload is case-folded", "assistant Tell Me MORE", nil, "default", "tell me more"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := extract(tt.text, tt.known)
			if p.AgentID != tt.wantID {
				t.Errorf("AgentID = %q, want %q", p.AgentID, tt.wantID)
			}
			if p.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", p.Text, tt.wantText)
			}
		})
	}
}

func TestExtractHistoryTarget(t *testing.T) {
	p := ExtractHistoryTarget("/agent helper forget history", []string{"helper"})
	if p.AgentID != "helper" {
		t.Errorf("AgentID = %q, want helper", p.AgentID)
	}

	p = ExtractHistoryTarget("/agent ghost forget history", []string{"helper"})
	if p.AgentID != "" || p.AgentToken != "ghost" {
		t.Errorf("unresolved reference = %+v, want empty id with token ghost", p)
	}
}

func TestExtractCreateFoldsIDAndPrompt(t *testing.T) {
	p := ExtractCreate("/agent create Helper You are concise.", nil)
	if p.AgentID != "helper" {
		t.Errorf("AgentID = %q, want helper", p.AgentID)
	}
	if p.Prompt != "you are concise." {
		t.Errorf("Prompt = %q, want case-folded prompt", p.Prompt)
	}
}

func TestExtractModify(t *testing.T) {
	p := ExtractModify("/agent modify helper You are verbose now.", []string{"helper"})
	if p.AgentID != "helper" || p.Prompt != "you are verbose now." {
		t.Errorf("got %+v", p)
	}
}

func TestExtractSet(t *testing.T) {
	p := ExtractSet("/agent set helper temperature=0.5 topP=0.9", []string{"helper"})
	if p.AgentID != "helper" {
		t.Fatalf("AgentID = %q", p.AgentID)
	}
	want := []Setting{
		{Attribute: "temperature", Raw: "0.5", Value: 0.5, IsNumber: true},
		{Attribute: "topp", Raw: "0.9", Value: 0.9, IsNumber: true},
	}
	if !reflect.DeepEqual(p.Settings, want) {
		t.Errorf("Settings = %+v, want %+v", p.Settings, want)
	}
}

func TestExtractSetRejectsNonNumericValue(t *testing.T) {
	p := ExtractSet("/agent set helper temperature=abc", []string{"helper"})
	if len(p.Settings) != 1 {
		t.Fatalf("Settings = %+v", p.Settings)
	}
	s := p.Settings[0]
	if s.Attribute != "temperature" || s.IsNumber {
		t.Errorf("non-numeric value parsed as number: %+v", s)
	}
}

func TestExtractSetTokenWithoutEquals(t *testing.T) {
	p := ExtractSet("/agent set helper temperature", []string{"helper"})
	if len(p.Settings) != 1 || p.Settings[0].IsNumber {
		t.Errorf("bare token should yield a non-numeric setting: %+v", p.Settings)
	}
}

func TestExtractConfigSetPreservesCase(t *testing.T) {
	p := ExtractConfigSet("/config set OPENAI_API_HOST https://API.Example.com/v1", nil)
	if p.ConfigKey != "OPENAI_API_HOST" {
		t.Errorf("ConfigKey = %q", p.ConfigKey)
	}
	if p.ConfigValue != "https://API.Example.com/v1" {
		t.Errorf("ConfigValue = %q", p.ConfigValue)
	}
}

func TestExtractImagine(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantProf   string
		wantPrompt string
		wantGen    GenerationParams
	}{
		{
			"plain prompt",
			"/sd a red fox in the snow",
			"a", "a red fox in the snow", GenerationParams{},
		},
		{
			"default profile token is stripped",
			"/sd default a red fox",
			"default", "a red fox", GenerationParams{},
		},
		{
			"inline overrides leave the prompt",
			"/sd a fox steps=30 cfg=9 width=768 height=512",
			"a", "a fox", GenerationParams{Steps: 30, CfgScale: 9, Width: 768, Height: 512},
		},
		{
			"negative prompt runs until an override token",
			"/sd a fox -neg blurry low quality steps=30 more trees",
			"a", "a fox more trees",
			GenerationParams{Steps: 30, NegativePrompt: "blurry low quality"},
		},
		{
			"negative prompt extends to the end without a terminator",
			"/sd a fox --negative blurry low quality",
			"a", "a fox", GenerationParams{NegativePrompt: "blurry low quality"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ExtractImagine(tt.text, nil)
			if p.ProfileID != tt.wantProf {
				t.Errorf("ProfileID = %q, want %q", p.ProfileID, tt.wantProf)
			}
			if p.ImagePrompt != tt.wantPrompt {
				t.Errorf("ImagePrompt = %q, want %q", p.ImagePrompt, tt.wantPrompt)
			}
			if p.Gen != tt.wantGen {
				t.Errorf("Gen = %+v, want %+v", p.Gen, tt.wantGen)
			}
		})
	}
}

func TestExtractImg2Img(t *testing.T) {
	p := ExtractImg2Img("/img2img 0.6 a watercolor portrait steps=25", nil)
	if p.Gen.DenoisingStrength != 0.6 {
		t.Errorf("DenoisingStrength = %v", p.Gen.DenoisingStrength)
	}
	if p.ImagePrompt != "a watercolor portrait" || p.Gen.Steps != 25 {
		t.Errorf("got %+v", p)
	}
	if p.ProfileID != "default" {
		t.Errorf("ProfileID = %q, want default", p.ProfileID)
	}

	p = ExtractImg2Img("/img2img soft a portrait", nil)
	if p.Gen.DenoisingStrength != 0.75 {
		t.Errorf("unparseable strength should default to 0.75, got %v", p.Gen.DenoisingStrength)
	}
}

func TestExtractProfileCreateAppliesDefaults(t *testing.T) {
	p := ExtractProfileCreate("/sd-config create portrait steps=40 negPrompt=blurry hands", nil)
	if p.ProfileID != "portrait" {
		t.Fatalf("ProfileID = %q", p.ProfileID)
	}
	got := *p.ProfileCreate
	want := ProfileSettings{Steps: 40, Width: 512, Height: 512, CfgScale: 7, NegativePrompt: "blurry hands"}
	if got != want {
		t.Errorf("ProfileCreate = %+v, want %+v", got, want)
	}
}

func TestExtractProfileCreateNegPromptSwallowsRest(t *testing.T) {
	// negPrompt= captures to the end of the settings text, so a stylePrompt=
	// written after it becomes part of the negative prompt.
	p := ExtractProfileCreate("/sd-config create x negPrompt=blurry stylePrompt=oil painting", nil)
	if p.ProfileCreate.NegativePrompt != "blurry stylePrompt=oil painting" {
		t.Errorf("NegativePrompt = %q", p.ProfileCreate.NegativePrompt)
	}
}

func TestExtractProfileUpdatePartial(t *testing.T) {
	p := ExtractProfileUpdate("/sd-config update portrait cfg=9", nil)
	u := p.ProfileUpdate
	if u == nil || u.CfgScale == nil || *u.CfgScale != 9 {
		t.Fatalf("ProfileUpdate = %+v", u)
	}
	if u.Steps != nil || u.Width != nil || u.Height != nil || u.NegativePrompt != nil || u.StylePrompt != nil {
		t.Errorf("omitted settings should stay nil: %+v", u)
	}
}

func TestExtractModelName(t *testing.T) {
	p := ExtractModelName("/sd-models set Deliberate v2 final", nil)
	if p.ModelName != "Deliberate v2 final" {
		t.Errorf("ModelName = %q", p.ModelName)
	}
}

func TestExtractInterrogate(t *testing.T) {
	p := ExtractInterrogate("/sd-interrogate CLIP", nil)
	if p.Interrogator != "clip" {
		t.Errorf("Interrogator = %q, want clip", p.Interrogator)
	}
}

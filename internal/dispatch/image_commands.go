package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/waclaw/internal/agents"
	"github.com/nextlevelbuilder/waclaw/internal/command"
	"github.com/nextlevelbuilder/waclaw/internal/diffusion"
)

// resolveGeneration overlays inline overrides on the chat's profile and
// prepends the profile's style prompt to the user prompt.
func resolveGeneration(params command.Params, profile diffusion.Profile) diffusion.GenerateRequest {
	req := diffusion.GenerateRequest{
		Prompt:         params.ImagePrompt,
		NegativePrompt: profile.NegativePrompt,
		Steps:          profile.Steps,
		Width:          profile.Width,
		Height:         profile.Height,
		CfgScale:       profile.CfgScale,
	}
	if profile.StylePrompt != "" {
		req.Prompt = profile.StylePrompt + "\n" + req.Prompt
	}
	if params.Gen.NegativePrompt != "" {
		req.NegativePrompt = params.Gen.NegativePrompt
	}
	if params.Gen.Steps > 0 {
		req.Steps = params.Gen.Steps
	}
	if params.Gen.Width > 0 {
		req.Width = params.Gen.Width
	}
	if params.Gen.Height > 0 {
		req.Height = params.Gen.Height
	}
	if params.Gen.CfgScale > 0 {
		req.CfgScale = params.Gen.CfgScale
	}
	return req
}

// chatProfile returns the referenced profile, falling back to the chat's
// default profile when the reference does not resolve.
func (d *Dispatcher) chatProfile(conversationID, profileID string) diffusion.Profile {
	if p, ok := d.deps.Profiles.Get(conversationID, profileID); ok {
		return p
	}
	return d.deps.Profiles.Default(conversationID)
}

// saveImage archives a generated image under the output directory, one
// subdirectory per conversation. Failures are logged only; the reply is sent
// from memory either way.
func (d *Dispatcher) saveImage(conversationID string, png []byte) {
	if d.deps.OutputDir == "" {
		return
	}
	safe := strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(conversationID)
	dir := filepath.Join(d.deps.OutputDir, safe)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("failed to create output dir", "dir", dir, "error", err)
		return
	}
	path := filepath.Join(dir, uuid.NewString()+".png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		slog.Warn("failed to archive image", "path", path, "error", err)
	}
}

func generationCaption(req diffusion.GenerateRequest) string {
	return strings.Join([]string{
		"Prompt: " + req.Prompt,
		"Negative: " + req.NegativePrompt,
		fmt.Sprintf("Steps: %d", req.Steps),
		fmt.Sprintf("CFG: %d", req.CfgScale),
		fmt.Sprintf("Size: %dx%d", req.Width, req.Height),
	}, "\n")
}

func (d *Dispatcher) imagineCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "sd",
		Templates:   []string{"/sd <profileId> <...prompt>", "/sd <...prompt>"},
		Description: "Generate image from text (add params like steps=20 cfg=7 width=512 height=512 -neg 'negative prompt')",
		Extract:     command.ExtractImagine,
		Handle: func(ctx context.Context, params command.Params, _ *agents.Store, msg command.Message) bool {
			if !d.deps.Images.Configured() {
				reply(ctx, msg, botPrefix+"Stable Diffusion API host not configured!")
				return false
			}
			conversationID := msg.ConversationID()
			profile := d.chatProfile(conversationID, params.ProfileID)
			req := resolveGeneration(params, profile)

			reply(ctx, msg, botPrefix+"Generating image...")
			png, err := d.deps.Images.Txt2Img(ctx, req)
			if err != nil {
				slog.Error("txt2img failed", "conversation", conversationID, "error", err)
				reply(ctx, msg, botPrefix+"Failed to generate image")
				return false
			}

			d.saveImage(conversationID, png)
			replyImage(ctx, msg, png, generationCaption(req))
			return true
		},
	}
}

func (d *Dispatcher) img2imgCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "img2img",
		Templates:   []string{"/img2img <denoisingStrength> <...prompt>"},
		Description: "Generate image from image (add params like steps=20 cfg=7 width=512 height=512 -neg 'negative prompt')",
		Extract:     command.ExtractImg2Img,
		Handle: func(ctx context.Context, params command.Params, _ *agents.Store, msg command.Message) bool {
			if !msg.HasMedia() {
				reply(ctx, msg, botPrefix+"Please attach an image with this command!")
				return false
			}
			if !d.deps.Images.Configured() {
				reply(ctx, msg, botPrefix+"Stable Diffusion API host not configured!")
				return false
			}

			conversationID := msg.ConversationID()
			media, err := msg.Media(ctx)
			if err != nil {
				slog.Error("failed to download media", "conversation", conversationID, "error", err)
				reply(ctx, msg, botPrefix+"Failed to generate image")
				return false
			}

			profile := d.chatProfile(conversationID, params.ProfileID)
			req := resolveGeneration(params, profile)

			// The init image is resized to fit the requested box while
			// keeping its aspect ratio; generation uses the fitted size.
			initImage, width, height, err := diffusion.PrepareInitImage(media, req.Width, req.Height)
			if err != nil {
				slog.Error("failed to prepare init image", "conversation", conversationID, "error", err)
				reply(ctx, msg, botPrefix+"Failed to generate image")
				return false
			}
			req.Width, req.Height = width, height

			reply(ctx, msg, botPrefix+"Generating image...")
			png, err := d.deps.Images.Img2Img(ctx, req, initImage, params.Gen.DenoisingStrength)
			if err != nil {
				slog.Error("img2img failed", "conversation", conversationID, "error", err)
				reply(ctx, msg, botPrefix+"Failed to generate image")
				return false
			}

			d.saveImage(conversationID, png)
			caption := generationCaption(req) + fmt.Sprintf("\nDenoising: %g", params.Gen.DenoisingStrength)
			replyImage(ctx, msg, png, caption)
			return true
		},
	}
}

func (d *Dispatcher) interrogateCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "sd-interrogate",
		Templates:   []string{"/sd-interrogate <deepbooru|clip>"},
		Description: "Analyze image and generate tags/description",
		Extract:     command.ExtractInterrogate,
		Handle: func(ctx context.Context, params command.Params, _ *agents.Store, msg command.Message) bool {
			if !msg.HasMedia() {
				reply(ctx, msg, botPrefix+"Please attach an image with this command!")
				return false
			}
			media, err := msg.Media(ctx)
			if err != nil {
				slog.Error("failed to download media", "conversation", msg.ConversationID(), "error", err)
				reply(ctx, msg, botPrefix+"Failed to analyze image")
				return false
			}

			reply(ctx, msg, botPrefix+"Analyzing image...")
			caption, err := d.deps.Images.Interrogate(ctx, media, params.Interrogator)
			if err != nil {
				slog.Error("interrogate failed", "error", err)
				reply(ctx, msg, botPrefix+"Failed to analyze image")
				return false
			}
			reply(ctx, msg, botPrefix+"Analysis results ("+params.Interrogator+"):\n"+caption)
			return true
		},
	}
}

func (d *Dispatcher) profileCreateCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "sd-config-create",
		Templates:   []string{"/sd-config create <profileId> <...settings>"},
		Description: "Create new SD config (steps=, width=, height=, cfg=, negPrompt=, stylePrompt=)",
		Extract:     command.ExtractProfileCreate,
		Handle: func(ctx context.Context, params command.Params, _ *agents.Store, msg command.Message) bool {
			settings := params.ProfileCreate
			profile := diffusion.Profile{
				ID:             params.ProfileID,
				Steps:          settings.Steps,
				Width:          settings.Width,
				Height:         settings.Height,
				CfgScale:       settings.CfgScale,
				NegativePrompt: settings.NegativePrompt,
				StylePrompt:    settings.StylePrompt,
			}
			if err := d.deps.Profiles.Create(msg.ConversationID(), profile); err != nil {
				reply(ctx, msg, botPrefix+err.Error())
				return false
			}
			reply(ctx, msg, botPrefix+"Created SD config "+params.ProfileID)
			return true
		},
	}
}

func (d *Dispatcher) profileUpdateCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "sd-config-update",
		Templates:   []string{"/sd-config update <profileId> [settings]"},
		Description: "Update existing SD config",
		Extract:     command.ExtractProfileUpdate,
		Handle: func(ctx context.Context, params command.Params, _ *agents.Store, msg command.Message) bool {
			u := params.ProfileUpdate
			updated, err := d.deps.Profiles.Update(msg.ConversationID(), params.ProfileID, diffusion.ProfileUpdate{
				Steps:          u.Steps,
				Width:          u.Width,
				Height:         u.Height,
				CfgScale:       u.CfgScale,
				NegativePrompt: u.NegativePrompt,
				StylePrompt:    u.StylePrompt,
			})
			if err != nil {
				reply(ctx, msg, botPrefix+err.Error())
				return false
			}
			reply(ctx, msg, botPrefix+"Updated config "+params.ProfileID+":\n"+describeProfile(updated))
			return true
		},
	}
}

func (d *Dispatcher) profileListCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "sd-config-list",
		Templates:   []string{"/sd-config list"},
		Description: "List available SD configs",
		Handle: func(ctx context.Context, _ command.Params, _ *agents.Store, msg command.Message) bool {
			profiles := d.deps.Profiles.List(msg.ConversationID())
			lines := make([]string, 0, len(profiles))
			for _, p := range profiles {
				lines = append(lines, fmt.Sprintf("%s: %dx%d steps=%d cfg=%d", p.ID, p.Width, p.Height, p.Steps, p.CfgScale))
			}
			reply(ctx, msg, botPrefix+"SD Configs:\n"+strings.Join(lines, "\n"))
			return true
		},
	}
}

func (d *Dispatcher) profileShowCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "sd-config-show",
		Templates:   []string{"/sd-config show <profileId>"},
		Description: "Show details of a specific SD config",
		Extract:     command.ExtractProfileShow,
		Handle: func(ctx context.Context, params command.Params, _ *agents.Store, msg command.Message) bool {
			profile, ok := d.deps.Profiles.Get(msg.ConversationID(), params.ProfileID)
			if !ok {
				reply(ctx, msg, botPrefix+"SD config "+params.ProfileID+" not found!")
				return false
			}
			orNone := func(s string) string {
				if s == "" {
					return "None"
				}
				return s
			}
			details := strings.Join([]string{
				"ID: " + profile.ID,
				fmt.Sprintf("Steps: %d", profile.Steps),
				fmt.Sprintf("Resolution: %dx%d", profile.Width, profile.Height),
				fmt.Sprintf("CFG Scale: %d", profile.CfgScale),
				"Negative Prompt: " + orNone(profile.NegativePrompt),
				"Style Prompt: " + orNone(profile.StylePrompt),
			}, "\n")
			reply(ctx, msg, botPrefix+"SD Config Details:\n"+details)
			return true
		},
	}
}

func describeProfile(p diffusion.Profile) string {
	return strings.Join([]string{
		"id: " + p.ID,
		fmt.Sprintf("steps: %d", p.Steps),
		fmt.Sprintf("width: %d", p.Width),
		fmt.Sprintf("height: %d", p.Height),
		fmt.Sprintf("cfgScale: %d", p.CfgScale),
		"negativePrompt: " + p.NegativePrompt,
		"stylePrompt: " + p.StylePrompt,
	}, "\n")
}

func (d *Dispatcher) modelsListCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "sd-models-list",
		Templates:   []string{"/sd-models list"},
		Description: "[Owner] List available Stable Diffusion models",
		Handle: func(ctx context.Context, _ command.Params, _ *agents.Store, msg command.Message) bool {
			if !requireOwner(ctx, msg) {
				return false
			}
			if err := d.deps.Images.RefreshModels(ctx); err != nil {
				slog.Warn("failed to refresh checkpoints", "error", err)
			}
			models, err := d.deps.Images.Models(ctx)
			if err != nil {
				slog.Error("failed to list models", "error", err)
				reply(ctx, msg, botPrefix+"Failed to fetch models")
				return false
			}
			names := make([]string, len(models))
			for i, m := range models {
				names[i] = m.ModelName
			}
			reply(ctx, msg, botPrefix+"Available SD Models:\n"+strings.Join(names, "\n"))
			return true
		},
	}
}

func (d *Dispatcher) modelsSetCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "sd-models-set",
		Templates:   []string{"/sd-models set <modelName>"},
		Description: "[Owner] Set the active Stable Diffusion model",
		Extract:     command.ExtractModelName,
		Handle: func(ctx context.Context, params command.Params, _ *agents.Store, msg command.Message) bool {
			if !requireOwner(ctx, msg) {
				return false
			}
			reply(ctx, msg, botPrefix+"Setting model to: "+params.ModelName)
			if err := d.deps.Images.SetModel(ctx, params.ModelName); err != nil {
				slog.Error("failed to set model", "model", params.ModelName, "error", err)
				reply(ctx, msg, botPrefix+"Failed to set model: "+err.Error())
				return false
			}
			reply(ctx, msg, botPrefix+"Model set to: "+params.ModelName)
			return true
		},
	}
}

func (d *Dispatcher) modelsCurrentCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "sd-models-current",
		Templates:   []string{"/sd-models current"},
		Description: "Show current Stable Diffusion model",
		Handle: func(ctx context.Context, _ command.Params, _ *agents.Store, msg command.Message) bool {
			current, err := d.deps.Images.CurrentModel(ctx)
			if err != nil {
				slog.Error("failed to fetch current model", "error", err)
				reply(ctx, msg, botPrefix+"Failed to fetch current model")
				return false
			}

			info := ""
			if hash := d.findModelHash(ctx, checkpointBaseName(current)); hash != "" {
				info = d.civitaiInfo(ctx, hash)
			}
			reply(ctx, msg, botPrefix+"Current SD Model: "+current+"\n"+info)
			return true
		},
	}
}

func (d *Dispatcher) modelsQueryCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "sd-models-query",
		Templates:   []string{"/sd-models query <modelName>"},
		Description: "Query CivitAI information for a specific model",
		Extract:     command.ExtractModelName,
		Handle: func(ctx context.Context, params command.Params, _ *agents.Store, msg command.Message) bool {
			models, err := d.deps.Images.Models(ctx)
			if err != nil {
				slog.Error("failed to list models", "error", err)
				reply(ctx, msg, botPrefix+"Failed to query model information")
				return false
			}

			var found *diffusion.Model
			for i, m := range models {
				if strings.Contains(strings.ToLower(m.ModelName), strings.ToLower(params.ModelName)) {
					found = &models[i]
					break
				}
			}
			if found == nil {
				reply(ctx, msg, botPrefix+"Model \""+params.ModelName+"\" not found")
				return false
			}

			info := "[No hash available for this model]"
			if found.Hash != "" {
				info = "Model: " + found.ModelName + "\n" + d.civitaiInfo(ctx, found.Hash)
			}
			reply(ctx, msg, botPrefix+"Model Information:\n"+info)
			return true
		},
	}
}

// checkpointBaseName reduces a checkpoint title like
// "deliberate.safetensors [abc123]" to the bare model name.
func checkpointBaseName(title string) string {
	base := strings.Split(title, " ")[0]
	return strings.Split(base, ".safetensors")[0]
}

func (d *Dispatcher) findModelHash(ctx context.Context, modelName string) string {
	models, err := d.deps.Images.Models(ctx)
	if err != nil {
		slog.Warn("failed to list models for hash lookup", "error", err)
		return ""
	}
	for _, m := range models {
		if m.ModelName == modelName {
			return m.Hash
		}
	}
	return ""
}

func (d *Dispatcher) civitaiInfo(ctx context.Context, hash string) string {
	version, err := d.deps.Civitai.VersionByHash(ctx, hash)
	if err != nil {
		slog.Warn("civitai lookup failed", "hash", hash, "error", err)
		return "[Could not fetch CivitAI info]"
	}
	return version.Describe()
}

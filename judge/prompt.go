package judge

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"post-judge/model"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// prompts is parsed once at process start and never mutated.
var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

// Prompt is the provider-neutral request content.
type Prompt struct {
	System string
	User   string
}

type promptData struct {
	Body       string
	MaxComment int
}

// BuildPrompt renders the persona's system prompt and the post message.
func BuildPrompt(persona model.Persona, body string) (Prompt, error) {
	if err := model.ValidatePersona(persona); err != nil {
		return Prompt{}, err
	}
	data := promptData{Body: body, MaxComment: model.MaxCommentLength}

	system, err := render(string(persona), data)
	if err != nil {
		return Prompt{}, err
	}
	user, err := render("post", data)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{System: system, User: user}, nil
}

func render(name string, data promptData) (string, error) {
	var sb strings.Builder
	if err := prompts.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(sb.String()), nil
}

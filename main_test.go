package main

import (
	"log/slog"
	"reflect"
	"testing"

	"post-judge/config"
	"post-judge/judge"
	"post-judge/model"
)

func TestParsePersonas(t *testing.T) {
	tests := []struct {
		input string
		want  []model.Persona
	}{
		{"", nil},
		{"dewi", []model.Persona{model.PersonaDewi}},
		{"Dewi, nakao", []model.Persona{model.PersonaDewi, model.PersonaNakao}},
		{"hiroyuki,,nakao,", []model.Persona{model.PersonaHiroyuki, model.PersonaNakao}},
	}

	for _, tt := range tests {
		got := parsePersonas(tt.input)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parsePersonas(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestProviderConfigs(t *testing.T) {
	got := providerConfigs(map[string]config.ProviderConfig{
		"nakao": {Kind: "openai", Model: "m", BaseURL: "https://openrouter.ai/api/v1", MaxTokens: 300, APIKeyEnv: "OPENROUTER_API_KEY"},
	})

	want := judge.ProviderConfig{
		Kind:      judge.KindOpenAI,
		Model:     "m",
		BaseURL:   "https://openrouter.ai/api/v1",
		MaxTokens: 300,
		APIKeyEnv: "OPENROUTER_API_KEY",
	}
	if got[model.PersonaNakao] != want {
		t.Errorf("providerConfigs()[nakao] = %+v, want %+v", got[model.PersonaNakao], want)
	}
}

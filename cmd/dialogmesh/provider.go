package main

import (
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/dialogmesh/config"
	"github.com/hupe1980/dialogmesh/model"
	"github.com/hupe1980/dialogmesh/model/anthropic"
	"github.com/hupe1980/dialogmesh/model/echo"
	"github.com/hupe1980/dialogmesh/model/openai"
)

// newModel builds the language model selected by cfg.
func newModel(cfg *config.Config) (model.Model, error) {
	switch p := cfg.ResolveProvider(); p {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.APIKey = cfg.OpenAIKey
			o.Timeout = cfg.ModelTimeout
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = cfg.AnthropicKey
			o.Timeout = cfg.ModelTimeout
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
		}), nil
	case config.ProviderEcho:
		return echo.New(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", p)
	}
}

package bootstrap

import (
	"fmt"
	"strings"

	"github.com/Ankesh-007/peft-studio-sub003/internal/domain"
)

var baseModelCatalog = []domain.BaseModelOption{
	{
		ID:            "llama-3.1-8b",
		Name:          "Llama 3.1 8B",
		Family:        "llama",
		ParamsLabel:   "8B",
		ContextLength: 131072,
		Description:   "Strong general-purpose base, fits a single 24 GB GPU with QLoRA.",
		Recommended:   true,
	},
	{
		ID:            "llama-3.2-3b",
		Name:          "Llama 3.2 3B",
		Family:        "llama",
		ParamsLabel:   "3B",
		ContextLength: 131072,
		Description:   "Small Llama variant for fast iteration on modest hardware.",
	},
	{
		ID:            "mistral-7b-v0.3",
		Name:          "Mistral 7B v0.3",
		Family:        "mistral",
		ParamsLabel:   "7B",
		ContextLength: 32768,
		Description:   "Efficient 7B base with sliding-window attention.",
	},
	{
		ID:            "qwen-2.5-7b",
		Name:          "Qwen 2.5 7B",
		Family:        "qwen",
		ParamsLabel:   "7B",
		ContextLength: 131072,
		Description:   "Multilingual base with strong coding performance.",
	},
	{
		ID:            "qwen-2.5-0.5b",
		Name:          "Qwen 2.5 0.5B",
		Family:        "qwen",
		ParamsLabel:   "0.5B",
		ContextLength: 32768,
		Description:   "Tiny base for smoke-testing training configs end to end.",
	},
	{
		ID:            "phi-3.5-mini",
		Name:          "Phi 3.5 Mini",
		Family:        "phi",
		ParamsLabel:   "3.8B",
		ContextLength: 131072,
		Description:   "Compact base tuned for reasoning-heavy tasks.",
	},
	{
		ID:            "gemma-2-9b",
		Name:          "Gemma 2 9B",
		Family:        "gemma",
		ParamsLabel:   "9B",
		ContextLength: 8192,
		Description:   "Larger base for quality-sensitive fine-tunes.",
	},
}

// GetBaseModels returns built-in base-model presets for the
// fine-tuning and deployment forms.
func (a *App) GetBaseModels() []domain.BaseModelOption {
	models := make([]domain.BaseModelOption, len(baseModelCatalog))
	copy(models, baseModelCatalog)
	return models
}

// DefaultBaseModelID returns the recommended catalog entry.
func DefaultBaseModelID() string {
	for _, model := range baseModelCatalog {
		if model.Recommended {
			return model.ID
		}
	}
	return baseModelCatalog[0].ID
}

// getBaseModelByID looks up a catalog entry by ID.
func getBaseModelByID(id string) (domain.BaseModelOption, bool) {
	for _, model := range baseModelCatalog {
		if model.ID == id {
			return model, true
		}
	}
	return domain.BaseModelOption{}, false
}

// validateBaseModelID rejects model IDs outside the supported catalog.
func validateBaseModelID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("model id is required")
	}
	if _, found := getBaseModelByID(trimmed); !found {
		return fmt.Errorf("unknown model id: %s", trimmed)
	}
	return nil
}

package provider

// ProviderInfo describes a selectable provider and its model catalog. The
// catalog is static so it can be listed before any credential is configured.
type ProviderInfo struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Models []Model `json:"models"`
}

var openaiModels = []Model{
	{ID: "gpt-5", Name: "GPT-5", ProviderID: "openai", ContextLength: 272000},
	{ID: "gpt-5-mini", Name: "GPT-5 Mini", ProviderID: "openai", ContextLength: 272000},
	{ID: "gpt-4o", Name: "GPT-4o", ProviderID: "openai", ContextLength: 128000},
	{ID: "gpt-4o-mini", Name: "GPT-4o Mini", ProviderID: "openai", ContextLength: 128000},
}

var anthropicModels = []Model{
	{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ProviderID: "anthropic", ContextLength: 200000},
	{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", ProviderID: "anthropic", ContextLength: 200000},
	{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", ProviderID: "anthropic", ContextLength: 200000},
}

// Catalog lists the known providers and their models without constructing
// vendor clients.
func Catalog() []ProviderInfo {
	return []ProviderInfo{
		{ID: "openai", Name: "OpenAI", Models: openaiModels},
		{ID: "anthropic", Name: "Anthropic", Models: anthropicModels},
	}
}

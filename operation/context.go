package operation

import (
	"drg/config"
	"drg/outcome"
)

// ContextSummary row of context listing
type ContextSummary struct {
	Name       string `json:"name"`
	Active     bool   `json:"active"`
	CloudURL   string `json:"drogue_cloud_url"`
	DefaultApp string `json:"default_app,omitempty"`
}

func ListContexts(cfg *config.Config) *outcome.Outcome[[]*ContextSummary] {
	summaries := make([]*ContextSummary, 0, len(cfg.Contexts))
	for _, c := range cfg.Contexts {
		summaries = append(summaries, &ContextSummary{
			Name:       c.Name,
			Active:     c.Name == cfg.ActiveContext,
			CloudURL:   c.CloudURL,
			DefaultApp: c.DefaultApp,
		})
	}

	return outcome.WithData(summaries)
}

// ShowContext returns named context, or the active one if name is empty
func ShowContext(cfg *config.Config, name string) (*outcome.Outcome[*config.Context], error) {
	c, err := cfg.Resolve(name)
	if err != nil {
		return nil, err
	}

	return outcome.WithData(c), nil
}

func UseContext(cfg *config.Config, name string) (*MessageOutcome, error) {
	if err := cfg.SetActive(name); err != nil {
		return nil, err
	}

	return outcome.WithMessage[any]("Switched active context to %s", name), nil
}

func DeleteContext(cfg *config.Config, name string) (*MessageOutcome, error) {
	if err := cfg.Delete(name); err != nil {
		return nil, err
	}

	if cfg.ActiveContext == "" {
		return outcome.WithMessage[any]("Context %s deleted, no context left", name), nil
	}
	return outcome.WithMessage[any]("Context %s deleted, active context is %s", name, cfg.ActiveContext), nil
}

func RenameContext(cfg *config.Config, oldName, newName string) (*MessageOutcome, error) {
	if newName == "" {
		return nil, outcome.InvalidInput("new context name is required")
	}

	if err := cfg.Rename(oldName, newName); err != nil {
		return nil, err
	}

	return outcome.WithMessage[any]("Context %s renamed to %s", oldName, newName), nil
}

func SetDefaultApp(cfg *config.Config, c *config.Context, app string) *MessageOutcome {
	cfg.SetDefaultApp(c, app)
	return outcome.WithMessage[any]("Default application of context %s set to %s", c.Name, app)
}

func SetDefaultAlgo(cfg *config.Config, c *config.Context, algo string) (*MessageOutcome, error) {
	if err := cfg.SetDefaultAlgo(c, algo); err != nil {
		return nil, err
	}

	return outcome.WithMessage[any]("Default algorithm of context %s set to %s", c.Name, c.DefaultAlgo), nil
}

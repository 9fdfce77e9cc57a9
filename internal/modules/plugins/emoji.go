package plugins

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"plugbot/internal/enablement"
)

// emojiFile mirrors internal/data/embedded/emoji.yaml.
type emojiFile struct {
	Emoji  map[string]string `yaml:"emoji"`
	States map[string]string `yaml:"states"`
}

type emojiCatalog struct {
	emoji  map[string]string
	states map[string]string
}

func loadEmoji(data []byte) (*emojiCatalog, error) {
	var f emojiFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse emoji file: %w", err)
	}
	for state, name := range f.States {
		if _, ok := f.Emoji[name]; !ok {
			return nil, fmt.Errorf("state %s uses unknown emoji %s", state, name)
		}
	}
	return &emojiCatalog{emoji: f.Emoji, states: f.States}, nil
}

// Get returns the emoji for a shortcode, or the shortcode itself in colons.
func (c *emojiCatalog) Get(name string) string {
	if e, ok := c.emoji[name]; ok {
		return e
	}
	return ":" + name + ":"
}

// State returns the emoji shown for a plugin state.
func (c *emojiCatalog) State(s enablement.State) string {
	return c.Get(c.states[s.String()])
}

// Package embedded provides data files compiled into the plugbot binary.
package embedded

import _ "embed"

// EmojiData contains the embedded emoji shortcode YAML data.
//
//go:embed emoji.yaml
var EmojiData []byte

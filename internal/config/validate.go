package config

import (
	"regexp"
	"strings"
)

// channelIDPattern matches spec §3's Channel.id format.
var channelIDPattern = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)

// envKeyTransform turns RUN_CONFIG_MAX_PARALLEL_CHANNELS into
// max_parallel_channels, matching the RunConfig koanf tags.
func envKeyTransform(s string) string {
	s = strings.TrimPrefix(s, "RUN_CONFIG_")
	return strings.ToLower(s)
}

package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	VoicesChanged   bool        // true if any character assignment or narrator voice changed
	VoiceChanges    []VoiceDiff // per-character diffs
	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// VoiceDiff describes what changed for a single character between two configs.
type VoiceDiff struct {
	Name    string
	Changed bool
	Added   bool
	Removed bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Narrator chain changes affect every narration line.
	if old.Voices.NarratorVoice != new.Voices.NarratorVoice ||
		old.Voices.DefaultVoice != new.Voices.DefaultVoice ||
		!equalStringMaps(old.Voices.Narrator, new.Voices.Narrator) {
		d.VoicesChanged = true
	}

	// Detect modified and removed characters.
	for name, oldChar := range old.Voices.Characters {
		newChar, exists := new.Voices.Characters[name]
		if !exists {
			d.VoiceChanges = append(d.VoiceChanges, VoiceDiff{Name: name, Removed: true})
			d.VoicesChanged = true
			continue
		}
		if oldChar != newChar {
			d.VoiceChanges = append(d.VoiceChanges, VoiceDiff{Name: name, Changed: true})
			d.VoicesChanged = true
		}
	}

	// Detect added characters.
	for name := range new.Voices.Characters {
		if _, exists := old.Voices.Characters[name]; !exists {
			d.VoiceChanges = append(d.VoiceChanges, VoiceDiff{Name: name, Added: true})
			d.VoicesChanged = true
		}
	}

	return d
}

func equalStringMaps(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

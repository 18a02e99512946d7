package config

import "testing"

func baseConfig() *Config {
	return &Config{
		Server: ServerConfig{LogLevel: LogInfo},
		Voices: VoicesConfig{
			Characters: map[string]CharacterConfig{
				"Evangeline": {Voice: "voice-eva"},
				"Bob":        {Voice: "voice-bob"},
			},
			Narrator:      map[string]string{"es": "voice-es"},
			NarratorVoice: "voice-narrator",
			DefaultVoice:  "voice-default",
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	d := Diff(old, new)
	if d.VoicesChanged || d.LogLevelChanged {
		t.Errorf("Diff of identical configs = %+v, want empty", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = LogDebug

	d := Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("LogLevelChanged = false")
	}
	if d.NewLogLevel != LogDebug {
		t.Errorf("NewLogLevel = %q", d.NewLogLevel)
	}
}

func TestDiff_CharacterVoiceChanged(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Voices.Characters["Bob"] = CharacterConfig{Voice: "voice-other"}

	d := Diff(old, new)
	if !d.VoicesChanged {
		t.Fatal("VoicesChanged = false")
	}
	found := false
	for _, vc := range d.VoiceChanges {
		if vc.Name == "Bob" && vc.Changed {
			found = true
		}
	}
	if !found {
		t.Errorf("VoiceChanges = %+v, want Bob changed", d.VoiceChanges)
	}
}

func TestDiff_CharacterAddedAndRemoved(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	delete(new.Voices.Characters, "Bob")
	new.Voices.Characters["Mika"] = CharacterConfig{Voice: "voice-mika"}

	d := Diff(old, new)
	if !d.VoicesChanged {
		t.Fatal("VoicesChanged = false")
	}

	var removed, added bool
	for _, vc := range d.VoiceChanges {
		if vc.Name == "Bob" && vc.Removed {
			removed = true
		}
		if vc.Name == "Mika" && vc.Added {
			added = true
		}
	}
	if !removed {
		t.Error("Bob removal not detected")
	}
	if !added {
		t.Error("Mika addition not detected")
	}
}

func TestDiff_NarratorChainChanged(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Voices.Narrator = map[string]string{"es": "voice-es", "ja": "voice-ja"}

	d := Diff(old, new)
	if !d.VoicesChanged {
		t.Error("narrator map change not detected")
	}

	old, new = baseConfig(), baseConfig()
	new.Voices.DefaultVoice = "voice-new-default"
	if d := Diff(old, new); !d.VoicesChanged {
		t.Error("default voice change not detected")
	}
}

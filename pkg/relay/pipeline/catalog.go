package pipeline

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Tier names accepted by the catalog. Anything else fails startup.
const (
	TierDeepgram     = "deepgram"
	TierGSpeech      = "gspeech"
	TierGTranslate   = "gtranslate"
	TierDeepL        = "deepl"
	TierGemini       = "gemini"
	TierElevenLabs   = "elevenlabs"
	TierPolly        = "polly"
	TierClientSpeech = "clientspeech"
)

// TierSettings are per-provider knobs from the catalog file. Providers read
// only the fields they understand.
type TierSettings struct {
	Endpoint string            `toml:"endpoint"`
	Model    string            `toml:"model"`
	Region   string            `toml:"region"`
	Engine   string            `toml:"engine"`
	Voices   map[string]string `toml:"voices"`
}

// Voice resolves a configured voice for a BCP-47 tag, trying the full tag
// first and the primary subtag second.
func (s TierSettings) Voice(language string) string {
	if len(s.Voices) == 0 {
		return ""
	}
	tag := strings.ToLower(strings.TrimSpace(language))
	if v, ok := s.Voices[tag]; ok {
		return v
	}
	if v, ok := s.Voices[baseLang(tag)]; ok {
		return v
	}
	return ""
}

// StageManifest is one stage's tier order plus per-tier settings.
type StageManifest struct {
	Tiers    []string                `toml:"tiers"`
	Settings map[string]TierSettings `toml:"settings"`
}

// Tier returns the settings block for a tier, zero when absent.
func (m StageManifest) Tier(name string) TierSettings {
	return m.Settings[name]
}

// Catalog declares which providers run each stage and in what order.
type Catalog struct {
	Transcription StageManifest `toml:"transcription"`
	Translation   StageManifest `toml:"translation"`
	Synthesis     StageManifest `toml:"synthesis"`
}

// DefaultCatalog is the tier layout used when no catalog file is given.
func DefaultCatalog() Catalog {
	return Catalog{
		Transcription: StageManifest{Tiers: []string{TierDeepgram, TierGSpeech}},
		Translation:   StageManifest{Tiers: []string{TierGTranslate, TierDeepL, TierGemini}},
		Synthesis:     StageManifest{Tiers: []string{TierElevenLabs, TierPolly, TierClientSpeech}},
	}
}

// LoadCatalog reads a catalog file, falling back to DefaultCatalog when the
// path is empty. A stage left out of the file keeps its default tier order.
func LoadCatalog(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog file: %w", err)
	}
	var catalog Catalog
	if err := toml.Unmarshal(data, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog file: %w", err)
	}
	catalog.applyDefaults()
	if err := catalog.validate(); err != nil {
		return Catalog{}, err
	}
	return catalog, nil
}

func (c *Catalog) applyDefaults() {
	defaults := DefaultCatalog()
	if len(c.Transcription.Tiers) == 0 {
		c.Transcription.Tiers = defaults.Transcription.Tiers
	}
	if len(c.Translation.Tiers) == 0 {
		c.Translation.Tiers = defaults.Translation.Tiers
	}
	if len(c.Synthesis.Tiers) == 0 {
		c.Synthesis.Tiers = defaults.Synthesis.Tiers
	}
}

func (c Catalog) validate() error {
	stages := []struct {
		name  string
		tiers []string
	}{
		{"transcription", c.Transcription.Tiers},
		{"translation", c.Translation.Tiers},
		{"synthesis", c.Synthesis.Tiers},
	}
	for _, stage := range stages {
		seen := make(map[string]struct{}, len(stage.tiers))
		for _, tier := range stage.tiers {
			tier = strings.TrimSpace(tier)
			if tier == "" {
				return fmt.Errorf("catalog: %s lists an empty tier name", stage.name)
			}
			if _, dup := seen[tier]; dup {
				return fmt.Errorf("catalog: %s lists tier %q twice", stage.name, tier)
			}
			seen[tier] = struct{}{}
		}
	}
	return nil
}

package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, []string{TierDeepgram, TierGSpeech}, c.Transcription.Tiers)
	assert.Equal(t, []string{TierGTranslate, TierDeepL, TierGemini}, c.Translation.Tiers)
	assert.Equal(t, []string{TierElevenLabs, TierPolly, TierClientSpeech}, c.Synthesis.Tiers)
}

func TestLoadCatalog_EmptyPathUsesDefault(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCatalog(), c)
}

func TestLoadCatalog_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[synthesis]
tiers = ["polly", "clientspeech"]

[synthesis.settings.polly]
region = "eu-west-1"
engine = "standard"

[synthesis.settings.polly.voices]
es = "Lucia"
"pt-br" = "Camila"

[translation]
tiers = ["deepl"]

[translation.settings.deepl]
endpoint = "http://localhost:9999"
`), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)

	assert.Equal(t, []string{TierPolly, TierClientSpeech}, c.Synthesis.Tiers)
	assert.Equal(t, []string{TierDeepL}, c.Translation.Tiers)
	// Stages the file leaves out keep the default order.
	assert.Equal(t, DefaultCatalog().Transcription.Tiers, c.Transcription.Tiers)

	polly := c.Synthesis.Tier(TierPolly)
	assert.Equal(t, "eu-west-1", polly.Region)
	assert.Equal(t, "standard", polly.Engine)
	assert.Equal(t, "Lucia", polly.Voice("es-ES"))
	assert.Equal(t, "Camila", polly.Voice("pt-BR"))
	assert.Equal(t, "", polly.Voice("ja"))

	assert.Equal(t, "http://localhost:9999", c.Translation.Tier(TierDeepL).Endpoint)
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestLoadCatalog_RejectsDuplicateTier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[translation]
tiers = ["deepl", "deepl"]
`), 0o600))

	_, err := LoadCatalog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "twice")
}

func TestLoadCatalog_RejectsEmptyTierName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[synthesis]
tiers = ["elevenlabs", ""]
`), 0o600))

	_, err := LoadCatalog(path)
	require.Error(t, err)
}

func buildOpts() BuildOptions {
	return BuildOptions{
		DeepgramAPIKey:       "dg",
		GoogleAPIKey:         "gk",
		DeepLAPIKey:          "dl",
		GeminiAPIKey:         "gm",
		ElevenLabsAPIKey:     "el",
		TranscribeTimeout:    time.Second,
		TranslateTimeout:     time.Second,
		SynthesizeTimeout:    time.Second,
		DefaultSynthesisTier: TierElevenLabs,
		Logger:               testLogger(),
	}
}

func TestBuild_DefaultCatalog(t *testing.T) {
	orch, err := Build(DefaultCatalog(), buildOpts())
	require.NoError(t, err)
	require.NotNil(t, orch)
	assert.Equal(t, []string{TierElevenLabs, TierPolly, TierClientSpeech}, orch.synthesize.Tiers())
}

func TestBuild_UnknownTierRefused(t *testing.T) {
	c := DefaultCatalog()
	c.Translation.Tiers = []string{"babelfish"}

	_, err := Build(c, buildOpts())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown translation tier")
}

func TestBuild_DefaultTierMustBeListed(t *testing.T) {
	c := DefaultCatalog()
	c.Synthesis.Tiers = []string{TierClientSpeech}

	opts := buildOpts()
	opts.DefaultSynthesisTier = TierElevenLabs

	_, err := Build(c, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the catalog")
}

package synthesize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
)

type pollyClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollyProvider implements the TTS Provider interface using Amazon Polly.
// Credentials come from the ambient AWS environment; the client is built
// lazily on first use.
type PollyProvider struct {
	mu     sync.Mutex
	client pollyClient
	region string
	engine pollytypes.Engine
	voices map[string]string
}

// NewPolly creates a new Polly TTS provider. voices maps lowercase language
// tags to Polly voice IDs and overrides the built-in table.
func NewPolly(region, engine string, voices map[string]string) *PollyProvider {
	region = strings.TrimSpace(region)
	if region == "" {
		region = "us-east-1"
	}
	return &PollyProvider{
		region: region,
		engine: parseEngine(engine),
		voices: voices,
	}
}

// NewPollyWithClient injects a ready client, for tests.
func NewPollyWithClient(client pollyClient, engine string, voices map[string]string) *PollyProvider {
	return &PollyProvider{
		client: client,
		engine: parseEngine(engine),
		voices: voices,
	}
}

func parseEngine(engine string) pollytypes.Engine {
	if strings.EqualFold(strings.TrimSpace(engine), "standard") {
		return pollytypes.EngineStandard
	}
	return pollytypes.EngineNeural
}

// Name returns the provider identifier.
func (p *PollyProvider) Name() string {
	return "polly"
}

// Healthy reports whether AWS configuration can be resolved.
func (p *PollyProvider) Healthy(ctx context.Context) error {
	_, err := p.resolveClient(ctx)
	return err
}

// Synthesize voices text through SynthesizeSpeech and drains the audio
// stream into memory.
func (p *PollyProvider) Synthesize(ctx context.Context, text string, opts Options) (*Synthesis, error) {
	client, err := p.resolveClient(ctx)
	if err != nil {
		return nil, err
	}

	voice := strings.TrimSpace(opts.Voice)
	if voice == "" {
		voice = p.voiceFor(opts.Language)
	}

	output, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       p.engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         &text,
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(voice),
	})
	if err != nil {
		return nil, describePollyError(err)
	}
	if output == nil || output.AudioStream == nil {
		return nil, fmt.Errorf("polly returned no audio stream")
	}
	defer output.AudioStream.Close()

	audio, err := io.ReadAll(output.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("polly returned no audio")
	}
	return &Synthesis{Audio: audio, Format: "mp3"}, nil
}

func (p *PollyProvider) voiceFor(language string) string {
	if v := lookupVoice(p.voices, language); v != "" {
		return v
	}
	if v, ok := pollyDefaultVoices[primarySubtag(language)]; ok {
		return v
	}
	return "Joanna"
}

// pollyDefaultVoices picks a neural voice per language for deployments that
// run without a catalog.
var pollyDefaultVoices = map[string]string{
	"en": "Joanna",
	"es": "Lupe",
	"fr": "Lea",
	"de": "Vicki",
	"it": "Bianca",
	"pt": "Camila",
	"ja": "Takumi",
	"ko": "Seoyeon",
	"zh": "Zhiyu",
	"nl": "Laura",
	"pl": "Ola",
	"ar": "Hala",
	"hi": "Kajal",
	"sv": "Elin",
}

func describePollyError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("polly %s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return fmt.Errorf("polly request: %w", err)
}

func (p *PollyProvider) resolveClient(ctx context.Context) (pollyClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	p.client = polly.NewFromConfig(awsCfg)
	return p.client, nil
}

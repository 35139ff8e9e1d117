// Package contract checks wire-protocol fixtures against both the typed
// decoders and the published JSON schema, so the two cannot drift apart
// silently.
package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/linguacast/linguacast/pkg/relay/protocol"
	"github.com/linguacast/linguacast/pkg/relay/sessions"
)

// Summary reports fixture validation totals.
type Summary struct {
	Total    int
	Failed   int
	Failures []string
}

func (s *Summary) fail(msg string) {
	s.Failed++
	s.Failures = append(s.Failures, msg)
}

// String renders the summary for test failure output.
func (s Summary) String() string {
	lines := []string{fmt.Sprintf("contract fixtures: total=%d failed=%d", s.Total, s.Failed)}
	for _, f := range s.Failures {
		lines = append(lines, "- "+f)
	}
	return strings.Join(lines, "\n")
}

type artifact struct {
	name     string
	validate func([]byte) error
}

func artifacts() []artifact {
	return []artifact{
		{name: "register", validate: decodeAs(protocol.TypeRegister)},
		{name: "transcription", validate: decodeAs(protocol.TypeTranscription)},
		{name: "tts_request", validate: decodeAs(protocol.TypeTTSRequest)},
		{name: "audio", validate: decodeAs(protocol.TypeAudio)},
		{name: "ping", validate: decodeAs(protocol.TypePing)},
		{name: "register_ack", validate: validateRegisterAck},
		{name: "transcription_result", validate: validateTranscriptionResult},
		{name: "translation", validate: validateTranslation},
		{name: "tts_response", validate: validateTTSResponse},
		{name: "pong", validate: validatePong},
		{name: "error", validate: validateErrorReply},
		{name: "session_ending", validate: validateSessionEnding},
	}
}

// ValidateFixtures walks <root>/<artifact>/{valid,invalid} and checks every
// fixture twice: against the typed validator and against the schema. A valid
// fixture must pass both; an invalid one must fail both.
func ValidateFixtures(schemaPath, root string) (Summary, error) {
	schema, err := compileSchema(schemaPath)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	for _, art := range artifacts() {
		for _, set := range []struct {
			dir        string
			shouldPass bool
		}{
			{dir: "valid", shouldPass: true},
			{dir: "invalid", shouldPass: false},
		} {
			dir := filepath.Join(root, art.name, set.dir)
			entries, err := os.ReadDir(dir)
			if err != nil {
				return summary, fmt.Errorf("read fixtures %s: %w", dir, err)
			}

			names := make([]string, 0, len(entries))
			for _, entry := range entries {
				if !entry.IsDir() {
					names = append(names, entry.Name())
				}
			}
			sort.Strings(names)

			for _, name := range names {
				summary.Total++
				path := filepath.Join(dir, name)
				raw, err := os.ReadFile(path)
				if err != nil {
					summary.fail(fmt.Sprintf("%s: read: %v", path, err))
					continue
				}

				typedErr := art.validate(raw)
				schemaErr := validateAgainstSchema(schema, raw)

				if set.shouldPass && (typedErr != nil || schemaErr != nil) {
					summary.fail(fmt.Sprintf("%s: expected valid, typed=%v schema=%v", path, typedErr, schemaErr))
				}
				if !set.shouldPass && (typedErr == nil || schemaErr == nil) {
					summary.fail(fmt.Sprintf("%s: expected invalid by both validators, typed=%v schema=%v", path, typedErr, schemaErr))
				}
			}
		}
	}
	return summary, nil
}

func compileSchema(schemaPath string) (*jsonschema.Schema, error) {
	abs, err := filepath.Abs(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("resolve schema path: %w", err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("open schema: %w", err)
	}
	defer f.Close()

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(abs, f); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(abs)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func validateAgainstSchema(schema *jsonschema.Schema, raw []byte) error {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	return schema.Validate(payload)
}

// decodeAs runs the production inbound decoder and checks the frame decodes
// to the expected envelope type.
func decodeAs(want string) func([]byte) error {
	return func(data []byte) error {
		typ, _, err := protocol.Decode(data)
		if err != nil {
			return err
		}
		if typ != want {
			return fmt.Errorf("decoded as %q, want %q", typ, want)
		}
		return nil
	}
}

func validateRegisterAck(data []byte) error {
	var m protocol.RegisterAck
	if err := strictUnmarshal(data, &m); err != nil {
		return err
	}
	if m.Type != protocol.TypeRegister {
		return fmt.Errorf("type = %q, want %q", m.Type, protocol.TypeRegister)
	}
	if m.Status != protocol.StatusOK && m.Status != protocol.StatusError {
		return fmt.Errorf("status = %q", m.Status)
	}
	return nil
}

func validateTranscriptionResult(data []byte) error {
	var m protocol.TranscriptionResult
	if err := strictUnmarshal(data, &m); err != nil {
		return err
	}
	if m.Type != protocol.TypeTranscriptionResult {
		return fmt.Errorf("type = %q, want %q", m.Type, protocol.TypeTranscriptionResult)
	}
	if m.Text == "" {
		return fmt.Errorf("text is required")
	}
	return nil
}

func validateTranslation(data []byte) error {
	var m protocol.Translation
	if err := strictUnmarshal(data, &m); err != nil {
		return err
	}
	if m.Type != protocol.TypeTranslation {
		return fmt.Errorf("type = %q, want %q", m.Type, protocol.TypeTranslation)
	}
	if m.Text == "" || m.OriginalText == "" {
		return fmt.Errorf("text fields are required")
	}
	if m.SourceLanguage == "" || m.TargetLanguage == "" {
		return fmt.Errorf("language fields are required")
	}
	return nil
}

func validateTTSResponse(data []byte) error {
	var m protocol.TTSResponse
	if err := strictUnmarshal(data, &m); err != nil {
		return err
	}
	if m.Type != protocol.TypeTTSResponse {
		return fmt.Errorf("type = %q, want %q", m.Type, protocol.TypeTTSResponse)
	}
	if m.Status != protocol.StatusOK && m.Status != protocol.StatusError {
		return fmt.Errorf("status = %q", m.Status)
	}
	return nil
}

func validatePong(data []byte) error {
	var m protocol.Pong
	if err := strictUnmarshal(data, &m); err != nil {
		return err
	}
	if m.Type != protocol.TypePong {
		return fmt.Errorf("type = %q, want %q", m.Type, protocol.TypePong)
	}
	if m.Timestamp <= 0 {
		return fmt.Errorf("timestamp = %d", m.Timestamp)
	}
	return nil
}

func validateErrorReply(data []byte) error {
	var m protocol.ErrorReply
	if err := strictUnmarshal(data, &m); err != nil {
		return err
	}
	if m.Type != protocol.TypeError {
		return fmt.Errorf("type = %q, want %q", m.Type, protocol.TypeError)
	}
	if m.Status != protocol.StatusError {
		return fmt.Errorf("status = %q, want %q", m.Status, protocol.StatusError)
	}
	if m.Error == "" {
		return fmt.Errorf("error text is required")
	}
	return nil
}

func validateSessionEnding(data []byte) error {
	var m protocol.SessionEnding
	if err := strictUnmarshal(data, &m); err != nil {
		return err
	}
	if m.Type != protocol.TypeSessionEnding {
		return fmt.Errorf("type = %q, want %q", m.Type, protocol.TypeSessionEnding)
	}
	switch m.Reason {
	case sessions.ReasonSpeakerAbsent, sessions.ReasonListenersAbsent, sessions.ReasonStale, sessions.ReasonShutdown:
		return nil
	default:
		return fmt.Errorf("reason = %q", m.Reason)
	}
}

func strictUnmarshal(data []byte, target any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return err
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		return fmt.Errorf("unexpected trailing JSON payload")
	}
	return nil
}

package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/desertthunder/filealchemy/internal/shared"
)

// Speech parameter bounds accepted by the TTS backend.
const (
	MinRate          = 50
	MaxRate          = 400
	DefaultRate      = 200
	DefaultVolume    = 0.9
	MaxPreviewLength = 500
)

// Voice is one entry of GET /tts/voices.
type Voice struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Gender    string   `json:"gender"`
	Languages []string `json:"languages"`
	Index     int      `json:"index"`
}

// SpeechRequest is the body of POST /tts/convert and POST /tts/preview.
type SpeechRequest struct {
	Text    string  `json:"text"`
	Rate    int     `json:"rate"`
	Volume  float64 `json:"volume"`
	VoiceID string  `json:"voice_id,omitempty"`
}

// Normalize trims the text and clamps rate and volume into range.
//
// A zero rate becomes [DefaultRate]; a negative volume becomes [DefaultVolume].
func (r SpeechRequest) Normalize() SpeechRequest {
	r.Text = strings.TrimSpace(r.Text)

	switch {
	case r.Rate == 0:
		r.Rate = DefaultRate
	case r.Rate < MinRate:
		r.Rate = MinRate
	case r.Rate > MaxRate:
		r.Rate = MaxRate
	}

	switch {
	case r.Volume < 0:
		r.Volume = DefaultVolume
	case r.Volume > 1:
		r.Volume = 1
	}

	if r.VoiceID == "default" {
		r.VoiceID = ""
	}
	return r
}

// SpeechResult is the body of a successful POST /tts/convert.
type SpeechResult struct {
	Success    bool   `json:"success"`
	Filename   string `json:"filename"`
	Size       int64  `json:"size"`
	TextLength int    `json:"text_length"`
	Message    string `json:"message"`
}

// TTSHealth is the body of GET /tts/health.
type TTSHealth struct {
	Initialized      bool     `json:"initialized"`
	VoicesAvailable  int      `json:"voices_available"`
	SupportedFormats []string `json:"supported_formats"`
}

// TTSService is the client for the backend text-to-speech API.
type TTSService struct {
	backend *BackendService
}

// NewTTSService creates a TTS client sharing the backend's transport.
func NewTTSService(backend *BackendService) *TTSService {
	return &TTSService{backend: backend}
}

// Voices lists the voices the backend engine offers.
func (s *TTSService) Voices(ctx context.Context) ([]Voice, error) {
	resp, err := s.backend.api.Get(ctx, "/tts/voices")
	if err != nil {
		return nil, &ConnectivityError{Op: "tts voices", Err: err}
	}
	if !resp.OK() {
		return nil, &ConnectivityError{Op: "tts voices", StatusCode: resp.StatusCode}
	}

	var body struct {
		Success bool    `json:"success"`
		Error   string  `json:"error"`
		Voices  []Voice `json:"voices"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if !body.Success {
		return nil, fmt.Errorf("%w: %s", shared.ErrServiceUnavailable, body.Error)
	}
	return body.Voices, nil
}

// Convert synthesizes speech into a downloadable file.
func (s *TTSService) Convert(ctx context.Context, req SpeechRequest) (*SpeechResult, error) {
	req = req.Normalize()
	if req.Text == "" {
		return nil, fmt.Errorf("%w: text is required", shared.ErrInvalidInput)
	}
	return s.submit(ctx, "tts convert", "/tts/convert", req)
}

// Preview plays a short sample on the backend. Text is limited to [MaxPreviewLength] characters.
func (s *TTSService) Preview(ctx context.Context, req SpeechRequest) (*SpeechResult, error) {
	req = req.Normalize()
	if req.Text == "" {
		return nil, fmt.Errorf("%w: text is required", shared.ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(req.Text); n > MaxPreviewLength {
		return nil, fmt.Errorf("%w: preview text is %d characters (max %d)", shared.ErrInvalidInput, n, MaxPreviewLength)
	}
	return s.submit(ctx, "tts preview", "/tts/preview", req)
}

// Health reports the state of the backend TTS engine.
func (s *TTSService) Health(ctx context.Context) (*TTSHealth, error) {
	resp, err := s.backend.api.Get(ctx, "/tts/health")
	if err != nil {
		return nil, &ConnectivityError{Op: "tts health", Err: err}
	}
	if !resp.OK() {
		return nil, &ConnectivityError{Op: "tts health", StatusCode: resp.StatusCode}
	}

	var health TTSHealth
	if err := resp.Decode(&health); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return &health, nil
}

// DownloadURL resolves the audio file name from a [SpeechResult].
func (s *TTSService) DownloadURL(filename string) string {
	return s.backend.DownloadURL("/api/download/" + filename)
}

func (s *TTSService) submit(ctx context.Context, op, path string, req SpeechRequest) (*SpeechResult, error) {
	resp, err := s.backend.api.PostJSON(ctx, path, req)
	if err != nil {
		return nil, &ConnectivityError{Op: op, Err: err}
	}
	if err := checkSubmission(op, resp); err != nil {
		return nil, err
	}

	var result SpeechResult
	if err := resp.Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if !result.Success {
		return nil, &RejectedError{Op: op, StatusCode: resp.StatusCode, Message: resp.ErrorMessage()}
	}
	return &result, nil
}

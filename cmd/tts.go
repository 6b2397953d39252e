package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/desertthunder/filealchemy/internal/services"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

func speechRequest(cmd *cli.Command) services.SpeechRequest {
	return services.SpeechRequest{
		Text:    cmd.String("text"),
		Rate:    cmd.Int("rate"),
		Volume:  cmd.Float("volume"),
		VoiceID: cmd.String("voice"),
	}.Normalize()
}

// TTSVoices lists the voices offered by the backend.
func (r *Runner) TTSVoices(ctx context.Context, cmd *cli.Command) error {
	voices, err := r.tts.Voices(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(voices, true)
	}

	rows := make([][]string, len(voices))
	for i, v := range voices {
		rows[i] = []string{strconv.Itoa(v.Index), v.ID, v.Name, v.Gender, strings.Join(v.Languages, ", ")}
	}
	return r.writePlain("%s\n", renderTable([]string{"#", "ID", "Name", "Gender", "Languages"}, rows, []columnAlignment{alignRight}))
}

// TTSSpeak synthesizes text into an audio file and downloads it.
func (r *Runner) TTSSpeak(ctx context.Context, cmd *cli.Command) error {
	req := speechRequest(cmd)
	r.logger.Info("synthesizing speech", "chars", len(req.Text), "rate", req.Rate, "volume", req.Volume, "voice", req.VoiceID)

	result, err := r.tts.Convert(ctx, req)
	if err != nil {
		return err
	}

	dir := cmd.String("output")
	if dir == "" {
		dir = r.config.Downloads.OutputDir
	}

	dest, n, err := r.saveRemote(ctx, r.tts.DownloadURL(result.Filename), dir, result.Filename)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Saved speech to %s (%s)\n", dest, humanize.Bytes(uint64(n)))
}

// TTSPreview plays a short sample of the text on the backend host.
func (r *Runner) TTSPreview(ctx context.Context, cmd *cli.Command) error {
	result, err := r.tts.Preview(ctx, speechRequest(cmd))
	if err != nil {
		return err
	}

	message := result.Message
	if message == "" {
		message = "Preview played"
	}
	return r.writePlain("✓ %s\n", message)
}

// TTSHealth reports the state of the backend speech engine.
func (r *Runner) TTSHealth(ctx context.Context, cmd *cli.Command) error {
	health, err := r.tts.Health(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(health, true)
	}

	r.writePlainHeader("Text to speech")
	r.writePlain("Initialized:  %t\n", health.Initialized)
	r.writePlain("Voices:       %d\n", health.VoicesAvailable)
	return r.writePlain("Formats:      %s\n", strings.Join(health.SupportedFormats, ", "))
}

package fakecall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Daskott/luna/utils"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultVoiceID = "xctasy8XvGp2cVO9HL9k"
	DefaultModelID = "eleven_multilingual_v2"

	AudioFile    = "fake_call.mp3"
	AudioPath    = "/static/audio/" + AudioFile
	FallbackPath = "/static/alarm.mp3"
)

// Script is what the "caller" says on the decoy call.
const Script = `
    Hey! I'm outside your dorm. 
    I see you walking - I'll be there in 2 minutes.
    Don't worry, I'm close by.
    `

// Uploader mirrors generated audio somewhere other than the local disk.
type Uploader interface {
	UploadFile(ctx context.Context, filePath string) error
}

type Config struct {
	BaseURL   string
	ApiKey    string
	VoiceID   string
	ModelID   string
	StaticDir string
}

// Generator turns a script into speech with the ElevenLabs text-to-speech API.
type Generator struct {
	client   *http.Client
	config   Config
	uploader Uploader
	logg     *zap.SugaredLogger
}

// NewGenerator returns a generator. uploader may be nil.
func NewGenerator(client *http.Client, config Config, uploader Uploader, logg *zap.SugaredLogger) *Generator {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.VoiceID == "" {
		config.VoiceID = DefaultVoiceID
	}
	if config.ModelID == "" {
		config.ModelID = DefaultModelID
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")

	return &Generator{client: client, config: config, uploader: uploader, logg: logg}
}

// Generate writes the spoken text to the static audio folder and returns its
// public path, or the alarm sound's path if synthesis fails.
func (g *Generator) Generate(ctx context.Context, text string) string {
	filePath, err := g.synthesize(ctx, text)
	if err != nil {
		g.logg.Errorf("ElevenLabs Error: %v", err)
		return FallbackPath
	}

	if g.uploader != nil && utils.FileExist(filePath) {
		if err := g.uploader.UploadFile(ctx, filePath); err != nil {
			g.logg.Warnf("Uploading %v failed: %v", filePath, err)
		}
	}

	return AudioPath
}

func (g *Generator) synthesize(ctx context.Context, text string) (string, error) {
	if g.config.ApiKey == "" {
		return "", errors.New("missing ElevenLabs api key")
	}

	audioDir := filepath.Join(g.config.StaticDir, "audio")
	if err := utils.CreateDirIfNotExist(audioDir); err != nil {
		return "", errors.Wrap(err, "creating audio folder")
	}

	body, err := json.Marshal(map[string]string{"text": text, "model_id": g.config.ModelID})
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%v/v1/text-to-speech/%v", g.config.BaseURL, g.config.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", g.config.ApiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errors.Errorf("text-to-speech returned %v: %s", resp.StatusCode, msg)
	}

	filePath := filepath.Join(audioDir, AudioFile)
	tmpPath := filePath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", err
	}

	if _, err = io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", errors.Wrap(err, "writing audio")
	}

	if err = f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	return filePath, os.Rename(tmpPath, filePath)
}

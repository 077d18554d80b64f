// Package speech talks to the Azure batch speech-to-text REST API.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// AzureConfig holds the settings for the Azure speech service.
type AzureConfig struct {
	Key          string
	Region       string        // e.g. westeurope
	Locale       string        // e.g. en-US
	PollInterval time.Duration // status polling period
	BaseURL      string        // overrides https://{region}.api.cognitive.microsoft.com/speechtotext/v3.2
}

// AzureTranscriber implements port.Transcriber with batch transcription.
type AzureTranscriber struct {
	cfg        AzureConfig
	baseURL    string
	httpClient *http.Client
}

// NewAzureTranscriber creates a transcriber for the given region and key.
func NewAzureTranscriber(cfg AzureConfig) *AzureTranscriber {
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.api.cognitive.microsoft.com/speechtotext/v3.2", cfg.Region)
	}
	if cfg.Locale == "" {
		cfg.Locale = "en-US"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &AzureTranscriber{
		cfg:        cfg,
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type transcription struct {
	Self       string `json:"self"`
	Status     string `json:"status"`
	Properties struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error,omitempty"`
	} `json:"properties"`
}

type transcriptionFiles struct {
	Values []struct {
		Kind  string `json:"kind"`
		Name  string `json:"name"`
		Links struct {
			ContentURL string `json:"contentUrl"`
		} `json:"links"`
	} `json:"values"`
	NextLink string `json:"@nextLink"`
}

// Transcribe submits the audio, waits for the job to finish and returns the
// recognizedPhrases result document.
func (a *AzureTranscriber) Transcribe(ctx context.Context, audioURL string) ([]byte, error) {
	job, err := a.create(ctx, audioURL)
	if err != nil {
		return nil, fmt.Errorf("create transcription: %w", err)
	}
	slog.Info("transcription created", "url", job.Self, "region", a.cfg.Region)

	if err := a.wait(ctx, job.Self); err != nil {
		return nil, err
	}

	contentURL, err := a.resultURL(ctx, job.Self+"/files")
	if err != nil {
		return nil, fmt.Errorf("list transcription files: %w", err)
	}

	body, err := a.do(ctx, http.MethodGet, contentURL, nil, false)
	if err != nil {
		return nil, fmt.Errorf("download transcription: %w", err)
	}
	return body, nil
}

func (a *AzureTranscriber) create(ctx context.Context, audioURL string) (*transcription, error) {
	payload := map[string]interface{}{
		"displayName": "Podcast transcription",
		"description": "Moltocasto podcast app transcription",
		"locale":      a.cfg.Locale,
		"contentUrls": []string{audioURL},
		"properties":  map[string]interface{}{},
	}

	body, err := a.do(ctx, http.MethodPost, a.baseURL+"/transcriptions", payload, true)
	if err != nil {
		return nil, err
	}

	var t transcription
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if t.Self == "" {
		return nil, errors.New("response has no transcription url")
	}
	return &t, nil
}

func (a *AzureTranscriber) wait(ctx context.Context, self string) error {
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		body, err := a.do(ctx, http.MethodGet, self, nil, true)
		if err != nil {
			return fmt.Errorf("poll transcription: %w", err)
		}
		var t transcription
		if err := json.Unmarshal(body, &t); err != nil {
			return fmt.Errorf("decode transcription status: %w", err)
		}
		slog.Debug("transcription status", "status", t.Status)

		switch t.Status {
		case "Succeeded":
			return nil
		case "Failed":
			msg := "unknown error"
			if t.Properties.Error != nil {
				msg = t.Properties.Error.Message
			}
			return fmt.Errorf("transcription failed: %s", msg)
		}
	}
}

func (a *AzureTranscriber) resultURL(ctx context.Context, next string) (string, error) {
	for next != "" {
		body, err := a.do(ctx, http.MethodGet, next, nil, true)
		if err != nil {
			return "", err
		}
		var files transcriptionFiles
		if err := json.Unmarshal(body, &files); err != nil {
			return "", fmt.Errorf("decode: %w", err)
		}
		for _, f := range files.Values {
			if f.Kind == "Transcription" {
				return f.Links.ContentURL, nil
			}
		}
		next = files.NextLink
	}
	return "", errors.New("no transcription result file")
}

// do sends a request; authenticated requests carry the subscription key.
func (a *AzureTranscriber) do(ctx context.Context, method, url string, payload interface{}, auth bool) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Ocp-Apim-Subscription-Key", a.cfg.Key)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("speech API error (%d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

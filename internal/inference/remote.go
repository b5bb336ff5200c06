package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteEngine calls an inference sidecar over HTTP/JSON. Audio is sent
// base64-encoded; each capability maps to one endpoint.
type RemoteEngine struct {
	baseURL string
	client  *http.Client
}

// NewRemoteEngine returns a RemoteEngine for the sidecar at baseURL.
func NewRemoteEngine(baseURL string) *RemoteEngine {
	return &RemoteEngine{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// audioRequest is the common request payload for all capability endpoints.
type audioRequest struct {
	Audio string `json:"audio"`
}

// Embed computes the speaker embedding via POST /embed.
func (e *RemoteEngine) Embed(ctx context.Context, audio []byte) ([]float64, error) {
	var out struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := e.post(ctx, "/embed", audio, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("embed: empty embedding from sidecar")
	}
	return out.Embedding, nil
}

// SpoofScore computes the spoof likelihood via POST /spoof.
func (e *RemoteEngine) SpoofScore(ctx context.Context, audio []byte) (float64, error) {
	var out struct {
		Score float64 `json:"score"`
	}
	if err := e.post(ctx, "/spoof", audio, &out); err != nil {
		return 0, err
	}
	return out.Score, nil
}

// Transcribe returns the spoken text via POST /transcribe.
func (e *RemoteEngine) Transcribe(ctx context.Context, audio []byte) (string, error) {
	var out struct {
		Text string `json:"text"`
	}
	if err := e.post(ctx, "/transcribe", audio, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

// post sends base64 audio to the given endpoint and decodes the JSON reply.
func (e *RemoteEngine) post(ctx context.Context, path string, audio []byte, out any) error {
	body, err := json.Marshal(audioRequest{Audio: base64.StdEncoding.EncodeToString(audio)})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("call %s: sidecar returned %d: %s", path, resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

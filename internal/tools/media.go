// media.go implements the three tool bodies whose actual work happens in an
// external backend: tts, asr, vision. Each body is a thin HTTP client
// against a configured backend URL; vision additionally downscales/
// normalizes the image locally (disintegration/imaging) before handing
// bytes to the backend.
package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"

	"github.com/nextlevelbuilder/msgcode/internal/toolbus"
)

// MediaBackendConfig points the tts/asr/vision tool bodies at their external
// HTTP backends. A zero-value Endpoint disables the tool (the executor
// returns TOOL_EXEC_FAILED rather than panicking on a nil client).
type MediaBackendConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

func (c MediaBackendConfig) client() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func (c MediaBackendConfig) post(ctx context.Context, path string, payload interface{}) (map[string]interface{}, error) {
	if c.Endpoint == "" {
		return nil, toolbus.NewExecError("TOOL_EXEC_FAILED", "no backend configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, toolbus.NewExecError("TOOL_TIMEOUT", err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, toolbus.NewExecError("TOOL_EXEC_FAILED", fmt.Sprintf("backend status %d: %s", resp.StatusCode, truncateStr(string(respBody), 500)))
	}

	var out map[string]interface{}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, toolbus.NewExecError("TOOL_EXEC_FAILED", "backend returned invalid JSON")
	}
	return out, nil
}

// TTS implements the tts tool: {text} -> backend's raw JSON response
// (typically {audioBase64, format}).
func TTS(cfg MediaBackendConfig) toolbus.Executor {
	return func(args map[string]interface{}) (interface{}, error) {
		text, _ := args["text"].(string)
		if text == "" {
			return nil, toolbus.NewExecError("TOOL_INVALID_ARGS", "text is required")
		}
		return cfg.post(context.Background(), "/tts", map[string]interface{}{"text": text})
	}
}

// ASR implements the asr tool: {audioBase64} -> backend's raw JSON response
// (typically {text}).
func ASR(cfg MediaBackendConfig) toolbus.Executor {
	return func(args map[string]interface{}) (interface{}, error) {
		audio, _ := args["audioBase64"].(string)
		if audio == "" {
			return nil, toolbus.NewExecError("TOOL_INVALID_ARGS", "audioBase64 is required")
		}
		return cfg.post(context.Background(), "/asr", map[string]interface{}{"audioBase64": audio})
	}
}

const visionMaxDimension = 1024

// Vision implements the vision tool: {imageBase64, prompt?} -> backend's raw
// JSON response. The image is downscaled to visionMaxDimension on its
// longest edge before being sent, so a vision-capable provider never pays
// for pixels beyond what it can use.
func Vision(cfg MediaBackendConfig) toolbus.Executor {
	return func(args map[string]interface{}) (interface{}, error) {
		raw, _ := args["imageBase64"].(string)
		if raw == "" {
			return nil, toolbus.NewExecError("TOOL_INVALID_ARGS", "imageBase64 is required")
		}
		prompt, _ := args["prompt"].(string)

		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, toolbus.NewExecError("TOOL_INVALID_ARGS", "imageBase64 is not valid base64")
		}

		normalized, format, err := normalizeImage(decoded)
		if err != nil {
			return nil, toolbus.NewExecError("TOOL_INVALID_ARGS", fmt.Sprintf("unrecognized image: %v", err))
		}

		payload := map[string]interface{}{
			"imageBase64": base64.StdEncoding.EncodeToString(normalized),
			"format":      format,
		}
		if prompt != "" {
			payload["prompt"] = prompt
		}
		return cfg.post(context.Background(), "/vision", payload)
	}
}

func normalizeImage(data []byte) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}

	bounds := img.Bounds()
	if bounds.Dx() > visionMaxDimension || bounds.Dy() > visionMaxDimension {
		if bounds.Dx() >= bounds.Dy() {
			img = imaging.Resize(img, visionMaxDimension, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, visionMaxDimension, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), format, nil
}

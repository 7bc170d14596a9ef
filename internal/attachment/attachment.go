// Package attachment uploads complaint photos to Cloudinary with signed
// requests and returns their public URLs.
package attachment

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrEmpty is returned for an upload with no content.
var ErrEmpty = errors.New("attachment: empty upload")

// MaxBytes caps a single photo.
const MaxBytes = 5 << 20

// Uploader is what handlers depend on.
type Uploader interface {
	UploadBytes(ctx context.Context, data []byte, filename string) (Result, error)
	UploadDataURL(ctx context.Context, dataURL string) (Result, error)
}

// Result is the subset of Cloudinary's upload response callers use.
type Result struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	Format    string `json:"format"`
	Bytes     int    `json:"bytes"`
}

// Cloudinary uploads images through the REST upload API.
type Cloudinary struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	BaseURL   string
	HTTP      *http.Client
	now       func() time.Time
}

// NewCloudinary returns nil when any credential is missing, so callers can
// treat a nil Uploader as "not configured".
func NewCloudinary(cloudName, apiKey, apiSecret, folder string) *Cloudinary {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil
	}
	return &Cloudinary{
		CloudName: cloudName,
		APIKey:    apiKey,
		APISecret: apiSecret,
		Folder:    folder,
		BaseURL:   "https://api.cloudinary.com",
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		now:       time.Now,
	}
}

// UploadBytes uploads raw image bytes as a multipart file part.
func (c *Cloudinary) UploadBytes(ctx context.Context, data []byte, filename string) (Result, error) {
	if len(data) == 0 {
		return Result{}, ErrEmpty
	}
	return c.upload(ctx, func(w *multipart.Writer) error {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			return err
		}
		_, err = io.Copy(part, bytes.NewReader(data))
		return err
	})
}

// UploadDataURL uploads a "data:image/...;base64," URL, which Cloudinary
// accepts directly in the file field.
func (c *Cloudinary) UploadDataURL(ctx context.Context, dataURL string) (Result, error) {
	dataURL = strings.TrimSpace(dataURL)
	if dataURL == "" {
		return Result{}, ErrEmpty
	}
	if !strings.HasPrefix(dataURL, "data:image/") {
		return Result{}, fmt.Errorf("attachment: expected an image data URL")
	}
	return c.upload(ctx, func(w *multipart.Writer) error {
		return w.WriteField("file", dataURL)
	})
}

func (c *Cloudinary) upload(ctx context.Context, writeFile func(*multipart.Writer) error) (Result, error) {
	params := map[string]string{
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	if c.Folder != "" {
		params["folder"] = c.Folder
	}
	params["signature"] = Sign(params, c.APISecret)
	params["api_key"] = c.APIKey

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		if err := w.WriteField(k, v); err != nil {
			return Result{}, fmt.Errorf("attachment: build form: %w", err)
		}
	}
	if err := writeFile(w); err != nil {
		return Result{}, fmt.Errorf("attachment: write file: %w", err)
	}
	if err := w.Close(); err != nil {
		return Result{}, fmt.Errorf("attachment: build form: %w", err)
	}

	url := fmt.Sprintf("%s/v1_1/%s/image/upload", strings.TrimRight(c.BaseURL, "/"), c.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return Result{}, fmt.Errorf("attachment: create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("attachment: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("attachment: upload failed (%d): %s", resp.StatusCode, string(body))
	}
	var res Result
	if err := json.Unmarshal(body, &res); err != nil {
		return Result{}, fmt.Errorf("attachment: decode response: %w", err)
	}
	return res, nil
}

// Sign computes Cloudinary's request signature: the sorted k=v pairs joined
// by '&' with the secret appended, SHA-1 hex encoded. file, api_key and
// resource_type are never signed.
func Sign(params map[string]string, secret string) string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		switch k {
		case "file", "api_key", "resource_type", "signature":
			continue
		}
		if v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}

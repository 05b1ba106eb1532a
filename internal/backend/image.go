package backend

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"
)

const defaultImageMIME = "image/png"

// maxImageBytes ограничивает размер загружаемого по URL изображения.
const maxImageBytes = 20 << 20

var dataURIRe = regexp.MustCompile(`^data:(image/[a-zA-Z+]+);base64,(.+)$`)

// Image это декодированное входное изображение.
type Image struct {
	MIMEType string
	Data     []byte
}

// DataURI собирает data URI из mime и байтов.
func DataURI(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = defaultImageMIME
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ImageLoader превращает ссылку на изображение в байты.
//
// Поддерживаются:
//   - data URI вида data:image/png;base64,...
//   - http(s) URL
//   - «голый» base64 (mime считается image/png)
type ImageLoader struct {
	client *http.Client
}

// NewImageLoader создаёт загрузчик. Если client == nil, используется http.DefaultClient.
func NewImageLoader(client *http.Client) *ImageLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &ImageLoader{client: client}
}

// Load декодирует или скачивает изображение.
func (l *ImageLoader) Load(ctx context.Context, ref string) (Image, error) {
	if m := dataURIRe.FindStringSubmatch(ref); m != nil {
		data, err := base64.StdEncoding.DecodeString(m[2])
		if err != nil {
			return Image{}, fmt.Errorf("decode data uri: %w", err)
		}
		return Image{MIMEType: m[1], Data: data}, nil
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return l.fetch(ctx, ref)
	}

	payload := ref
	if i := strings.Index(ref, ";base64,"); strings.HasPrefix(ref, "data:") && i >= 0 {
		payload = ref[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("decode image: %w", err)
	}
	return Image{MIMEType: defaultImageMIME, Data: data}, nil
}

func (l *ImageLoader) fetch(ctx context.Context, url string) (Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Image{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Image{}, fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return Image{}, fmt.Errorf("read image: %w", err)
	}

	mimeType := defaultImageMIME
	if ct, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && strings.HasPrefix(ct, "image/") {
		mimeType = ct
	}
	return Image{MIMEType: mimeType, Data: data}, nil
}

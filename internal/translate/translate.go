// Package translate normalizes non-English prompts to English through the
// MyMemory translation API.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	DefaultURL      = "https://api.mymemory.translated.net/get"
	DefaultLangPair = "es|en"
	DefaultTimeout  = 10 * time.Second

	// MaxInputLength is the longest text, in characters, sent for translation.
	MaxInputLength = 490
)

var ErrTranslationFailed = errors.New("translation failed")

type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

type Options struct {
	URL        string
	LangPair   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// MyMemory is a Translator backed by api.mymemory.translated.net.
type MyMemory struct {
	url        string
	langPair   string
	httpClient *http.Client
}

func NewMyMemory(opts Options) *MyMemory {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.LangPair == "" {
		opts.LangPair = DefaultLangPair
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &MyMemory{url: opts.URL, langPair: opts.LangPair, httpClient: httpClient}
}

type apiResponse struct {
	ResponseData *struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
}

func (m *MyMemory) Translate(ctx context.Context, text string) (string, error) {
	q := url.Values{}
	q.Set("q", text)
	q.Set("langpair", m.langPair)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslationFailed, err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrTranslationFailed, resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: invalid response: %v", ErrTranslationFailed, err)
	}
	if body.ResponseData == nil || body.ResponseData.TranslatedText == "" {
		return "", fmt.Errorf("%w: missing responseData.translatedText", ErrTranslationFailed)
	}
	return body.ResponseData.TranslatedText, nil
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// Prompt truncates text to MaxInputLength and, when it contains non-ASCII
// characters, translates it with t. A nil translator or any translation
// failure yields the truncated text.
func Prompt(ctx context.Context, t Translator, text string, logger *zap.Logger) string {
	if logger == nil {
		logger = zap.NewNop()
	}
	text = Truncate(text, MaxInputLength)
	if t == nil || isASCII(text) {
		return text
	}

	logger.Info("translating prompt", zap.String("prompt", text))
	translated, err := t.Translate(ctx, text)
	if err != nil {
		logger.Error("translation failed, using original prompt", zap.Error(err))
		return text
	}
	translated = strings.TrimSpace(translated)
	if translated == "" {
		return text
	}
	logger.Info("prompt translated", zap.String("translated", translated))
	return translated
}

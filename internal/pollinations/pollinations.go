// Package pollinations builds request URLs and query strings for the
// Pollinations image API.
package pollinations

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/manash/pollgen/pkg/models"
)

const DefaultBaseURL = "https://image.pollinations.ai"

type Endpoint struct {
	BaseURL string
}

func NewEndpoint(baseURL string) Endpoint {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return Endpoint{BaseURL: strings.TrimRight(baseURL, "/")}
}

// PromptURL returns the generation URL for an already translated prompt.
// The prompt is form-encoded, so spaces become "+".
func (e Endpoint) PromptURL(prompt string) string {
	return e.BaseURL + "/prompt/" + url.QueryEscape(prompt)
}

func (e Endpoint) ModelsURL() string {
	return e.BaseURL + "/models"
}

func GenerateQuery(p models.Params) url.Values {
	q := url.Values{}
	q.Set("width", strconv.Itoa(p.Width))
	q.Set("height", strconv.Itoa(p.Height))
	q.Set("model", p.Model)
	q.Set("seed", strconv.FormatInt(p.Seed, 10))
	q.Set("nologo", strconv.FormatBool(p.NoLogo))
	return q
}

// EditQuery builds the query for one edit attempt. The reference image goes
// under the attempt's parameter key and the model comes from the attempt,
// not from p.
func EditQuery(attempt models.EditAttempt, imageURL string, p models.Params) url.Values {
	q := GenerateQuery(p)
	q.Set("model", attempt.ModelName)
	q.Set(attempt.ParameterKey, imageURL)
	return q
}

// AuthHeader returns a bearer header, or nil when token is empty.
func AuthHeader(token string) http.Header {
	if token == "" {
		return nil
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

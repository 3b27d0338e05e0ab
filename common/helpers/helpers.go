package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// HTTPError is returned by RequestJSON for non-2xx responses so callers can branch on the status.
type HTTPError struct {
	Service    string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("non-2xx response from %s: [%s] %s", e.Service, e.Status, e.Body)
}

// Request describes one JSON (or form/multipart) call to an external REST API.
type Request struct {
	Service     string
	Method      string
	URL         string
	Headers     map[string]string
	Body        any
	RawBody     io.Reader
	ContentType string
	Client      *http.Client
}

var defaultClient = &http.Client{Timeout: 30 * time.Second}

// RequestJSON performs the request and decodes a JSON response into out (which may be nil).
func RequestJSON(ctx context.Context, req Request, out any) error {
	var body io.Reader
	contentType := req.ContentType
	switch {
	case req.RawBody != nil:
		body = req.RawBody
	case req.Body != nil:
		requestBody, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("error marshalling %s request:\n>>> %w", req.Service, err)
		}
		body = bytes.NewBuffer(requestBody)
		if contentType == "" {
			contentType = "application/json"
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	request, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return fmt.Errorf("error creating %s request:\n>>> %w", req.Service, err)
	}
	request.Header.Set("Accept", "application/json")
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	for key, val := range req.Headers {
		if val != "" {
			request.Header.Set(key, val)
		}
	}

	client := req.Client
	if client == nil {
		client = defaultClient
	}
	response, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("error requesting %s:\n>>> %w", req.Service, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("error reading %s response:\n>>> %w", req.Service, err)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return &HTTPError{
			Service:    req.Service,
			StatusCode: response.StatusCode,
			Status:     response.Status,
			Body:       string(responseBody),
		}
	}

	if out == nil || len(responseBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("invalid response format from %s: [%s] %s\n>>> %w", req.Service, response.Status, responseBody, err)
	}
	return nil
}

// Download fetches a URL and returns its body, used to move generated images between services.
func Download(ctx context.Context, url string) ([]byte, string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("error creating download request:\n>>> %w", err)
	}
	response, err := defaultClient.Do(request)
	if err != nil {
		return nil, "", fmt.Errorf("error downloading %s:\n>>> %w", url, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("non-200 response downloading %s: [%s]", url, response.Status)
	}
	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, "", fmt.Errorf("error reading download %s:\n>>> %w", url, err)
	}
	return data, response.Header.Get("Content-Type"), nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidationError carries a message that is safe to return to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// DecodeAndValidate decodes a JSON request body into v and runs its `validate` tags.
func DecodeAndValidate(body string, v any) error {
	if strings.TrimSpace(body) == "" {
		return &ValidationError{Message: "Empty request body"}
	}
	decoder := json.NewDecoder(strings.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return &ValidationError{Message: fmt.Sprintf("Invalid JSON in request body: %v", err)}
	}
	if err := Validator().Struct(v); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			msgs := make([]string, len(fieldErrors))
			for i, fe := range fieldErrors {
				msgs[i] = fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
			}
			return &ValidationError{Message: "Invalid request: " + strings.Join(msgs, ", ")}
		}
		return fmt.Errorf("error validating request:\n>>> %w", err)
	}
	return nil
}

func TempEnvVars(vars map[string]string) (reset func()) {
	current := map[string]string{}
	for key, val := range vars {
		current[key] = os.Getenv(key)
		os.Setenv(key, val)
	}
	return func() {
		for key, val := range current {
			os.Setenv(key, val)
		}
	}
}

func StringPtr(s string) *string {
	return &s
}

// NormalizeString removes diacritics/accents, e.g. "Café" becomes "Cafe".
func NormalizeString(s string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return "", fmt.Errorf("error normalizing string\nERROR=%w", err)
	}
	return result, nil
}

// CompareStrings checks if two strings are equal, ignoring case and accents.
func CompareStrings(s1, s2 string) (bool, error) {
	n1, err := NormalizeString(s1)
	if err != nil {
		return false, fmt.Errorf("could not normalize s1\nERROR=%w", err)
	}
	n2, err := NormalizeString(s2)
	if err != nil {
		return false, fmt.Errorf("could not normalize s2\nERROR=%w", err)
	}
	return strings.EqualFold(n1, n2), nil
}

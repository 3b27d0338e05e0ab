package helpers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			if r.Header.Get("X-Api-Key") != "key" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			body, _ := io.ReadAll(r.Body)
			w.Write([]byte(`{"echo":` + string(body) + `,"ct":"` + r.Header.Get("Content-Type") + `"}`))
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		case "/broken":
			w.Write([]byte(`{not json`))
		default:
			w.WriteHeader(http.StatusTeapot)
			w.Write([]byte(`short and stout`))
		}
	}))
	defer server.Close()

	tests := []struct {
		Title         string
		Request       Request
		ExpectedError string
		ExpectedCode  int
		Check         func(t *testing.T, out map[string]any)
	}{
		{
			Title: "OK with JSON body",
			Request: Request{
				Service: "Test", Method: "POST", URL: server.URL + "/ok",
				Headers: map[string]string{"x-api-key": "key"},
				Body:    map[string]any{"a": 1},
			},
			Check: func(t *testing.T, out map[string]any) {
				if out["ct"] != "application/json" {
					t.Fatalf("expected JSON content type, got %v", out["ct"])
				}
				echo, _ := out["echo"].(map[string]any)
				if echo["a"] != 1.0 {
					t.Fatalf("body was not sent: %v", out)
				}
			},
		},
		{
			Title:        "Missing header",
			Request:      Request{Service: "Test", URL: server.URL + "/ok"},
			ExpectedCode: http.StatusUnauthorized,
		},
		{
			Title:   "Empty response",
			Request: Request{Service: "Test", URL: server.URL + "/empty"},
		},
		{
			Title:         "Invalid JSON",
			Request:       Request{Service: "Test", URL: server.URL + "/broken"},
			ExpectedError: "invalid response format from Test",
		},
		{
			Title:         "Non 2xx",
			Request:       Request{Service: "Test", URL: server.URL + "/teapot"},
			ExpectedError: "non-2xx response from Test: [418 I'm a teapot] short and stout",
			ExpectedCode:  http.StatusTeapot,
		},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			out := map[string]any{}
			err := RequestJSON(context.Background(), tt.Request, &out)
			if tt.ExpectedCode != 0 {
				var httpErr *HTTPError
				if !errors.As(err, &httpErr) || httpErr.StatusCode != tt.ExpectedCode {
					t.Fatalf("expected HTTP error %d, got: %v", tt.ExpectedCode, err)
				}
			}
			if tt.ExpectedError != "" {
				if err == nil || !strings.Contains(err.Error(), tt.ExpectedError) {
					t.Fatalf("expected '%s' in error, but got: %v", tt.ExpectedError, err)
				}
				return
			}
			if tt.ExpectedCode == 0 && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.Check != nil {
				tt.Check(t, out)
			}
		})
	}
}

type sampleRequest struct {
	Name  string `json:"name" validate:"required,min=3"`
	Count int    `json:"count" validate:"gte=1,lte=5"`
	Kind  string `json:"kind" validate:"omitempty,oneof=a b"`
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		Title         string
		Body          string
		ExpectedError string
	}{
		{Title: "OK", Body: `{"name":"abc","count":2}`},
		{Title: "Empty body", Body: "  ", ExpectedError: "Empty request body"},
		{Title: "Invalid JSON", Body: `{"name":`, ExpectedError: "Invalid JSON in request body"},
		{Title: "Unknown field", Body: `{"name":"abc","count":2,"extra":true}`, ExpectedError: "unknown field"},
		{Title: "Missing required", Body: `{"count":2}`, ExpectedError: "name failed on required"},
		{Title: "Out of range", Body: `{"name":"abc","count":9}`, ExpectedError: "count failed on lte"},
		{Title: "Not one of", Body: `{"name":"abc","count":1,"kind":"c"}`, ExpectedError: "kind failed on oneof"},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			var req sampleRequest
			err := DecodeAndValidate(tt.Body, &req)
			if tt.ExpectedError == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected a validation error, got: %v", err)
			}
			if !strings.Contains(err.Error(), tt.ExpectedError) {
				t.Fatalf("expected '%s' in error, but got: %v", tt.ExpectedError, err)
			}
		})
	}
}

func TestNormalizeString(t *testing.T) {
	tests := []struct {
		Title    string
		Input    string
		Expected string
	}{
		{Title: "Accents", Input: "Café crème", Expected: "Cafe creme"},
		{Title: "Tilde", Input: "Señor Piña", Expected: "Senor Pina"},
		{Title: "Plain", Input: "plain text", Expected: "plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			res, err := NormalizeString(tt.Input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res != tt.Expected {
				t.Fatalf("expected %q, got %q", tt.Expected, res)
			}
		})
	}
}

func TestCompareStrings(t *testing.T) {
	tests := []struct {
		Title    string
		A, B     string
		Expected bool
	}{
		{Title: "Case", A: "SHIPPED", B: "shipped", Expected: true},
		{Title: "Accents", A: "Québec", B: "quebec", Expected: true},
		{Title: "Different", A: "shipped", B: "delivered", Expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			res, err := CompareStrings(tt.A, tt.B)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res != tt.Expected {
				t.Fatalf("expected %v comparing %q and %q", tt.Expected, tt.A, tt.B)
			}
		})
	}
}

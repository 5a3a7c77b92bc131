package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/HSouheill/evently_backend/config"
	"github.com/HSouheill/evently_backend/models"
)

const (
	fapshiSandboxURL = "https://sandbox.fapshi.com"
	fapshiLiveURL    = "https://live.fapshi.com"
)

// ProviderError is returned when the payout provider rejects a request.
// Message is the provider's human-readable explanation, if it sent one.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("fapshi API error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("fapshi API error (%d)", e.StatusCode)
}

// FapshiService handles interactions with the Fapshi mobile money API
type FapshiService struct {
	baseURL string
	apiUser string
	apiKey  string
	debug   bool
	client  *http.Client
}

// NewFapshiService creates a new Fapshi service instance
func NewFapshiService() *FapshiService {
	baseURL := fapshiLiveURL
	if os.Getenv("FAPSHI_ENV") == "sandbox" {
		baseURL = fapshiSandboxURL
	}
	baseURL = config.GetEnv("FAPSHI_BASE_URL", baseURL)

	apiUser := os.Getenv("FAPSHI_API_USER")
	apiKey := os.Getenv("FAPSHI_API_KEY")

	if apiUser == "" || apiKey == "" {
		log.Printf("WARNING: Fapshi credentials not fully configured:")
		if apiUser == "" {
			log.Printf("  - FAPSHI_API_USER is missing")
		}
		if apiKey == "" {
			log.Printf("  - FAPSHI_API_KEY is missing")
		}
	} else {
		log.Printf("Fapshi Service Configuration:")
		log.Printf("  Base URL: %s", baseURL)
		log.Printf("  API user: %s", apiUser)
		log.Printf("  API key: [CONFIGURED]")
	}

	return NewFapshiServiceWithClient(baseURL, apiUser, apiKey, &http.Client{Timeout: 30 * time.Second})
}

// NewFapshiServiceWithClient builds a client against an explicit endpoint
func NewFapshiServiceWithClient(baseURL, apiUser, apiKey string, client *http.Client) *FapshiService {
	return &FapshiService{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiUser: apiUser,
		apiKey:  apiKey,
		debug:   os.Getenv("FAPSHI_DEBUG") == "true",
		client:  client,
	}
}

// makeRequest performs an HTTP request to the Fapshi API and decodes the JSON body into out
func (s *FapshiService) makeRequest(ctx context.Context, method, endpoint string, payload interface{}, out interface{}) error {
	if s.apiUser == "" || s.apiKey == "" {
		return fmt.Errorf("missing Fapshi credentials. Please set FAPSHI_API_USER and FAPSHI_API_KEY environment variables")
	}

	url := s.baseURL + endpoint

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apiuser", s.apiUser)
	req.Header.Set("apikey", s.apiKey)

	if s.debug {
		log.Printf("Fapshi API Request: %s %s", method, url)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if s.debug {
		log.Printf("Fapshi API Response (%d): %s", resp.StatusCode, string(respBody))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		provErr := &ProviderError{StatusCode: resp.StatusCode}
		var errBody struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &errBody) == nil {
			provErr.Message = errBody.Message
		}
		log.Printf("Fapshi API Error Details: Status=%d, Message=%q", resp.StatusCode, provErr.Message)
		return provErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Payout sends money to a mobile money account
func (s *FapshiService) Payout(ctx context.Context, req models.PayoutRequest) (*models.PayoutResult, error) {
	var raw map[string]interface{}
	if err := s.makeRequest(ctx, http.MethodPost, "/payout", req, &raw); err != nil {
		return nil, err
	}

	transID, _ := raw["transId"].(string)
	if transID == "" {
		msg, _ := raw["message"].(string)
		return nil, &ProviderError{StatusCode: http.StatusOK, Message: msg}
	}

	result := &models.PayoutResult{TransID: transID, Raw: raw, DateInitiated: time.Now()}
	if dateStr, ok := raw["dateInitiated"].(string); ok {
		if t, err := parseProviderDate(dateStr); err == nil {
			result.DateInitiated = t
		}
	}
	return result, nil
}

// Balance returns the current payout account balance
func (s *FapshiService) Balance(ctx context.Context) (float64, error) {
	var resp models.PayoutResponse
	if err := s.makeRequest(ctx, http.MethodGet, "/balance", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

func parseProviderDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

package calcengine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"interestbatch/service"

	log "github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// Client calls the interest calculation engine over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a calculation engine client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type accrualResponse struct {
	Success            bool   `json:"success"`
	InterestCalculated int64  `json:"interestCalculated"`
	CalculationDate    string `json:"calculationDate"`
	ErrorMessage       string `json:"errorMessage"`
}

type postingResponse struct {
	Success        bool   `json:"success"`
	InterestPosted int64  `json:"interestPosted"`
	TaxAmount      int64  `json:"taxAmount"`
	PostingDate    string `json:"postingDate"`
	ErrorMessage   string `json:"errorMessage"`
}

// CalculateDailyInterest asks the engine to accrue one day of interest for an account
func (c *Client) CalculateDailyInterest(ctx context.Context, accountID string) (*service.AccrualOutcome, error) {
	var resp accrualResponse
	if err := c.post(ctx, accountID, "accrue", &resp); err != nil {
		return nil, err
	}

	calculationDate, err := parseDate(resp.CalculationDate)
	if err != nil {
		return nil, fmt.Errorf("invalid calculationDate for account %s: %w", accountID, err)
	}

	return &service.AccrualOutcome{
		Success:            resp.Success,
		InterestCalculated: resp.InterestCalculated,
		CalculationDate:    calculationDate,
		ErrorMessage:       resp.ErrorMessage,
	}, nil
}

// PostInterest asks the engine to credit accrued interest to an account
func (c *Client) PostInterest(ctx context.Context, accountID string) (*service.PostingOutcome, error) {
	var resp postingResponse
	if err := c.post(ctx, accountID, "post", &resp); err != nil {
		return nil, err
	}

	postingDate, err := parseDate(resp.PostingDate)
	if err != nil {
		return nil, fmt.Errorf("invalid postingDate for account %s: %w", accountID, err)
	}

	return &service.PostingOutcome{
		Success:        resp.Success,
		InterestPosted: resp.InterestPosted,
		TaxAmount:      resp.TaxAmount,
		PostingDate:    postingDate,
		ErrorMessage:   resp.ErrorMessage,
	}, nil
}

// HealthCheck checks if the calculation engine is reachable
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("calculation engine unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, accountID, action string, out any) error {
	endpoint := fmt.Sprintf("%s/accounts/%s/%s", c.baseURL, url.PathEscape(accountID), action)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call calculation engine: %w", err)
	}
	defer resp.Body.Close()

	log.WithFields(log.Fields{
		"accountID": accountID,
		"action":    action,
		"status":    resp.StatusCode,
		"elapsed":   time.Since(start),
	}).Debug("Calculation engine responded")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("calculation engine returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode calculation engine response: %w", err)
	}
	return nil
}

// parseDate accepts a calendar date or a full timestamp; empty means unknown
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

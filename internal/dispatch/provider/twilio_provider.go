package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// TwilioCarrier is the per-message HTTP transport: the carrier has no
// bulk endpoint, so the adapter issues one call per destination and
// isolates failures so one bad number cannot mark its siblings failed.
// Twilio does not report cost at submission time, so Cost stays unset.
type TwilioCarrier struct {
	logger      *slog.Logger
	httpClient  *http.Client
	baseURL     string
	accountSID  string
	authToken   string
	fromNumber  string
	concurrency int
}

func NewTwilioCarrier(logger *slog.Logger, accountSID, authToken, fromNumber string, concurrency int, httpClient *http.Client) *TwilioCarrier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &TwilioCarrier{
		logger:      logger.With("provider", "twilio"),
		httpClient:  httpClient,
		baseURL:     "https://api.twilio.com",
		accountSID:  accountSID,
		authToken:   authToken,
		fromNumber:  fromNumber,
		concurrency: concurrency,
	}
}

type twilioMessageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type twilioErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *TwilioCarrier) Name() string {
	return "twilio"
}

// SendBatch fans the batch out destination by destination. Outcomes are
// written at each destination's input index, so the result order always
// echoes the input order regardless of the concurrency bound.
func (c *TwilioCarrier) SendBatch(ctx context.Context, destinations []string, body string) ([]Outcome, error) {
	outcomes := make([]Outcome, len(destinations))

	if c.concurrency <= 1 {
		for i, dest := range destinations {
			outcomes[i] = c.sendOne(ctx, dest, body)
		}
		return outcomes, nil
	}

	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup
	for i, dest := range destinations {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, dest string) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = c.sendOne(ctx, dest, body)
		}(i, dest)
	}
	wg.Wait()
	return outcomes, nil
}

func (c *TwilioCarrier) sendOne(ctx context.Context, destination, body string) Outcome {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)

	form := url.Values{}
	form.Set("To", destination)
	form.Set("From", c.fromNumber)
	form.Set("Body", body)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return failedOutcome(destination, fmt.Sprintf("failed to create twilio request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(c.accountSID, c.authToken)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.WarnContext(ctx, "twilio request failed", "recipient", destination, "error", err)
		return failedOutcome(destination, fmt.Sprintf("twilio request failed: %v", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return failedOutcome(destination, fmt.Sprintf("twilio response read failed (status %d): %v", httpResp.StatusCode, err))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var twErr twilioErrorResponse
		errMsg := fmt.Sprintf("twilio API error: status %d", httpResp.StatusCode)
		if json.Unmarshal(respBody, &twErr) == nil && twErr.Message != "" {
			errMsg = fmt.Sprintf("twilio API error: status %d, code %d: %s", httpResp.StatusCode, twErr.Code, twErr.Message)
		}
		c.logger.WarnContext(ctx, "twilio rejected message", "recipient", destination, "status_code", httpResp.StatusCode)
		return failedOutcome(destination, errMsg)
	}

	// A 2xx whose envelope does not parse, or that carries no message
	// sid, is a transport failure for this destination: without a
	// carrier-assigned id the send cannot be counted as sent.
	var msgResp twilioMessageResponse
	if err := json.Unmarshal(respBody, &msgResp); err != nil {
		c.logger.WarnContext(ctx, "twilio returned malformed response",
			"recipient", destination, "status_code", httpResp.StatusCode, "error", err)
		return failedOutcome(destination, fmt.Sprintf("twilio returned malformed response (status %d)", httpResp.StatusCode))
	}
	if msgResp.SID == "" {
		c.logger.WarnContext(ctx, "twilio response missing message sid",
			"recipient", destination, "status_code", httpResp.StatusCode)
		return failedOutcome(destination, fmt.Sprintf("twilio response missing message sid (status %d)", httpResp.StatusCode))
	}

	return sentOutcome(destination, msgResp.SID, nil)
}

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
	"time"
)

// KavenegarCarrier is the bulk HTTP transport: one API call carries the
// whole destination list and the response echoes one entry per
// destination, including the carrier-reported cost.
type KavenegarCarrier struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
	sender     string
}

func NewKavenegarCarrier(logger *slog.Logger, baseURL, apiKey, sender string, httpClient *http.Client) *KavenegarCarrier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &KavenegarCarrier{
		logger:     logger.With("provider", "kavenegar"),
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		sender:     sender,
	}
}

// kavenegarResponse mirrors the carrier's send.json envelope.
type kavenegarResponse struct {
	Return  kavenegarReturn  `json:"return"`
	Entries []kavenegarEntry `json:"entries"`
}

type kavenegarReturn struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type kavenegarEntry struct {
	MessageID  int64   `json:"messageid"`
	Status     int     `json:"status"`
	StatusText string  `json:"statustext"`
	Receptor   string  `json:"receptor"`
	Cost       float64 `json:"cost"`
}

// Carrier-side per-entry statuses that mean the message will not go out.
// Everything else (queued, scheduled, sent to telecom) counts as sent.
func kavenegarEntryFailed(status int) bool {
	switch status {
	case 6, 11, 13, 14, 100:
		return true
	}
	return false
}

func (c *KavenegarCarrier) Name() string {
	return "kavenegar"
}

// SendBatch issues one call for the whole batch. If that call fails
// outright (network, auth, malformed response) every destination is
// marked failed with the transport error text; there is no partial-batch
// retry at this layer.
func (c *KavenegarCarrier) SendBatch(ctx context.Context, destinations []string, body string) ([]Outcome, error) {
	endpoint := fmt.Sprintf("%s/v1/%s/sms/send.json", c.baseURL, c.apiKey)

	form := url.Values{}
	form.Set("receptor", strings.Join(destinations, ","))
	form.Set("sender", c.sender)
	form.Set("message", body)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create kavenegar request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.ErrorContext(ctx, "kavenegar request failed", "error", err, "recipients", len(destinations))
		return failAll(destinations, fmt.Sprintf("kavenegar request failed: %v", err)), nil
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to read kavenegar response", "status_code", httpResp.StatusCode, "error", err)
		return failAll(destinations, fmt.Sprintf("kavenegar response read failed (status %d): %v", httpResp.StatusCode, err)), nil
	}

	var resp kavenegarResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		c.logger.ErrorContext(ctx, "failed to parse kavenegar response", "status_code", httpResp.StatusCode, "error", err)
		return failAll(destinations, fmt.Sprintf("kavenegar returned malformed response (status %d)", httpResp.StatusCode)), nil
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 || resp.Return.Status != 200 {
		errMsg := fmt.Sprintf("kavenegar API error: status %d", resp.Return.Status)
		if resp.Return.Message != "" {
			errMsg = fmt.Sprintf("kavenegar API error: status %d, message: %s", resp.Return.Status, resp.Return.Message)
		}
		c.logger.WarnContext(ctx, "kavenegar rejected batch", "http_status", httpResp.StatusCode,
			"api_status", resp.Return.Status, "api_message", resp.Return.Message)
		return failAll(destinations, errMsg), nil
	}

	// Match entries by echoed receptor first; destinations the carrier
	// did not echo back verbatim consume the remaining entries in
	// order. Each entry is attributed to at most one destination.
	byReceptor := make(map[string]int, len(resp.Entries))
	for i, entry := range resp.Entries {
		if r := normalizeReceptor(entry.Receptor); r != "" {
			byReceptor[r] = i
		}
	}

	matched := make([]int, len(destinations))
	consumed := make([]bool, len(resp.Entries))
	for i, dest := range destinations {
		matched[i] = -1
		if idx, ok := byReceptor[normalizeReceptor(dest)]; ok && !consumed[idx] {
			matched[i] = idx
			consumed[idx] = true
		}
	}

	cursor := 0
	nextUnconsumed := func() int {
		for cursor < len(resp.Entries) {
			if !consumed[cursor] {
				consumed[cursor] = true
				idx := cursor
				cursor++
				return idx
			}
			cursor++
		}
		return -1
	}

	outcomes := make([]Outcome, len(destinations))
	for i, dest := range destinations {
		idx := matched[i]
		if idx == -1 {
			idx = nextUnconsumed()
		}
		if idx == -1 {
			outcomes[i] = failedOutcome(dest, "kavenegar response missing entry for recipient")
			continue
		}
		entry := resp.Entries[idx]
		if kavenegarEntryFailed(entry.Status) {
			errMsg := entry.StatusText
			if errMsg == "" {
				errMsg = fmt.Sprintf("kavenegar entry status %d", entry.Status)
			}
			outcomes[i] = failedOutcome(dest, errMsg)
			continue
		}
		cost := entry.Cost
		outcomes[i] = sentOutcome(dest, fmt.Sprintf("%d", entry.MessageID), &cost)
	}

	c.logger.InfoContext(ctx, "kavenegar batch submitted", "recipients", len(destinations))
	return outcomes, nil
}

func normalizeReceptor(r string) string {
	return strings.TrimPrefix(strings.TrimSpace(r), "+")
}

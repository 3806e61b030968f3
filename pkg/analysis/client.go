package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/referral-intake/platform/pkg/common/config"
	"github.com/referral-intake/platform/pkg/common/logger"
	"github.com/referral-intake/platform/pkg/common/models"
	"github.com/referral-intake/platform/pkg/httpclient"
)

// ErrAnalysisFailed wraps every reason a document could not be analysed.
var ErrAnalysisFailed = errors.New("document analysis failed")

const subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

type Options struct {
	Endpoint     string
	APIKey       string
	ModelID      string
	APIVersion   string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Endpoint:     cfg.AnalysisEndpoint,
		APIKey:       cfg.AnalysisAPIKey,
		ModelID:      cfg.AnalysisModelID,
		APIVersion:   cfg.AnalysisAPIVersion,
		PollInterval: cfg.AnalysisPollInterval,
		PollTimeout:  cfg.AnalysisPollTimeout,
	}
}

// Client talks to the Document Intelligence REST API.
type Client struct {
	opts Options
	http *http.Client
}

func NewClient(opts Options, client *http.Client) *Client {
	if client == nil {
		client = httpclient.New(30 * time.Second)
	}
	return &Client{opts: opts, http: client}
}

// Analyze submits document to the custom model and waits for the result.
func (c *Client) Analyze(ctx context.Context, document []byte) (*models.AnalyzeResult, error) {
	opURL, err := c.begin(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	var result *analyzeResult
	err = httpclient.Poll(ctx, c.opts.PollInterval, c.opts.PollTimeout, func(ctx context.Context) (bool, error) {
		op, err := c.fetch(ctx, opURL)
		if err != nil {
			return false, err
		}
		switch op.Status {
		case statusSucceeded:
			if op.AnalyzeResult == nil {
				return false, errors.New("succeeded without a result")
			}
			result = op.AnalyzeResult
			return true, nil
		case statusFailed:
			if op.Error != nil {
				return false, op.Error
			}
			return false, errors.New("operation failed")
		case statusNotStarted, statusRunning:
			return false, nil
		default:
			return false, fmt.Errorf("unexpected operation status %q", op.Status)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	logger.WithFields(map[string]interface{}{
		"model_id":  result.ModelID,
		"documents": len(result.Documents),
		"pages":     len(result.Pages),
	}).Info("document analysed")
	return result.toModel(), nil
}

func (c *Client) analyzeURL() string {
	q := url.Values{}
	q.Set("api-version", c.opts.APIVersion)
	return fmt.Sprintf("%s/formrecognizer/documentModels/%s:analyze?%s",
		strings.TrimRight(c.opts.Endpoint, "/"), url.PathEscape(c.opts.ModelID), q.Encode())
}

func (c *Client) begin(ctx context.Context, document []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.analyzeURL(), bytes.NewReader(document))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(subscriptionKeyHeader, c.opts.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("analyze request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", errors.New("analyze response without Operation-Location")
	}
	return opURL, nil
}

func (c *Client) fetch(ctx context.Context, opURL string) (*operation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(subscriptionKeyHeader, c.opts.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll returned %d", resp.StatusCode)
	}
	var op operation
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return nil, fmt.Errorf("decoding operation: %w", err)
	}
	return &op, nil
}

package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/referral-intake/platform/pkg/common/config"
	"github.com/referral-intake/platform/pkg/common/logger"
	"github.com/referral-intake/platform/pkg/httpclient"
	"github.com/referral-intake/platform/pkg/payload"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// StatusUnreachable is reported when no HTTP status could be obtained.
const StatusUnreachable = http.StatusRequestTimeout

type Options struct {
	Endpoint      string
	TokenEndpoint string
	ClientID      string
	ClientSecret  string
	Timeout       time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Endpoint:      cfg.ReferralEndpoint,
		TokenEndpoint: cfg.ReferralTokenEndpoint,
		ClientID:      cfg.ReferralClientID,
		ClientSecret:  cfg.ReferralClientSecret,
		Timeout:       cfg.ReferralRequestTimeout,
	}
}

// Client submits referral payloads to the downstream API.
type Client struct {
	opts   Options
	tokens oauth2.TokenSource
	http   *http.Client
}

func NewClient(opts Options, client *http.Client) *Client {
	if client == nil {
		client = httpclient.New(opts.Timeout)
	}
	cc := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenEndpoint,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
	return &Client{opts: opts, tokens: cc.TokenSource(tokenCtx), http: client}
}

// Submit posts p and returns the response status. Token or transport
// failures report StatusUnreachable; Submit never fails otherwise.
func (c *Client) Submit(ctx context.Context, p *payload.Value) int {
	log := logger.WithField("endpoint", c.opts.Endpoint)

	token, err := c.tokens.Token()
	if err != nil {
		log.WithError(err).Error("acquiring referral api token")
		return StatusUnreachable
	}

	body, err := json.Marshal(p)
	if err != nil {
		log.WithError(err).Error("encoding referral payload")
		return StatusUnreachable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		log.WithError(err).Error("building referral request")
		return StatusUnreachable
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("authentication", "Bearer "+token.AccessToken)
	req.Header.Set("client_id", c.opts.ClientID)
	req.Header.Set("client_secret", c.opts.ClientSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Error("submitting referral")
		return StatusUnreachable
	}
	defer resp.Body.Close()

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	log.WithField("status", resp.StatusCode).WithField("response", string(msg)).Info("referral submitted")
	return resp.StatusCode
}

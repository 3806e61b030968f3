package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/referral-intake/platform/pkg/common/config"
	"github.com/referral-intake/platform/pkg/httpclient"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

type Options struct {
	GraphEndpoint string
	AADEndpoint   string
	TenantID      string
	ClientID      string
	ClientSecret  string
	From          string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		GraphEndpoint: cfg.GraphEndpoint,
		AADEndpoint:   cfg.AADEndpoint,
		TenantID:      cfg.TenantID,
		ClientID:      cfg.NotifyClientID,
		ClientSecret:  cfg.NotifyClientSecret,
		From:          cfg.NotifyFromAddress,
	}
}

// GraphSender posts mail through Microsoft Graph as the From mailbox.
type GraphSender struct {
	opts   Options
	client *http.Client
}

func NewGraphSender(opts Options, base *http.Client) *GraphSender {
	if base == nil {
		base = httpclient.New(30 * time.Second)
	}
	graph := strings.TrimRight(opts.GraphEndpoint, "/")
	cc := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimRight(opts.AADEndpoint, "/"), opts.TenantID),
		Scopes:       []string{graph + "/.default"},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	return &GraphSender{opts: opts, client: oauth2.NewClient(ctx, cc.TokenSource(ctx))}
}

func (s *GraphSender) Send(ctx context.Context, req SendMailRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding mail: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1.0/users/%s/sendMail", strings.TrimRight(s.opts.GraphEndpoint, "/"), url.PathEscape(s.opts.From))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sendMail returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

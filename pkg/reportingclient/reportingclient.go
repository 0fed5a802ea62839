package reportingclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/pkg/httpclient"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger"
)

type Config struct {
	Disabled   bool   `mapstructure:"disabled"`
	BaseURL    string `mapstructure:"base_url"`
	Name       string `mapstructure:"name"`
	WebsiteURL string `mapstructure:"website_url"`
}

type ReportingClient struct {
	httpClient *httpclient.Client
	config     Config
}

const defaultBaseURL = "https://reporting.crowdfund.network"

func New(config Config) (*ReportingClient, error) {
	baseURL := utils.Default(config.BaseURL, defaultBaseURL)
	httpClient, err := httpclient.New(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "can't create http client")
	}
	if config.Name == "" {
		return nil, errors.New("reporting.name config is required if reporting is enabled")
	}
	return &ReportingClient{
		httpClient: httpClient,
		config:     config,
	}, nil
}

type SubmitSettlementReportPayload struct {
	Type          string    `json:"type"`
	ClientVersion string    `json:"clientVersion"`
	Name          string    `json:"name"`
	WebsiteURL    string    `json:"websiteURL,omitempty"`
	RefundPath    bool      `json:"refundPath"`
	Cleared       bool      `json:"cleared"`
	Commands      int       `json:"commands"`
	ReportedAt    time.Time `json:"reportedAt"`
}

// SubmitSettlementReport reports one settlement step to the reporting
// service. Failures are logged, not fatal; settlement must not depend on
// the reporting endpoint being up.
func (r *ReportingClient) SubmitSettlementReport(ctx context.Context, payload SubmitSettlementReportPayload) error {
	payload.Name = r.config.Name
	payload.WebsiteURL = r.config.WebsiteURL
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "can't marshal payload")
	}
	resp, err := r.httpClient.Post(ctx, "/v1/report/settlement", httpclient.RequestOptions{
		Body: body,
	})
	if err != nil {
		return errors.Wrap(err, "can't send request")
	}
	if resp.StatusCode() >= 400 {
		logger.WarnContext(ctx, "failed to submit settlement report", slog.Any("payload", payload), slog.Any("responseBody", resp.Body()))
		return nil
	}
	logger.DebugContext(ctx, "settlement report submitted", slog.Any("payload", payload))
	return nil
}

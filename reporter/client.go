package reporter

import (
	"bytes"
	"context"
	"crypto/tls"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/johnstarich/replayer/redactor"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTokenTTL       = 50 * time.Minute
	defaultRequestTimeout = 10 * time.Second
	tokenKey              = "token"
	authScheme            = "AR-JWT "
	maxErrorBody          = 512
)

// ClientConfig configures a ticketing system Client
type ClientConfig struct {
	AuthURL  string
	APIURL   string
	Username string
	Password redactor.String
	// TokenTTL is how long an issued token is reused. Defaults to 50 minutes.
	TokenTTL time.Duration
	// UploadsPerSecond throttles uploads. Zero disables throttling.
	UploadsPerSecond float64
	// InsecureSkipVerify disables TLS certificate checks, for self-signed ticketing servers
	InsecureSkipVerify bool
	Timeout            time.Duration
	Logger             *zap.Logger
}

// Client uploads reports to the ticketing system's REST API
type Client struct {
	config  ClientConfig
	http    *http.Client
	tokens  *cache.Cache
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a Client. Tokens are requested lazily on the first Send.
func NewClient(config ClientConfig) *Client {
	if config.TokenTTL <= 0 {
		config.TokenTTL = defaultTokenTTL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultRequestTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if config.UploadsPerSecond > 0 {
		limit = rate.Limit(config.UploadsPerSecond)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // nolint:gosec // only when configured for self-signed servers
	}
	return &Client{
		config:  config,
		http:    &http.Client{Transport: transport, Timeout: config.Timeout},
		tokens:  cache.New(config.TokenTTL, config.TokenTTL/5+1),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Token returns a cached token, or exchanges the configured credentials for a new one
func (c *Client) Token(ctx context.Context) (string, error) {
	if token, found := c.tokens.Get(tokenKey); found {
		return token.(string), nil
	}
	c.logger.Info("Requesting ticketing system token")
	form := url.Values{}
	form.Set("username", c.config.Username)
	form.Set("password", c.config.Password.Reveal())
	req, err := http.NewRequest(http.MethodPost, c.config.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, err := c.do(req)
	if err != nil {
		return "", errors.Wrap(err, "Failed to get token")
	}
	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", errors.New("Failed to get token: empty response")
	}
	c.tokens.SetDefault(tokenKey, token)
	return token, nil
}

// Send uploads the report's allow-listed fields
func (c *Client) Send(ctx context.Context, report Report) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}
	payload, err := report.payload()
	if err != nil {
		return err
	}
	if ce := c.logger.Check(zap.DebugLevel, "Uploading report"); ce != nil {
		ce.Write(zap.String("test", report.TestName), zap.ByteString("payload", payload))
	}

	req, err := http.NewRequest(http.MethodPost, c.config.APIURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authScheme+token)
	if _, err := c.do(req); err != nil {
		var status statusError
		if errors.As(err, &status) && status.Code == http.StatusUnauthorized {
			c.tokens.Delete(tokenKey)
		}
		return errors.Wrap(err, "Failed to upload report")
	}
	c.logger.Info("Report uploaded", zap.String("test", report.TestName), zap.String("run", report.TestRunId))
	return nil
}

type statusError struct {
	Code int
	Body string
}

func (s statusError) Error() string {
	if s.Body == "" {
		return http.StatusText(s.Code)
	}
	return http.StatusText(s.Code) + ": " + s.Body
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := ioutil.ReadAll(resp.Body)
	if closeErr := resp.Body.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		text := strings.TrimSpace(string(body))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return nil, statusError{Code: resp.StatusCode, Body: text}
	}
	return body, nil
}

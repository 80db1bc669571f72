// Package verify submits deployed contracts to an Etherscan-compatible
// explorer for source verification.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crossrealm/deployer/configs"
	"github.com/ethereum/go-ethereum/common"
)

const (
	// DefaultBaseURL is the Core mainnet explorer API.
	DefaultBaseURL = "https://api.scan.coredao.org/api"
	DefaultTimeout = 30 * time.Second

	codeFormatStandardJSON = "solidity-standard-json-input"
)

var (
	ErrNoAPIKey = errors.New("explorer API key is not configured")
	// ErrVerificationFailed is returned when the explorer rejects the submitted source.
	ErrVerificationFailed = errors.New("verification failed")
	ErrPollTimeout        = errors.New("verification still pending")
)

// Client talks to the explorer's contract verification endpoints.
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	pollAttempts int
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets a custom API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithPolling sets how often and how many times a submission's status is checked.
func WithPolling(interval time.Duration, attempts int) Option {
	return func(c *Client) {
		c.pollInterval = interval
		c.pollAttempts = attempts
	}
}

// NewClient creates a new explorer client.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNoAPIKey
	}

	c := &Client{
		apiKey:       apiKey,
		baseURL:      DefaultBaseURL,
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		pollInterval: 5 * time.Second,
		pollAttempts: 24,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// APIError is a non-2xx HTTP answer from the explorer.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Submission is one verifysourcecode request.
type Submission struct {
	Address common.Address
	// ContractName is the fully qualified "path/File.sol:Name".
	ContractName string
	// CompilerVersion is the full build string, e.g. "v0.8.24+commit.e11b9ed9".
	CompilerVersion string
	SourceJSON      []byte
	ConstructorArgs []byte
}

type response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

// Submit uploads the source bundle and returns the explorer's job id. An
// already verified contract returns an empty guid and no error.
func (c *Client) Submit(ctx context.Context, s Submission) (string, error) {
	form := url.Values{}
	form.Set("apikey", c.apiKey)
	form.Set("module", "contract")
	form.Set("action", "verifysourcecode")
	form.Set("contractaddress", s.Address.Hex())
	form.Set("sourceCode", string(s.SourceJSON))
	form.Set("codeformat", codeFormatStandardJSON)
	form.Set("contractname", s.ContractName)
	form.Set("compilerversion", s.CompilerVersion)
	// The misspelling is part of the Etherscan API.
	form.Set("constructorArguements", common.Bytes2Hex(s.ConstructorArgs))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}

	if resp.Status != "1" {
		if isAlreadyVerified(resp.Result) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %s", ErrVerificationFailed, resp.Result)
	}

	return resp.Result, nil
}

// Status is the outcome of a checkverifystatus call.
type Status int

const (
	StatusPending Status = iota
	StatusPass
	StatusFail
)

// CheckStatus asks the explorer how the job guid is doing. On failure the
// explorer's reason is returned as the error.
func (c *Client) CheckStatus(ctx context.Context, guid string) (Status, error) {
	query := url.Values{}
	query.Set("apikey", c.apiKey)
	query.Set("module", "contract")
	query.Set("action", "checkverifystatus")
	query.Set("guid", guid)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return StatusPending, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return StatusPending, err
	}

	switch {
	case resp.Status == "1" || isAlreadyVerified(resp.Result):
		return StatusPass, nil
	case strings.Contains(strings.ToLower(resp.Result), "pending"):
		return StatusPending, nil
	default:
		return StatusFail, fmt.Errorf("%w: %s", ErrVerificationFailed, resp.Result)
	}
}

// Verify submits s and polls until the explorer reports a final status.
func (c *Client) Verify(ctx context.Context, s Submission) error {
	guid, err := c.Submit(ctx, s)
	if err != nil {
		return err
	}
	if guid == "" {
		return nil
	}

	for range c.pollAttempts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}

		status, err := c.CheckStatus(ctx, guid)
		if err != nil {
			return err
		}
		if status == StatusPass {
			return nil
		}
	}

	return fmt.Errorf("%w after %d checks (guid %s)", ErrPollTimeout, c.pollAttempts, guid)
}

func (c *Client) do(req *http.Request) (response, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", configs.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return response{}, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return response{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return out, nil
}

func isAlreadyVerified(result string) bool {
	return strings.Contains(strings.ToLower(result), "already verified")
}

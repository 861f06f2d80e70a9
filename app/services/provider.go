package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tmcarr/heimdall/config"
	"github.com/tmcarr/heimdall/models"
)

// SendRequest carries one outbound message for a single recipient.
// CallbackKey is the audit-record key the provider echoes back in its
// asynchronous status callback.
type SendRequest struct {
	To          string
	Body        string
	MediaURLs   []string
	CallbackKey int64
}

// MessagingProvider sends a text through a concrete sending identity
type MessagingProvider interface {
	Send(ctx context.Context, identity *models.SendingIdentity, req SendRequest) error
}

// TwilioProvider implements MessagingProvider against the Twilio messages API,
// billing each send to the identity's sub-account
type TwilioProvider struct {
	cfg          *config.ProviderConfig
	callbackCode string
	client       *http.Client
}

func NewTwilioProvider(cfg *config.ProviderConfig, callbackCode string) MessagingProvider {
	return &TwilioProvider{
		cfg:          cfg,
		callbackCode: callbackCode,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (p *TwilioProvider) Send(ctx context.Context, identity *models.SendingIdentity, req SendRequest) error {
	form := url.Values{}
	form.Set("From", identity.Number)
	form.Set("To", req.To)
	form.Set("Body", req.Body)
	for _, m := range req.MediaURLs {
		form.Add("MediaUrl", m)
	}
	if p.cfg.CallbackURL != "" && req.CallbackKey != 0 {
		cb := fmt.Sprintf("%s?code=%s&key=%s",
			p.cfg.CallbackURL,
			url.QueryEscape(p.callbackCode),
			strconv.FormatInt(req.CallbackKey, 10),
		)
		form.Set("StatusCallback", cb)
	}

	endpoint := fmt.Sprintf("https://%s/2010-04-01/Accounts/%s/Messages.json", p.cfg.APIDomain, identity.AccountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create provider request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(identity.AccountSID, identity.AuthToken)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("provider rejected send to %s: status %d: %s", req.To, resp.StatusCode, string(body))
	}
	return nil
}

// RecordedSend captures one mock provider call for assertions
type RecordedSend struct {
	Identity models.SendingIdentity
	Request  SendRequest
	At       time.Time
}

// MockMessagingProvider records sends in memory and can fail selected
// recipients for fault-injection tests
type MockMessagingProvider struct {
	mu      sync.Mutex
	sends   []RecordedSend
	failFor map[string]error
}

func NewMockMessagingProvider() *MockMessagingProvider {
	return &MockMessagingProvider{
		failFor: make(map[string]error),
	}
}

func (p *MockMessagingProvider) Send(_ context.Context, identity *models.SendingIdentity, req SendRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sends = append(p.sends, RecordedSend{
		Identity: *identity,
		Request:  req,
		At:       time.Now().UTC(),
	})
	if err, ok := p.failFor[req.To]; ok {
		return err
	}
	return nil
}

// FailFor makes subsequent sends to the given recipient return err
func (p *MockMessagingProvider) FailFor(to string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failFor[to] = err
}

// Sends returns a copy of everything sent so far
func (p *MockMessagingProvider) Sends() []RecordedSend {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]RecordedSend, len(p.sends))
	copy(out, p.sends)
	return out
}

// SendsTo returns the sends addressed to one recipient
func (p *MockMessagingProvider) SendsTo(to string) []RecordedSend {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []RecordedSend
	for _, s := range p.sends {
		if s.Request.To == to {
			out = append(out, s)
		}
	}
	return out
}

// Clear drops all recorded sends
func (p *MockMessagingProvider) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sends = nil
}

// Package diagnostic replays inbound SMS against the webhook the way the provider would.
package diagnostic

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Header marks a request as a simulation. It is only honored on authenticated calls.
const Header = "X-Diagnostic-Simulation"

type Simulator struct {
	Client   *http.Client
	URL      string
	User     string
	Password string
	To       string
}

func NewSimulator(webhookURL, user, password, to string) *Simulator {
	return &Simulator{
		Client:   &http.Client{Timeout: 10 * time.Second},
		URL:      webhookURL,
		User:     user,
		Password: password,
		To:       to,
	}
}

type Result struct {
	Status     int    `json:"status"`
	MessageSid string `json:"messageSid"`
	Response   string `json:"response"`
}

// Simulate posts a provider-shaped form to the webhook with Basic credentials and the marker header.
func (s *Simulator) Simulate(ctx context.Context, from, body string) (*Result, error) {
	sid := "SMsim" + strings.ReplaceAll(uuid.NewString(), "-", "")
	form := url.Values{
		"From":       {from},
		"To":         {s.To},
		"Body":       {body},
		"MessageSid": {sid},
		"SmsSid":     {sid},
		"NumMedia":   {"0"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(Header, "1")
	if s.User != "" {
		req.SetBasicAuth(s.User, s.Password)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call webhook: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("read webhook response: %w", err)
	}
	return &Result{Status: resp.StatusCode, MessageSid: sid, Response: string(raw)}, nil
}

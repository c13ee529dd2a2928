package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	twilioVerifyDefaultBaseURL = "https://verify.twilio.com"
	twilioStatusApproved       = "approved"
)

// TwilioVerify delegates code generation, delivery and checking to the Twilio Verify API.
type TwilioVerify struct {
	accountSID string
	authToken  string
	serviceID  string
	baseURL    string
	client     http.Client
}

// NewTwilioVerify creates a TwilioVerify provider. If baseURL is empty, the Twilio
// production API is used (tests pass an httptest server URL).
func NewTwilioVerify(accountSID, authToken, serviceID, baseURL string) *TwilioVerify {
	if baseURL == "" {
		baseURL = twilioVerifyDefaultBaseURL
	}
	return &TwilioVerify{
		accountSID: accountSID,
		authToken:  authToken,
		serviceID:  serviceID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     http.Client{Timeout: 15 * time.Second},
	}
}

// SendChallenge starts a Verify verification over SMS. Only 201 Created counts as accepted.
func (p *TwilioVerify) SendChallenge(ctx context.Context, phone string) (SendResult, error) {
	form := url.Values{}
	form.Set("To", phone)
	form.Set("Channel", "sms")

	status, body, err := p.post(ctx, "Verifications", form)
	if err != nil {
		return SendResult{}, err
	}
	if status != http.StatusCreated {
		return SendResult{Status: twilioErrorStatus(status, body)}, nil
	}
	return SendResult{Accepted: true, Status: twilioVerificationStatus(body)}, nil
}

// CheckChallenge submits a code. Twilio answers 200 for both correct and incorrect codes,
// so the verification status must also read "approved" when the body carries one.
func (p *TwilioVerify) CheckChallenge(ctx context.Context, phone, code string) (CheckResult, error) {
	form := url.Values{}
	form.Set("To", phone)
	form.Set("Code", code)

	status, body, err := p.post(ctx, "VerificationCheck", form)
	if err != nil {
		return CheckResult{}, err
	}
	if status != http.StatusOK {
		return CheckResult{Status: twilioErrorStatus(status, body)}, nil
	}
	verificationStatus := twilioVerificationStatus(body)
	return CheckResult{
		Verified: verificationStatus == "" || verificationStatus == twilioStatusApproved,
		Status:   verificationStatus,
	}, nil
}

func (p *TwilioVerify) post(ctx context.Context, resource string, form url.Values) (int, []byte, error) {
	endpoint := fmt.Sprintf("%s/v2/Services/%s/%s", p.baseURL, p.serviceID, resource)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("twilio: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.accountSID, p.authToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("twilio: send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("twilio: read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func twilioVerificationStatus(body []byte) string {
	var parsed struct {
		Status string `json:"status"`
	}
	if len(body) == 0 || json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	return parsed.Status
}

func twilioErrorStatus(status int, body []byte) string {
	var errResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
		return fmt.Sprintf("twilio error %d: %s", errResp.Code, errResp.Message)
	}
	return fmt.Sprintf("twilio http %d", status)
}

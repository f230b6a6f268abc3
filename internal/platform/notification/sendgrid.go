package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const sendGridMailPath = "/v3/mail/send"

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridMail struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

type sendGridError struct {
	Errors []struct {
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"errors"`
}

// SendGridSender delivers email through the SendGrid v3 mail API.
type SendGridSender struct {
	httpClient *resty.Client
	from       string
}

// NewSendGridSender creates a sender authenticated with apiKey. baseURL is
// normally https://api.sendgrid.com.
func NewSendGridSender(baseURL, apiKey, from string) *SendGridSender {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
	})

	return &SendGridSender{httpClient: client, from: from}
}

func (s *SendGridSender) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	mail := sendGridMail{
		Personalizations: []sendGridPersonalization{{To: []sendGridAddress{{Email: to}}}},
		From:             sendGridAddress{Email: s.from},
		Subject:          subject,
		Content:          []sendGridContent{{Type: "text/html", Value: htmlBody}},
	}

	var apiErr sendGridError
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetBody(mail).
		SetError(&apiErr).
		Post(sendGridMailPath)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if len(apiErr.Errors) > 0 {
			msg = apiErr.Errors[0].Message
		}
		return fmt.Errorf("sendgrid rejected mail to %s: %d %s", to, resp.StatusCode(), msg)
	}
	return nil
}

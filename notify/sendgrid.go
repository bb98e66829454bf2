package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"

	academy "github.com/goliatone/go-academy"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendFunc performs a SendGrid API call. sendgrid.API is the default.
type SendFunc func(req rest.Request) (*rest.Response, error)

var emailBody = template.Must(template.New("email").Parse(`<p>Hello {{.Name}},</p>
<p><a href="{{.Link}}">{{.Subject}}</a></p>
<p>This link expires at {{.ExpiresAt.UTC.Format "2006-01-02 15:04 MST"}} and can be used once.</p>`))

// SendGrid mails credential notifications through the SendGrid v3 API.
type SendGrid struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	send       SendFunc
}

func NewSendGrid(key, appName, fromEmail string) *SendGrid {
	return &SendGrid{
		key:        key,
		from:       sgmail.NewEmail(appName, fromEmail),
		subjPrefix: "[" + appName + "] ",
		send:       sendgrid.API,
	}
}

// WithSendFunc replaces the transport, mostly for tests.
func (s *SendGrid) WithSendFunc(fn SendFunc) *SendGrid {
	if fn != nil {
		s.send = fn
	}
	return s
}

func (s *SendGrid) Notify(ctx context.Context, n academy.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := s.prepare(n)
	if err != nil {
		return err
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := s.send(req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: unexpected status %d", res.StatusCode)
	}
	return nil
}

func (s *SendGrid) prepare(n academy.Notification) (*sgmail.SGMailV3, error) {
	var html bytes.Buffer
	err := emailBody.Execute(&html, map[string]any{
		"Name":      n.Name,
		"Link":      n.Link,
		"Subject":   n.Subject(),
		"ExpiresAt": n.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("sendgrid: render body: %w", err)
	}

	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + n.Subject()
	p.AddTos(sgmail.NewEmail(n.Name, n.Email))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", fmt.Sprintf("%s: %s", n.Subject(), n.Link)),
		sgmail.NewContent("text/html", html.String()),
	)

	return m, nil
}

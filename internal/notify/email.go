package notify

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/resend/resend-go/v3"
)

type EmailConfig struct {
	APIKey       string
	FromEmail    string
	FromName     string
	SupportEmail string
}

// emailSender is the part of the Resend client used here.
type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// EmailNotifier sends events to the tenant owner through Resend.
type EmailNotifier struct {
	emails emailSender
	config EmailConfig
}

func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	client := resend.NewClient(cfg.APIKey)
	return &EmailNotifier{emails: client.Emails, config: cfg}
}

var subjects = map[EventType]string{
	EventSetupInstructions: "Connect {{.Hostname}} to your site",
	EventActivationSuccess: "{{.Hostname}} is live",
	EventTimeoutHelp:       "We could not verify {{.Hostname}} yet",
}

var bodies = template.Must(template.New("notify").Parse(`
{{define "setup_instructions"}}Hi {{.TenantName}},

To use {{.Hostname}} for your site, add these records at {{if .RegistrarHint}}{{.RegistrarHint}}{{else}}your domain registrar{{end}}:
{{if .CNAMETarget}}
  CNAME  www  {{.CNAMETarget}}
{{- end}}
{{- range .ARecords}}
  A      @    {{.}}
{{- end}}

We check the records every few minutes and will e-mail you once the domain is active.
{{end}}
{{define "activation_success"}}Hi {{.TenantName}},

{{.Hostname}} now points to your site and is active.
{{end}}
{{define "timeout_help"}}Hi {{.TenantName}},

We have not been able to verify {{.Hostname}} within the verification window (last result: {{.Reason}}).
Please double check your DNS records{{if .Support}} or contact {{.Support}}{{end}} and we will restart the check for you.
{{end}}
`))

func (n *EmailNotifier) Notify(ctx context.Context, e Event) error {
	if e.Email == "" {
		return fmt.Errorf("notify: tenant %s has no e-mail address", e.TenantID)
	}

	subject, err := render(subjects[e.Type], e)
	if err != nil {
		return err
	}

	data := struct {
		Event
		Support string
	}{e, n.config.SupportEmail}

	var body bytes.Buffer
	if err := bodies.ExecuteTemplate(&body, string(e.Type), data); err != nil {
		return fmt.Errorf("notify: render %s: %w", e.Type, err)
	}

	from := n.config.FromEmail
	if n.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", n.config.FromName, n.config.FromEmail)
	}

	req := &resend.SendEmailRequest{
		From:    from,
		To:      []string{e.Email},
		Subject: subject,
		Text:    body.String(),
		Tags: []resend.Tag{
			{Name: "event", Value: string(e.Type)},
		},
	}
	if n.config.SupportEmail != "" {
		req.ReplyTo = n.config.SupportEmail
	}

	if _, err := n.emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("resend: failed to send email: %w", err)
	}
	return nil
}

func render(text string, e Event) (string, error) {
	t, err := template.New("subject").Parse(text)
	if err != nil {
		return "", fmt.Errorf("notify: parse subject: %w", err)
	}
	var b bytes.Buffer
	if err := t.Execute(&b, e); err != nil {
		return "", fmt.Errorf("notify: render subject: %w", err)
	}
	return b.String(), nil
}

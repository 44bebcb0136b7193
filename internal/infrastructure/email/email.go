// Package email delivers the digest via SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"

	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

const digestTemplate = `<html>
<head>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
.container { max-width: 800px; margin: 0 auto; padding: 20px; }
h1 { color: #2c3e50; }
h2 { color: #34495e; margin-top: 30px; }
.article { margin: 20px 0; padding: 15px; background: #f8f9fa; border-left: 4px solid #007bff; }
.article h3 { margin-top: 0; }
.insights { background: #e8f4f8; padding: 15px; border-radius: 5px; }
a { color: #007bff; text-decoration: none; }
</style>
</head>
<body>
<div class="container">
<h1>News Digest - {{.Date}}</h1>

<h2>Overall Summary</h2>
<p>{{.Digest.Overall}}</p>

{{if .Digest.Insights}}<div class="insights">
<h2>Key Insights</h2>
<ul>{{range .Digest.Insights}}<li>{{.}}</li>{{end}}</ul>
</div>{{end}}

<h2>Article Summaries</h2>
{{range .Digest.Articles}}<div class="article">
<h3>{{.Title}}</h3>
<p>{{.Snippet}}</p>
{{if .KeyPoints}}<ul>{{range .KeyPoints}}<li>{{.}}</li>{{end}}</ul>{{end}}
<p><a href="{{.URL}}">Read more</a></p>
</div>
{{end}}</div>
</body>
</html>
`

var digestTmpl = template.Must(template.New("digest").Parse(digestTemplate))

// Mailer sends the rendered digest to the configured recipient.
type Mailer struct {
	cfg config.SMTPConfig
}

var _ ports.Deliverer = (*Mailer)(nil)

// NewMailer registers the SMTP connection settings.
func NewMailer(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Deliver renders the digest as HTML mail and sends it. STARTTLS is
// negotiated automatically when the server offers it.
func (m *Mailer) Deliver(ctx context.Context, digest domain.Digest) error {
	if m.cfg.Host == "" || m.cfg.From == "" || m.cfg.To == "" {
		return fmt.Errorf("mailer misconfigured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	date := digest.GeneratedAt.Format("2006-01-02")
	body, err := renderDigest(digest, date)
	if err != nil {
		return err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", m.cfg.To)
	fmt.Fprintf(&msg, "Subject: News Digest - %s\r\n", date)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.Write(body)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{m.cfg.To}, msg.Bytes()); err != nil {
		return fmt.Errorf("send digest mail: %w", err)
	}
	return nil
}

func renderDigest(digest domain.Digest, date string) ([]byte, error) {
	var buf bytes.Buffer
	data := struct {
		Date   string
		Digest domain.Digest
	}{Date: date, Digest: digest}

	if err := digestTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render digest mail: %w", err)
	}
	return buf.Bytes(), nil
}

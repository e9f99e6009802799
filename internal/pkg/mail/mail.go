package mail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/smtp"
	"strings"
	"time"
)

// Config holds mail provider settings.
type Config struct {
	Enable    bool   `yaml:"enable"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Pass      string `yaml:"pass"`
	From      string `yaml:"from"`
	FromName  string `yaml:"from_name"`
	ReplyTo   string `yaml:"reply_to"`
	UseResend bool   `yaml:"use_resend"`
	ResendKey string `yaml:"resend_key"`
}

// Message is a single email to send.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Sender sends emails via SMTP or Resend.
type Sender struct {
	cfg Config
}

func New(cfg Config) *Sender {
	return &Sender{cfg: cfg}
}

// Send dispatches an email. Uses Resend if configured, otherwise SMTP.
func (s *Sender) Send(msg Message) error {
	if !s.cfg.Enable {
		return nil
	}
	if s.cfg.UseResend && s.cfg.ResendKey != "" {
		return s.sendResend(msg)
	}
	return s.sendSMTP(msg)
}

func (s *Sender) from() string {
	from := s.cfg.From
	if from == "" {
		from = s.cfg.User
	}
	return from
}

func (s *Sender) fromHeader() string {
	name := strings.TrimSpace(s.cfg.FromName)
	if name == "" {
		name = "Blog Newsletter"
	}
	return fmt.Sprintf("%q <%s>", name, s.from())
}

// sendSMTP sends via net/smtp.
func (s *Sender) sendSMTP(msg Message) error {
	host := s.cfg.Host
	port := s.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	var body bytes.Buffer
	body.WriteString("MIME-Version: 1.0\r\n")
	body.WriteString(fmt.Sprintf("From: %s\r\n", s.fromHeader()))
	body.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	body.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	body.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	if s.cfg.ReplyTo != "" {
		body.WriteString(fmt.Sprintf("Reply-To: %s\r\n", s.cfg.ReplyTo))
	}
	body.WriteString("\r\n")
	body.WriteString(msg.HTML)

	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, host)
	return smtp.SendMail(addr, auth, s.from(), msg.To, body.Bytes())
}

// sendResend sends via the Resend HTTP API.
func (s *Sender) sendResend(msg Message) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"from":    s.from(),
		"to":      msg.To,
		"subject": msg.Subject,
		"html":    msg.HTML,
	})

	req, err := http.NewRequest("POST", "https://api.resend.com/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.ResendKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("resend error %d: %s", resp.StatusCode, errResp.Message)
	}
	return nil
}

const welcomeTpl = `<!DOCTYPE html>
<html>
<head>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #007bff; color: white; padding: 20px; text-align: center; }
    .content { padding: 20px; background: #f9f9f9; }
    .footer { text-align: center; padding: 20px; font-size: 12px; color: #666; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>Welcome to Our Newsletter!</h1>
    </div>
    <div class="content">
      <p>Thank you for subscribing to our blog newsletter!</p>
      <p>You'll now receive updates about our latest posts, news, and exclusive content directly in your inbox.</p>
      <p>Stay tuned for exciting updates!</p>
    </div>
    <div class="footer">
      <p>If you didn't subscribe, you can safely ignore this email.</p>
    </div>
  </div>
</body>
</html>`

const newPostTpl = `<!DOCTYPE html>
<html>
<head>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #007bff; color: white; padding: 20px; text-align: center; }
    .content { padding: 20px; background: #f9f9f9; }
    .button { display: inline-block; padding: 10px 20px; background: #007bff; color: white; text-decoration: none; border-radius: 5px; }
    .footer { text-align: center; padding: 20px; font-size: 12px; color: #666; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>New Blog Post!</h1>
    </div>
    <div class="content">
      <h2>{{.Title}}</h2>
      <p>{{.Excerpt}}</p>
      <a href="{{.URL}}" class="button">Read More</a>
    </div>
    <div class="footer">
      <p>You're receiving this because you subscribed to our newsletter.</p>
    </div>
  </div>
</body>
</html>`

// NewPostData is the data for new-post notification emails.
type NewPostData struct {
	Title   string
	Excerpt string
	URL     string
}

func renderTemplate(tpl string, data interface{}) (string, error) {
	t, err := template.New("").Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SendWelcome sends a welcome email to a new or returning subscriber.
func (s *Sender) SendWelcome(to string) error {
	return s.Send(Message{
		To:      []string{to},
		Subject: "Welcome to Our Newsletter!",
		HTML:    welcomeTpl,
	})
}

// SendNewPost sends a new-post notification to a single subscriber.
func (s *Sender) SendNewPost(to string, data NewPostData) error {
	if strings.TrimSpace(data.Excerpt) == "" {
		data.Excerpt = "Check out our latest post!"
	}
	html, err := renderTemplate(newPostTpl, data)
	if err != nil {
		return err
	}
	return s.Send(Message{
		To:      []string{to},
		Subject: fmt.Sprintf("New Post: %s", data.Title),
		HTML:    html,
	})
}

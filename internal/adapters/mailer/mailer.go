package mailer

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"place_reviews/internal/domain"
)

// SMTPNotifier sends an HTML summary of freshly inserted reviews to the
// configured recipient.
type SMTPNotifier struct {
	addr string
	from string
	to   string
}

func New(addr, from, to string) *SMTPNotifier {
	return &SMTPNotifier{addr: addr, from: from, to: to}
}

func (m *SMTPNotifier) SendNewReviews(ctx context.Context, reviews []domain.Review) error {
	if len(reviews) == 0 {
		return nil
	}
	if m.to == "" {
		return &domain.ConfigError{Msg: "notification email not configured"}
	}

	subject := fmt.Sprintf("%d new reviews collected", len(reviews))
	if len(reviews) == 1 {
		subject = "1 new review collected"
	}

	var b strings.Builder
	b.WriteString("<h2>New reviews</h2>\n<ul>\n")
	for _, r := range reviews {
		b.WriteString("<li><strong>")
		b.WriteString(html.EscapeString(r.Author))
		b.WriteString("</strong> ")
		b.WriteString(stars(r.Rating))
		if t := trimWords(r.Text, 20); t != "" {
			b.WriteString("<br>")
			b.WriteString(html.EscapeString(t))
		}
		b.WriteString("</li>\n")
	}
	b.WriteString("</ul>\n")

	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		m.from, m.to, subject, b.String()))
	if err := smtp.SendMail(m.addr, nil, m.from, []string{m.to}, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func stars(rating float64) string {
	full := int(rating + 0.5)
	if full < 0 {
		full = 0
	}
	if full > 5 {
		full = 5
	}
	return strings.Repeat("★", full) + strings.Repeat("☆", 5-full)
}

func trimWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "…"
}

package mailer_test

import (
	"context"
	"testing"

	"place_reviews/internal/adapters/mailer"
	"place_reviews/internal/domain"
)

func TestSendNewReviews_EmptyBatchIsNoop(t *testing.T) {
	m := mailer.New("localhost:1025", "noreply@example.com", "owner@example.com")
	if err := m.SendNewReviews(context.Background(), nil); err != nil {
		t.Fatalf("empty batch should not error: %v", err)
	}
}

func TestSendNewReviews_MissingRecipient(t *testing.T) {
	m := mailer.New("localhost:1025", "noreply@example.com", "")
	err := m.SendNewReviews(context.Background(), []domain.Review{{Author: "Ana", Rating: 5}})
	if !domain.IsConfigError(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}

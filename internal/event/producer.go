package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/domain"
	pkgkafka "github.com/Capstone-POKI/Pitchcoach-BACK/pkg/kafka"
	"github.com/Capstone-POKI/Pitchcoach-BACK/pkg/logger"
)

// Kafka topics for account lifecycle events.
var (
	TopicAccountRegistered      = pkgkafka.Topic("account", "registered")
	TopicAccountDeleted         = pkgkafka.Topic("account", "deleted")
	TopicAccountPasswordChanged = pkgkafka.Topic("account", "password_changed")
)

// Aggregate type constant.
const AggregateTypeAccount = "account"

// Source identifier for events originating from the auth service.
const SourceAuthService = "auth-service"

// AccountRegisteredData is the payload for an account.registered event.
type AccountRegisteredData struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	AuthOrigin string `json:"auth_origin"`
}

// AccountDeletedData is the payload for an account.deleted event.
type AccountDeletedData struct {
	ID        string    `json:"id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// AccountPasswordChangedData is the payload for an account.password_changed event.
type AccountPasswordChangedData struct {
	ID        string    `json:"id"`
	ChangedAt time.Time `json:"changed_at"`
}

// Publisher sends an event envelope to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes account lifecycle events. A Producer with a nil
// publisher drops every event, which is how the service runs without Kafka.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer for the auth service.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// PublishAccountRegistered publishes an account.registered event.
func (p *Producer) PublishAccountRegistered(ctx context.Context, account *domain.Account) error {
	data := AccountRegisteredData{
		ID:         account.ID,
		Email:      account.Email,
		Name:       account.Name,
		AuthOrigin: string(account.AuthOrigin),
	}
	return p.publish(ctx, TopicAccountRegistered, account.ID, data)
}

// PublishAccountDeleted publishes an account.deleted event.
func (p *Producer) PublishAccountDeleted(ctx context.Context, accountID string, deletedAt time.Time) error {
	data := AccountDeletedData{ID: accountID, DeletedAt: deletedAt}
	return p.publish(ctx, TopicAccountDeleted, accountID, data)
}

// PublishPasswordChanged publishes an account.password_changed event.
func (p *Producer) PublishPasswordChanged(ctx context.Context, accountID string, changedAt time.Time) error {
	data := AccountPasswordChangedData{ID: accountID, ChangedAt: changedAt}
	return p.publish(ctx, TopicAccountPasswordChanged, accountID, data)
}

func (p *Producer) publish(ctx context.Context, topic, accountID string, data any) error {
	if p == nil || p.publisher == nil {
		return nil
	}

	event, err := pkgkafka.NewEvent(topic, accountID, AggregateTypeAccount, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		event.WithCorrelationID(cid)
	}

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published account event",
		slog.String("topic", topic),
		slog.String("account_id", accountID),
	)

	return nil
}

package webhook

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/subgate/internal/app/service/account"
	"github.com/fatflowers/subgate/internal/app/service/subscriber"
	"github.com/fatflowers/subgate/internal/models"
	"github.com/fatflowers/subgate/pkg/config"
	"github.com/fatflowers/subgate/pkg/metrics"
	"github.com/fatflowers/subgate/pkg/types"
)

// registered once; prometheus collectors may not register twice per process
var testMetrics = metrics.New()

type stubAccounts struct {
	subscribers map[string]*models.Subscriber
	resolution  *account.Resolution
	resolveErr  error
}

func (s *stubAccounts) FindByEmail(_ context.Context, email string) (*models.Subscriber, error) {
	return s.subscribers[email], nil
}

func (s *stubAccounts) ResolveOrCreate(_ context.Context, email string, _ *types.Payload) (*account.Resolution, error) {
	if s.resolveErr != nil {
		return nil, s.resolveErr
	}
	if s.resolution != nil {
		return s.resolution, nil
	}
	return &account.Resolution{Subscriber: s.subscribers[email]}, nil
}

type stubTransitions struct {
	calls       int
	lastClass   types.EventClass
	lastCreated bool
	result      *subscriber.TransitionResult
	err         error
}

func (s *stubTransitions) ApplyTransition(_ context.Context, sub *models.Subscriber, accountCreated bool, class types.EventClass, _ *types.Payload) (*subscriber.TransitionResult, error) {
	s.calls++
	s.lastClass = class
	s.lastCreated = accountCreated
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &subscriber.TransitionResult{UserID: sub.ID, Message: "ok"}, nil
}

type stubAudit struct {
	entries []*models.WebhookLog
}

func (s *stubAudit) Record(_ context.Context, entry *models.WebhookLog) {
	s.entries = append(s.entries, entry)
}

func newPipeline(cfg *config.Config, accounts *stubAccounts, subs *stubTransitions) (*Service, *stubAudit) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if accounts == nil {
		accounts = &stubAccounts{}
	}
	if subs == nil {
		subs = &stubTransitions{}
	}
	audit := &stubAudit{}
	s := &Service{
		cfg:      cfg,
		accounts: accounts,
		subs:     subs,
		logs:     audit,
		metrics:  testMetrics,
		Logger:   zap.NewNop().Sugar(),
		validate: validator.New(),
	}
	return s, audit
}

func knownSubscriber() *models.Subscriber {
	return &models.Subscriber{ID: "user-1", Email: "a@b.com", Username: "a", Subscribed: true}
}

func TestHandle_InvalidJSON(t *testing.T) {
	subs := &stubTransitions{}
	s, audit := newPipeline(nil, nil, subs)

	out := s.Handle(context.Background(), []byte("not json"), "", "", "trace-1")

	require.Equal(t, http.StatusBadRequest, out.HTTPStatus)
	require.False(t, out.Response.Success)
	require.Equal(t, "Invalid JSON payload", out.Response.Message)
	require.Zero(t, subs.calls)
	require.Len(t, audit.entries, 1)
	require.Equal(t, models.WebhookLogStatusInvalid, audit.entries[0].Status)
	require.Equal(t, "trace-1", audit.entries[0].TraceID)
	require.Equal(t, "not json", audit.entries[0].RequestBody)
}

func TestHandle_BadAPIToken(t *testing.T) {
	cfg := &config.Config{Webhook: config.WebhookConfig{APIToken: "secret"}}
	subs := &stubTransitions{}
	s, audit := newPipeline(cfg, nil, subs)

	body := []byte(`{"event":"subscription_created","customer_email":"a@b.com"}`)
	out := s.Handle(context.Background(), body, "", "wrong", "trace-1")

	require.Equal(t, http.StatusForbidden, out.HTTPStatus)
	require.Equal(t, "Invalid or missing API token", out.Response.Message)
	require.Zero(t, subs.calls)
	require.Len(t, audit.entries, 1)
	require.Equal(t, models.WebhookLogStatusErrorAPIToken, audit.entries[0].Status)
}

func TestHandle_BadSignature(t *testing.T) {
	cfg := &config.Config{Webhook: config.WebhookConfig{SigningKey: "signing-key"}}
	subs := &stubTransitions{}
	s, audit := newPipeline(cfg, nil, subs)

	body := []byte(`{"event":"subscription_created","customer_email":"a@b.com"}`)
	out := s.Handle(context.Background(), body, "deadbeef", "", "trace-1")

	require.Equal(t, http.StatusForbidden, out.HTTPStatus)
	require.False(t, out.Response.Success)
	require.Equal(t, "Invalid webhook signature", out.Response.Message)
	require.Zero(t, subs.calls)
	require.Len(t, audit.entries, 1)
	require.Equal(t, models.WebhookLogStatusErrorSignature, audit.entries[0].Status)
	require.Equal(t, "a@b.com", audit.entries[0].CustomerEmail)
}

func TestHandle_SignedRequestSucceeds(t *testing.T) {
	cfg := &config.Config{Webhook: config.WebhookConfig{SigningKey: "signing-key"}}
	accounts := &stubAccounts{resolution: &account.Resolution{Subscriber: knownSubscriber(), Created: true}}
	subs := &stubTransitions{}
	s, _ := newPipeline(cfg, accounts, subs)

	// pretty-printed delivery; the sender signs the canonical form
	body := []byte("{\n  \"event\": \"subscription_created\",\n  \"customer_email\": \"a@b.com\"\n}")
	sig := signatureOf(string(NormalizeJSON(body)), "signing-key")
	out := s.Handle(context.Background(), body, sig, "", "trace-1")

	require.Equal(t, http.StatusOK, out.HTTPStatus)
	require.True(t, out.Response.Success)
	require.Equal(t, 1, subs.calls)
}

func TestHandle_MissingRequiredFields(t *testing.T) {
	subs := &stubTransitions{}
	s, audit := newPipeline(nil, nil, subs)

	out := s.Handle(context.Background(), []byte(`{"event":"subscription_created"}`), "", "", "trace-1")

	require.Equal(t, http.StatusBadRequest, out.HTTPStatus)
	require.Equal(t, "Missing required fields: event or customer_email", out.Response.Message)
	require.Zero(t, subs.calls)
	require.Len(t, audit.entries, 1)
	require.Equal(t, models.WebhookLogStatusErrorValidation, audit.entries[0].Status)
}

func TestHandle_InvalidEmail(t *testing.T) {
	subs := &stubTransitions{}
	s, audit := newPipeline(nil, nil, subs)

	out := s.Handle(context.Background(), []byte(`{"event":"subscription_created","customer_email":"not-an-email"}`), "", "", "trace-1")

	require.Equal(t, http.StatusBadRequest, out.HTTPStatus)
	require.Equal(t, "Invalid email format", out.Response.Message)
	require.Zero(t, subs.calls)
	require.Equal(t, models.WebhookLogStatusErrorEmail, audit.entries[0].Status)
}

func TestHandle_Activation(t *testing.T) {
	accounts := &stubAccounts{resolution: &account.Resolution{Subscriber: knownSubscriber(), Created: true}}
	subs := &stubTransitions{result: &subscriber.TransitionResult{UserID: "user-1", Message: "Subscription activated for user a@b.com"}}
	s, audit := newPipeline(nil, accounts, subs)

	out := s.Handle(context.Background(), []byte(`{"event":"subscription_created","customer_email":"a@b.com"}`), "", "", "trace-1")

	require.Equal(t, http.StatusOK, out.HTTPStatus)
	require.True(t, out.Response.Success)
	require.NotNil(t, out.Response.UserID)
	require.Equal(t, "user-1", *out.Response.UserID)
	require.NotEmpty(t, out.Response.ProcessingTime)
	require.Equal(t, 1, subs.calls)
	require.Equal(t, types.EventClassActivate, subs.lastClass)
	require.True(t, subs.lastCreated)
	require.Len(t, audit.entries, 1)
	require.Equal(t, models.WebhookLogStatusSuccess, audit.entries[0].Status)
	require.Equal(t, "subscription_created", audit.entries[0].EventType)
}

func TestHandle_AutomationOnlyDefersCreation(t *testing.T) {
	accounts := &stubAccounts{resolution: &account.Resolution{Deferred: true}}
	subs := &stubTransitions{}
	s, audit := newPipeline(nil, accounts, subs)

	out := s.Handle(context.Background(), []byte(`{"event":"subscription_created","customer_email":"a@b.com"}`), "", "", "trace-1")

	require.Equal(t, http.StatusOK, out.HTTPStatus)
	require.True(t, out.Response.Success)
	require.Equal(t, "Automation-only mode: account creation delegated to automation", out.Response.Message)
	require.Nil(t, out.Response.UserID)
	require.Zero(t, subs.calls)
	require.Equal(t, models.WebhookLogStatusSuccess, audit.entries[0].Status)
}

func TestHandle_DeactivateKnownUser(t *testing.T) {
	accounts := &stubAccounts{subscribers: map[string]*models.Subscriber{"a@b.com": knownSubscriber()}}
	subs := &stubTransitions{}
	s, _ := newPipeline(nil, accounts, subs)

	out := s.Handle(context.Background(), []byte(`{"event":"subscription_expired","customer_email":"a@b.com"}`), "", "", "trace-1")

	require.Equal(t, http.StatusOK, out.HTTPStatus)
	require.Equal(t, 1, subs.calls)
	require.Equal(t, types.EventClassDeactivate, subs.lastClass)
	require.False(t, subs.lastCreated)
}

func TestHandle_NonActivateUnknownUser(t *testing.T) {
	subs := &stubTransitions{}
	s, audit := newPipeline(nil, &stubAccounts{}, subs)

	out := s.Handle(context.Background(), []byte(`{"event":"subscription_expired","customer_email":"ghost@b.com"}`), "", "", "trace-1")

	require.Equal(t, http.StatusOK, out.HTTPStatus)
	require.True(t, out.Response.Success)
	require.Equal(t, "User not found: ghost@b.com", out.Response.Message)
	require.Zero(t, subs.calls)
	require.Equal(t, models.WebhookLogStatusSuccess, audit.entries[0].Status)
}

func TestHandle_InformationalEvent(t *testing.T) {
	accounts := &stubAccounts{subscribers: map[string]*models.Subscriber{"a@b.com": knownSubscriber()}}
	subs := &stubTransitions{}
	s, audit := newPipeline(nil, accounts, subs)

	out := s.Handle(context.Background(), []byte(`{"event":"subscription_renewal_upcoming","customer_email":"a@b.com"}`), "", "", "trace-1")

	require.Equal(t, http.StatusOK, out.HTTPStatus)
	require.True(t, out.Response.Success)
	require.Equal(t, "Informational event received: subscription_renewal_upcoming", out.Response.Message)
	require.NotNil(t, out.Response.UserID)
	require.Equal(t, "user-1", *out.Response.UserID)
	require.Zero(t, subs.calls)
	require.Equal(t, models.WebhookLogStatusSuccess, audit.entries[0].Status)
}

func TestHandle_UnrecognizedEvent(t *testing.T) {
	subs := &stubTransitions{}
	s, audit := newPipeline(nil, &stubAccounts{}, subs)

	out := s.Handle(context.Background(), []byte(`{"event":"mystery_event","customer_email":"a@b.com"}`), "", "", "trace-1")

	require.Equal(t, http.StatusOK, out.HTTPStatus)
	require.True(t, out.Response.Success)
	require.Equal(t, "Event type not handled: mystery_event", out.Response.Message)
	require.Zero(t, subs.calls)
	require.Equal(t, models.WebhookLogStatusSuccess, audit.entries[0].Status)
}

func TestHandle_ProcessingError(t *testing.T) {
	accounts := &stubAccounts{subscribers: map[string]*models.Subscriber{"a@b.com": knownSubscriber()}}
	subs := &stubTransitions{err: fmt.Errorf("db down")}
	s, audit := newPipeline(nil, accounts, subs)

	out := s.Handle(context.Background(), []byte(`{"event":"subscription_expired","customer_email":"a@b.com"}`), "", "", "trace-1")

	require.Equal(t, http.StatusInternalServerError, out.HTTPStatus)
	require.False(t, out.Response.Success)
	require.Contains(t, out.Response.Message, "Error processing webhook")
	require.Contains(t, out.Response.Message, "db down")
	require.Equal(t, models.WebhookLogStatusErrorProcessing, audit.entries[0].Status)
}

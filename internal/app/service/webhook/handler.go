package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/subgate/internal/app/service/account"
	"github.com/fatflowers/subgate/internal/app/service/subscriber"
	"github.com/fatflowers/subgate/internal/app/service/webhooklog"
	"github.com/fatflowers/subgate/internal/models"
	"github.com/fatflowers/subgate/pkg/config"
	"github.com/fatflowers/subgate/pkg/logctx"
	"github.com/fatflowers/subgate/pkg/metrics"
	"github.com/fatflowers/subgate/pkg/types"
)

// Response is the provider-facing webhook envelope.
type Response struct {
	Success        bool    `json:"success"`
	Message        string  `json:"message"`
	Timestamp      string  `json:"timestamp"`
	UserID         *string `json:"user_id,omitempty"`
	ProcessingTime string  `json:"processing_time,omitempty"`
}

// Outcome is what the HTTP layer writes back; the audit entry has already
// been recorded by the time Handle returns.
type Outcome struct {
	HTTPStatus int
	Response   *Response
}

// accountResolver is the slice of the account service the pipeline uses.
type accountResolver interface {
	FindByEmail(ctx context.Context, email string) (*models.Subscriber, error)
	ResolveOrCreate(ctx context.Context, email string, p *types.Payload) (*account.Resolution, error)
}

// subscriptionTransitioner applies one lifecycle transition to a resolved
// subscriber.
type subscriptionTransitioner interface {
	ApplyTransition(ctx context.Context, sub *models.Subscriber, accountCreated bool, class types.EventClass, p *types.Payload) (*subscriber.TransitionResult, error)
}

// auditRecorder persists one webhook audit entry, best effort.
type auditRecorder interface {
	Record(ctx context.Context, entry *models.WebhookLog)
}

// Service runs the webhook request pipeline: body decode, token check,
// signature check, field and email validation, event processing, audit log,
// response. Strictly linear and single-pass; any validation failure
// short-circuits with no state mutation. Retries are the sending platform's
// job (it retries on non-2xx).
type Service struct {
	cfg      *config.Config
	accounts accountResolver
	subs     subscriptionTransitioner
	logs     auditRecorder
	metrics  *metrics.Metrics
	Logger   *zap.SugaredLogger
	validate *validator.Validate
}

func NewService(
	cfg *config.Config,
	accounts *account.Service,
	subs *subscriber.Service,
	logs *webhooklog.Service,
	m *metrics.Metrics,
	log *zap.SugaredLogger,
) *Service {
	return &Service{
		cfg:      cfg,
		accounts: accounts,
		subs:     subs,
		logs:     logs,
		metrics:  m,
		Logger:   log,
		validate: validator.New(),
	}
}

// Handle processes one inbound webhook request end to end.
func (s *Service) Handle(ctx context.Context, rawBody []byte, signatureHeader, apiTokenParam, traceID string) *Outcome {
	start := time.Now()
	resp := &Response{Timestamp: time.Now().Format(time.RFC3339)}

	fail := func(status int, logStatus models.WebhookLogStatus, eventType, email, msg string) *Outcome {
		resp.Message = msg
		s.record(ctx, logStatus, eventType, email, nil, rawBody, resp, traceID)
		return &Outcome{HTTPStatus: status, Response: resp}
	}

	// JsonValidated
	p, err := types.ParsePayload(rawBody)
	if err != nil {
		return fail(http.StatusBadRequest, models.WebhookLogStatusInvalid, "", "", "Invalid JSON payload")
	}

	// TokenVerified (token before signature)
	if !verifyAPIToken(s.cfg.Webhook.APIToken, apiTokenParam) {
		logctx.FromCtx(ctx, s.Logger).Errorw("webhook api token rejected", "event", p.Event)
		return fail(http.StatusForbidden, models.WebhookLogStatusErrorAPIToken, p.Event, p.CustomerEmail, "Invalid or missing API token")
	}

	// SignatureVerified
	if !s.verifySignature(ctx, rawBody, signatureHeader) {
		return fail(http.StatusForbidden, models.WebhookLogStatusErrorSignature, p.Event, p.CustomerEmail, "Invalid webhook signature")
	}

	// FieldsValidated
	if p.Event == "" || p.CustomerEmail == "" {
		return fail(http.StatusBadRequest, models.WebhookLogStatusErrorValidation, p.Event, p.CustomerEmail, "Missing required fields: event or customer_email")
	}

	// EmailValidated
	if err := s.validate.Var(p.CustomerEmail, "email"); err != nil {
		return fail(http.StatusBadRequest, models.WebhookLogStatusErrorEmail, p.Event, p.CustomerEmail, "Invalid email format")
	}

	// Processed
	result, err := s.process(ctx, p)
	if err != nil {
		logctx.FromCtx(ctx, s.Logger).Errorw("webhook processing failed", "event", p.Event, "email", p.CustomerEmail, "error", err.Error())
		return fail(http.StatusInternalServerError, models.WebhookLogStatusErrorProcessing, p.Event, p.CustomerEmail,
			fmt.Sprintf("Error processing webhook: %v", err))
	}

	resp.Success = true
	resp.Message = result.Message
	resp.UserID = result.UserID
	resp.ProcessingTime = fmt.Sprintf("%.3fs", time.Since(start).Seconds())

	// Logged → Responded
	s.record(ctx, models.WebhookLogStatusSuccess, p.Event, p.CustomerEmail, result.UserID, rawBody, resp, traceID)
	return &Outcome{HTTPStatus: http.StatusOK, Response: resp}
}

type processResult struct {
	UserID  *string
	Message string
}

// process dispatches the classified event. Recovers panics into processing
// errors so an unexpected failure still reaches the audit log as
// error_processing.
func (s *Service) process(ctx context.Context, p *types.Payload) (result *processResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	class := types.ClassifyEvent(p.Event)

	switch class {
	case types.EventClassActivate:
		return s.processActivation(ctx, p)

	case types.EventClassDeactivate, types.EventClassRenew, types.EventClassPlanChange:
		sub, err := s.accounts.FindByEmail(ctx, p.CustomerEmail)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			// acknowledged but ineffective; not an error
			return &processResult{Message: fmt.Sprintf("User not found: %s", p.CustomerEmail)}, nil
		}
		tr, err := s.subs.ApplyTransition(ctx, sub, false, class, p)
		if err != nil {
			return nil, err
		}
		return &processResult{UserID: lo.ToPtr(tr.UserID), Message: tr.Message}, nil

	case types.EventClassInformational:
		return s.noopResult(ctx, p, fmt.Sprintf("Informational event received: %s", p.Event))

	default:
		return s.noopResult(ctx, p, fmt.Sprintf("Event type not handled: %s", p.Event))
	}
}

func (s *Service) processActivation(ctx context.Context, p *types.Payload) (*processResult, error) {
	res, err := s.accounts.ResolveOrCreate(ctx, p.CustomerEmail, p)
	if err != nil {
		return nil, err
	}
	if res.Deferred {
		return &processResult{Message: "Automation-only mode: account creation delegated to automation"}, nil
	}

	tr, err := s.subs.ApplyTransition(ctx, res.Subscriber, res.Created, types.EventClassActivate, p)
	if err != nil {
		return nil, err
	}
	return &processResult{UserID: lo.ToPtr(tr.UserID), Message: tr.Message}, nil
}

// noopResult acknowledges an event without touching state, attaching the
// user id when the email is already known.
func (s *Service) noopResult(ctx context.Context, p *types.Payload, msg string) (*processResult, error) {
	var userID *string
	if sub, err := s.accounts.FindByEmail(ctx, p.CustomerEmail); err == nil && sub != nil {
		userID = lo.ToPtr(sub.ID)
	}
	return &processResult{UserID: userID, Message: msg}, nil
}

func (s *Service) record(ctx context.Context, status models.WebhookLogStatus, eventType, email string, userID *string, rawBody []byte, resp *Response, traceID string) {
	respBody, _ := json.Marshal(resp)
	s.logs.Record(ctx, &models.WebhookLog{
		EventType:     eventType,
		CustomerEmail: email,
		UserID:        userID,
		TraceID:       traceID,
		Status:        status,
		RequestBody:   string(rawBody),
		ResponseBody:  string(respBody),
	})
	s.metrics.WebhookEvents.WithLabelValues(string(types.ClassifyEvent(eventType)), string(status)).Inc()
}

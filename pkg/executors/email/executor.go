// Package email implements the email send executor. It honors the
// contact's marketing opt-out, renders the stored template against the
// execution context and delivers through the configured mailer, or fakes
// the delivery on dry-run executions.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
	"github.com/cadencehq/cadence/pkg/protocol"
	"github.com/cadencehq/cadence/pkg/template"
)

// Config carries the org-level fields injected into every substitution
// context. Execution context values win over these.
type Config struct {
	CompanyName string
	LoginURL    string
}

type Executor struct {
	templates persistence.TemplateRepository
	mailer    protocol.Mailer
	config    Config
}

func NewExecutor(templates persistence.TemplateRepository, mailer protocol.Mailer, config Config) *Executor {
	return &Executor{templates: templates, mailer: mailer, config: config}
}

func (e *Executor) Execute(ctx context.Context, env protocol.ExecutionEnv, logger *slog.Logger) (*models.ActionResult, error) {
	execution := env.Execution

	if !execution.MarketingOptIn() {
		logger.InfoContext(ctx, "Contact opted out, skipping email", "node_id", env.Node.ID)

		return &models.ActionResult{Skipped: true, Reason: "opt_out"}, nil
	}

	templateID := env.Node.DataString("templateId")
	if templateID == "" {
		return nil, errors.New("email action missing templateId")
	}

	tmpl, err := e.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch template %s: %w", templateID, err)
	}

	// Node-level subject overrides the template subject.
	subject := env.Node.DataString("subject")
	if subject == "" {
		subject = tmpl.Subject
	}

	vars := e.substitutionVars(execution)
	subject = template.Render(subject, vars)
	htmlBody := template.Render(tmpl.HTML, vars)
	textBody := template.StripHTML(htmlBody)

	if execution.DryRun() {
		logger.InfoContext(ctx, "DRY RUN: mocking email send",
			"to", execution.Email(),
			"subject", subject)

		return &models.ActionResult{
			Data: map[string]any{"email_sent": true, "dry_run": true, "message_id": "mock-message-id"},
		}, nil
	}

	logger.InfoContext(ctx, "Sending email", "to", execution.Email(), "template_id", templateID)

	metadata := map[string]string{
		"automation_id": execution.AutomationID,
		"execution_id":  execution.ID,
		"node_id":       env.Node.ID,
	}
	if env.FunnelStepID != "" {
		metadata["funnel_step_id"] = env.FunnelStepID
	}

	messageID, err := e.mailer.Send(ctx, protocol.EmailMessage{
		To:       execution.Email(),
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: textBody,
		Metadata: metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	logger.InfoContext(ctx, "Email sent", "message_id", messageID)

	return &models.ActionResult{
		Data: map[string]any{"email_sent": true, "message_id": messageID},
	}, nil
}

// substitutionVars merges the execution context over the fixed org fields.
func (e *Executor) substitutionVars(execution *models.Execution) map[string]any {
	vars := map[string]any{
		"first_name":   "Friend",
		"company_name": e.config.CompanyName,
		"current_year": strconv.Itoa(time.Now().Year()),
		"login_url":    e.config.LoginURL,
	}

	for k, v := range execution.Context {
		if v == nil {
			continue
		}

		if s, ok := v.(string); ok && s == "" {
			continue
		}

		vars[k] = v
	}

	return vars
}

type Factory struct {
	templates persistence.TemplateRepository
	mailer    protocol.Mailer
	config    Config
}

func NewFactory(templates persistence.TemplateRepository, mailer protocol.Mailer, config Config) *Factory {
	return &Factory{templates: templates, mailer: mailer, config: config}
}

func (*Factory) ID() string {
	return models.ActionTypeEmail
}

func (f *Factory) Create(_ map[string]any) (protocol.ActionExecutor, error) {
	return NewExecutor(f.templates, f.mailer, f.config), nil
}

package email_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	emailexecutor "github.com/cadencehq/cadence/pkg/executors/email"
	"github.com/cadencehq/cadence/pkg/mailer"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence/file"
	"github.com/cadencehq/cadence/pkg/protocol"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T) (*file.TemplateRepository, *mailer.Sandbox, *emailexecutor.Executor, *models.EmailTemplate) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	templates, ok := p.Templates().(*file.TemplateRepository)
	require.True(t, ok)

	tmpl := &models.EmailTemplate{
		Subject: "Welcome to {{company_name}}, {{first_name}}",
		HTML:    "<h1>Hi {{first_name}}</h1><p>Sign in at {{login_url}}</p>",
	}
	require.NoError(t, templates.Save(context.Background(), tmpl))

	sandbox := mailer.NewSandbox()
	executor := emailexecutor.NewExecutor(templates, sandbox, emailexecutor.Config{
		CompanyName: "Acme Learning",
		LoginURL:    "https://acme.example.com/signin",
	})

	return templates, sandbox, executor, tmpl
}

func emailEnv(templateID string, context map[string]any) protocol.ExecutionEnv {
	return protocol.ExecutionEnv{
		Execution: &models.Execution{
			ID:           "exec-1",
			AutomationID: "auto-1",
			ContactID:    "contact-1",
			Context:      context,
		},
		Node: &models.Node{
			ID:   "send-1",
			Type: models.NodeTypeAction,
			Data: map[string]any{"actionType": "email", "templateId": templateID},
		},
	}
}

func TestEmail_SendsRenderedTemplate(t *testing.T) {
	_, sandbox, executor, tmpl := setup(t)

	result, err := executor.Execute(context.Background(), emailEnv(tmpl.ID, map[string]any{
		"email":      "ana@example.com",
		"first_name": "Ana",
	}), discardLogger())
	require.NoError(t, err)

	assert.Equal(t, true, result.Data["email_sent"])
	assert.Equal(t, "sandbox-1", result.Data["message_id"])

	messages := sandbox.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "ana@example.com", messages[0].To)
	assert.Equal(t, "Welcome to Acme Learning, Ana", messages[0].Subject)
	assert.Equal(t, "<h1>Hi Ana</h1><p>Sign in at https://acme.example.com/signin</p>", messages[0].HTMLBody)
	assert.Equal(t, "Hi AnaSign in at https://acme.example.com/signin", messages[0].TextBody)
	assert.Equal(t, "exec-1", messages[0].Metadata["execution_id"])
	assert.Equal(t, "auto-1", messages[0].Metadata["automation_id"])
	assert.Equal(t, "send-1", messages[0].Metadata["node_id"])
	assert.NotContains(t, messages[0].Metadata, "funnel_step_id")
}

func TestEmail_FunnelStepMetadataPassthrough(t *testing.T) {
	_, sandbox, executor, tmpl := setup(t)

	env := emailEnv(tmpl.ID, map[string]any{"email": "ana@example.com"})
	env.FunnelStepID = "step-7"

	_, err := executor.Execute(context.Background(), env, discardLogger())
	require.NoError(t, err)

	messages := sandbox.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "step-7", messages[0].Metadata["funnel_step_id"])
}

func TestEmail_FirstNameDefaultsToFriend(t *testing.T) {
	_, sandbox, executor, tmpl := setup(t)

	_, err := executor.Execute(context.Background(), emailEnv(tmpl.ID, map[string]any{
		"email": "ana@example.com",
	}), discardLogger())
	require.NoError(t, err)

	messages := sandbox.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "Welcome to Acme Learning, Friend", messages[0].Subject)
}

func TestEmail_SubjectOverride(t *testing.T) {
	_, sandbox, executor, tmpl := setup(t)

	env := emailEnv(tmpl.ID, map[string]any{
		"email":      "ana@example.com",
		"first_name": "Ana",
	})
	env.Node.Data["subject"] = "Quick note for {{first_name}}"

	_, err := executor.Execute(context.Background(), env, discardLogger())
	require.NoError(t, err)

	messages := sandbox.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "Quick note for Ana", messages[0].Subject)
}

func TestEmail_OptOutSkips(t *testing.T) {
	_, sandbox, executor, tmpl := setup(t)

	result, err := executor.Execute(context.Background(), emailEnv(tmpl.ID, map[string]any{
		"email":            "ana@example.com",
		"marketing_opt_in": false,
	}), discardLogger())
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Equal(t, "opt_out", result.Reason)
	assert.Empty(t, sandbox.Messages())
}

func TestEmail_AbsentOptInStillSends(t *testing.T) {
	// The flag is tri-state: only an explicit false suppresses the send.
	_, sandbox, executor, tmpl := setup(t)

	_, err := executor.Execute(context.Background(), emailEnv(tmpl.ID, map[string]any{
		"email": "ana@example.com",
	}), discardLogger())
	require.NoError(t, err)
	assert.Len(t, sandbox.Messages(), 1)
}

func TestEmail_MissingTemplateIDFails(t *testing.T) {
	_, sandbox, executor, _ := setup(t)

	env := emailEnv("", map[string]any{"email": "ana@example.com"})
	delete(env.Node.Data, "templateId")

	_, err := executor.Execute(context.Background(), env, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing templateId")
	assert.Empty(t, sandbox.Messages())
}

func TestEmail_UnknownTemplateFails(t *testing.T) {
	_, sandbox, executor, _ := setup(t)

	_, err := executor.Execute(context.Background(), emailEnv("77777777-7777-7777-7777-777777777777", map[string]any{
		"email": "ana@example.com",
	}), discardLogger())
	require.Error(t, err)
	assert.Empty(t, sandbox.Messages())
}

func TestEmail_DryRunNeverCallsMailer(t *testing.T) {
	_, sandbox, executor, tmpl := setup(t)

	result, err := executor.Execute(context.Background(), emailEnv(tmpl.ID, map[string]any{
		"email":   "ana@example.com",
		"dry_run": true,
	}), discardLogger())
	require.NoError(t, err)

	assert.Equal(t, true, result.Data["email_sent"])
	assert.Equal(t, true, result.Data["dry_run"])
	assert.Equal(t, "mock-message-id", result.Data["message_id"])
	assert.Empty(t, sandbox.Messages())
}

func TestEmail_UnresolvedTokensLeftVerbatim(t *testing.T) {
	templates, sandbox, _, _ := setup(t)

	tmpl := &models.EmailTemplate{
		Subject: "Hi {{first_name}}, {{unknown.path}}",
		HTML:    "<p>{{unknown.path}}</p>",
	}
	require.NoError(t, templates.Save(context.Background(), tmpl))

	executor := emailexecutor.NewExecutor(templates, sandbox, emailexecutor.Config{})

	_, err := executor.Execute(context.Background(), emailEnv(tmpl.ID, map[string]any{
		"email":      "ana@example.com",
		"first_name": "Ana",
	}), discardLogger())
	require.NoError(t, err)

	messages := sandbox.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "Hi Ana, {{unknown.path}}", messages[0].Subject)
}

func TestEmailFactory(t *testing.T) {
	templates, sandbox, _, _ := setup(t)

	factory := emailexecutor.NewFactory(templates, sandbox, emailexecutor.Config{})
	assert.Equal(t, "email", factory.ID())

	executor, err := factory.Create(nil)
	require.NoError(t, err)
	assert.NotNil(t, executor)
}

package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymcheckin/internal/domain"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSESMailer_Send(t *testing.T) {
	client := &fakeSES{}
	m := newSESMailer(client, MailerConfig{FromAddress: "desk@gym.test", FromName: "Front Desk"}, discardLogger())

	err := m.Send("owner@gym.test", "subject", "<p>hi</p>", "hi")
	require.NoError(t, err)
	require.NotNil(t, client.input)
	assert.Equal(t, "Front Desk <desk@gym.test>", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"owner@gym.test"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "<p>hi</p>", aws.ToString(client.input.Message.Body.Html.Data))
	assert.Equal(t, "hi", aws.ToString(client.input.Message.Body.Text.Data))

	client.err = errors.New("throttled")
	require.Error(t, m.Send("owner@gym.test", "subject", "", "hi"))
}

func TestNewMailer_Providers(t *testing.T) {
	m, err := NewMailer(MailerConfig{Provider: "noop"}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &noopMailer{}, m)

	m, err = NewMailer(MailerConfig{Provider: "carrier-pigeon"}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &noopMailer{}, m)

	_, err = NewMailer(MailerConfig{Provider: "ses"}, discardLogger())
	require.Error(t, err)

	m, err = NewMailer(MailerConfig{Provider: "ses", SES: SESConfig{Region: "eu-west-1"}}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &sesMailer{}, m)
}

func TestTemplateRenderer_CapacityAlert(t *testing.T) {
	r := NewTemplateRenderer()
	subject, html, text, err := r.Render("capacity_alert", domain.CapacityAlertEmailData{
		FacilityID: "downtown",
		Count:      64,
		Limit:      80,
		Percent:    80,
		Status:     "warning",
		Previous:   "ok",
	})
	require.NoError(t, err)
	assert.Equal(t, "[downtown] Occupancy warning: 64/80 (80%)", subject)
	assert.Contains(t, html, "<strong>downtown</strong>")
	assert.Contains(t, text, "Inside now: 64")

	_, _, _, err = r.Render("missing", nil)
	require.Error(t, err)
}

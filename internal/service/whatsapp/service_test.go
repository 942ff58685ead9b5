package whatsapp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/prodledger/internal/config"
	"github.com/mamadbah2/prodledger/internal/domain/models"
	client "github.com/mamadbah2/prodledger/pkg/clients/whatsapp"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) SendTextMessage(ctx context.Context, req client.SendTextMessageRequest) (*client.SendTextMessageResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*client.SendTextMessageResponse)
	return resp, args.Error(1)
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error) {
	args := m.Called(ctx, cmd, sender)
	return args.String(0), args.Error(1)
}

func textPayload(from, body string) models.WebhookPayload {
	return models.WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []models.WebhookEntry{{
			ID: "entry",
			Changes: []models.WebhookChange{{
				Field: "messages",
				Value: models.WebhookValue{
					MessagingProduct: "whatsapp",
					Messages: []models.InboundMessage{{
						From: from, ID: "wamid.1", Type: "text", Text: &models.TextContent{Body: body},
					}},
				},
			}},
		}},
	}
}

func TestVerifyWebhookToken(t *testing.T) {
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{VerifyToken: "secret"}, nil, nil, nil)

	challenge, err := svc.VerifyWebhookToken("subscribe", "secret", "42")
	require.NoError(t, err)
	assert.Equal(t, "42", challenge)

	_, err = svc.VerifyWebhookToken("subscribe", "wrong", "42")
	assert.Error(t, err)
	_, err = svc.VerifyWebhookToken("unsubscribe", "secret", "42")
	assert.Error(t, err)
	_, err = svc.VerifyWebhookToken("", "", "42")
	assert.Error(t, err)
}

func TestHandleWebhookRepliesWithDispatcherOutput(t *testing.T) {
	dispatcher := new(mockDispatcher)
	dispatcher.On("HandleCommand", mock.Anything, mock.MatchedBy(func(cmd models.Command) bool {
		return cmd.Type == models.CommandReport
	}), "5511999").Return("Production summary: no data available.", nil).Once()

	wa := new(mockClient)
	wa.On("SendTextMessage", mock.Anything, client.SendTextMessageRequest{
		To: "5511999", Body: "Production summary: no data available.",
	}).Return(&client.SendTextMessageResponse{}, nil).Once()

	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, wa, dispatcher, nil)
	require.NoError(t, svc.HandleWebhook(context.Background(), textPayload("5511999", "/report")))

	dispatcher.AssertExpectations(t)
	wa.AssertExpectations(t)
}

func TestHandleWebhookReportsDispatcherFailure(t *testing.T) {
	dispatcher := new(mockDispatcher)
	dispatcher.On("HandleCommand", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("disk full")).Once()

	wa := new(mockClient)
	wa.On("SendTextMessage", mock.Anything, mock.Anything).Return(&client.SendTextMessageResponse{}, nil).Once()

	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, wa, dispatcher, nil)
	err := svc.HandleWebhook(context.Background(), textPayload("5511999", "/prod d M1 Manhã 1 0"))
	assert.ErrorContains(t, err, "disk full")
	wa.AssertExpectations(t)
}

func TestHandleWebhookWithoutClient(t *testing.T) {
	dispatcher := new(mockDispatcher)
	dispatcher.On("HandleCommand", mock.Anything, mock.Anything, mock.Anything).Return("ok", nil).Once()

	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, nil, dispatcher, nil)
	assert.NoError(t, svc.HandleWebhook(context.Background(), textPayload("5511999", "/help")))

	err := svc.SendOutbound(context.Background(), models.OutboundMessageRequest{To: "1", Message: "hi"})
	assert.ErrorIs(t, err, ErrMessagingDisabled)
}

func TestHandleWebhookIgnoresNonTextMessages(t *testing.T) {
	dispatcher := new(mockDispatcher)
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, nil, dispatcher, nil)

	payload := textPayload("5511999", "")
	payload.Entry[0].Changes[0].Value.Messages[0].Text = nil
	payload.Entry[0].Changes[0].Value.Messages[0].Type = "image"

	assert.NoError(t, svc.HandleWebhook(context.Background(), payload))
	dispatcher.AssertNotCalled(t, "HandleCommand", mock.Anything, mock.Anything, mock.Anything)
}

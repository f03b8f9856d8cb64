package twilio

import (
	"github.com/Daskott/luna/shared"
	"github.com/pkg/errors"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// ClientWrapper sends SMS alerts through a Twilio messaging service.
type ClientWrapper struct {
	api    messageCreator
	config shared.TwilioConfig
}

// NewClient returns nil when no Twilio account is configured, which disables SMS.
func NewClient(config shared.TwilioConfig) *ClientWrapper {
	if config.AccountSid == "" {
		return nil
	}

	client := twilio.NewRestClientWithParams(twilio.RestClientParams{
		Username: config.AccountSid,
		Password: config.AuthToken,
	})

	return &ClientWrapper{
		api:    client.ApiV2010,
		config: config,
	}
}

func (cw *ClientWrapper) SendMessage(to, msg string) error {
	params := &openapi.CreateMessageParams{}
	params.SetMessagingServiceSid(cw.config.MessagingServiceSid)
	params.SetTo(to)
	params.SetBody(msg)

	resp, err := cw.api.CreateMessage(params)
	if err != nil {
		return errors.Wrapf(err, "twilio: sending to %v", to)
	}

	if resp != nil && resp.ErrorMessage != nil && *resp.ErrorMessage != "" {
		return errors.Errorf("twilio: sending to %v: %v", to, *resp.ErrorMessage)
	}

	return nil
}

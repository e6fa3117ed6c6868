package slackapi

import "github.com/slack-go/slack"

// Identifiers of the API-key prompt. The interaction handler reads the
// submitted value back from state.values[APIKeyBlockID][APIKeyActionID].
const (
	APIKeyBlockID  = "api_key_input"
	APIKeyActionID = "api_key_input_action"
	SubmitActionID = "submit_action"
)

const apiKeyPromptText = "*Please enter your API Key*\n" +
	"API Key can be issued <https://platform.openai.com/account/api-keys|here>"

// APIKeyPromptBlocks renders the ephemeral form asking a user for their
// completion API key.
func APIKeyPromptBlocks() []slack.Block {
	input := slack.NewInputBlock(
		APIKeyBlockID,
		slack.NewTextBlockObject(slack.PlainTextType, "API Key", false, false),
		nil,
		slack.NewPlainTextInputBlockElement(
			slack.NewTextBlockObject(slack.PlainTextType, "Enter your API Key", false, false),
			APIKeyActionID,
		),
	)

	submit := slack.NewButtonBlockElement(SubmitActionID, "submit",
		slack.NewTextBlockObject(slack.PlainTextType, "Submit", false, false),
	).WithStyle(slack.StylePrimary)

	return []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, apiKeyPromptText, false, false), nil, nil),
		input,
		slack.NewActionBlock("", submit),
	}
}

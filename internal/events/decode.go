package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// ErrMalformedDelivery is returned for bodies that are not a Slack delivery.
var ErrMalformedDelivery = errors.New("malformed delivery")

// Delivery is a raw webhook call.
type Delivery struct {
	Body        []byte
	ContentType string
}

// envelope holds the Events API fields needed before typed decoding.
type envelope struct {
	Token     string `json:"token"`
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	EventID   string `json:"event_id"`
	Event     struct {
		Type string `json:"type"`
	} `json:"event"`
}

// Decode turns a delivery into its token and typed Event.
func Decode(d Delivery) (token string, ev Event, err error) {
	if isForm(d.ContentType) {
		return decodeInteraction(d.Body)
	}
	return decodeEventsAPI(d.Body)
}

func isForm(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/x-www-form-urlencoded"
}

func decodeEventsAPI(body []byte) (string, Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedDelivery, err)
	}

	switch env.Type {
	case slackevents.URLVerification:
		return env.Token, URLVerification{Challenge: env.Challenge}, nil
	case slackevents.CallbackEvent:
	default:
		return env.Token, Other{Type: env.Type}, nil
	}

	if env.EventID == "" {
		return env.Token, nil, fmt.Errorf("%w: event_id missing", ErrMalformedDelivery)
	}

	parsed, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		// inner types slack-go does not model still route as Other
		return env.Token, Other{Type: env.Event.Type, ID: env.EventID}, nil
	}
	switch inner := parsed.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		return env.Token, newAppMention(env.EventID, inner), nil
	case *slackevents.MessageEvent:
		return env.Token, newMessage(env.EventID, inner), nil
	default:
		return env.Token, Other{Type: parsed.InnerEvent.Type, ID: env.EventID}, nil
	}
}

func decodeInteraction(body []byte) (string, Event, error) {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedDelivery, err)
	}
	payload := form.Get("payload")
	if strings.TrimSpace(payload) == "" {
		return "", nil, fmt.Errorf("%w: payload missing", ErrMalformedDelivery)
	}

	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &cb); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedDelivery, err)
	}
	if cb.TriggerID == "" {
		return cb.Token, nil, fmt.Errorf("%w: trigger_id missing", ErrMalformedDelivery)
	}
	if cb.Type != slack.InteractionTypeBlockActions {
		return cb.Token, Other{Type: string(cb.Type), ID: cb.TriggerID}, nil
	}

	ba := BlockAction{
		TriggerID:   cb.TriggerID,
		UserID:      cb.User.ID,
		Channel:     cb.Channel.ID,
		ResponseURL: cb.ResponseURL,
		Values:      map[string]map[string]string{},
	}
	for _, a := range cb.ActionCallback.BlockActions {
		if a == nil {
			continue
		}
		ba.Actions = append(ba.Actions, Action{BlockID: a.BlockID, ActionID: a.ActionID, Value: a.Value})
	}
	if cb.BlockActionState != nil {
		for blockID, actions := range cb.BlockActionState.Values {
			m := make(map[string]string, len(actions))
			for actionID, a := range actions {
				m[actionID] = a.Value
			}
			ba.Values[blockID] = m
		}
	}
	return cb.Token, ba, nil
}

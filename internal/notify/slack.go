package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultSlackAPI = "https://slack.com/api/chat.postMessage"

var slackEmoji = map[Status]string{
	StatusStarted:   ":hourglass_flowing_sand:",
	StatusCompleted: ":white_check_mark:",
	StatusTimeout:   ":warning:",
	StatusFailed:    ":x:",
}

var slackColor = map[Status]string{
	StatusStarted:   "#3498db",
	StatusCompleted: "#2ecc71",
	StatusTimeout:   "#f39c12",
	StatusFailed:    "#e74c3c",
}

// Slack posts session transitions via chat.postMessage.
type Slack struct {
	Token    string
	Channel  string
	ThreadTS string // optional, threads follow-ups under one message
	BotName  string
	APIURL   string // override for tests
}

func (s *Slack) Name() string { return "slack" }

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type string    `json:"type"`
	Text slackText `json:"text"`
}

type slackAttachment struct {
	Color string `json:"color"`
	Text  string `json:"text"`
}

type slackPayload struct {
	Channel     string            `json:"channel"`
	Username    string            `json:"username,omitempty"`
	ThreadTS    string            `json:"thread_ts,omitempty"`
	Blocks      []slackBlock      `json:"blocks"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (s *Slack) Send(ctx context.Context, ev Event) error {
	blocks := []slackBlock{
		{
			Type: "header",
			Text: slackText{
				Type: "plain_text",
				Text: fmt.Sprintf("%s %s - %s", slackEmoji[ev.Status], ev.Title, ev.Status),
			},
		},
		{
			Type: "section",
			Text: slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*Workflow:* %s\n*Repository:* %s\n*Message:* %s",
					ev.Workflow, ev.Repository, ev.Message),
			},
		},
	}
	if ev.URL != "" {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("<%s|Open Interactive Portal>", ev.URL),
			},
		})
	}

	payload := slackPayload{
		Channel:  s.Channel,
		Username: s.BotName,
		ThreadTS: s.ThreadTS,
		Blocks:   blocks,
		Attachments: []slackAttachment{
			{Color: slackColor[ev.Status], Text: "Run ID: " + ev.RunID},
		},
	}

	body, err := json.Marshal(&payload)
	if err != nil {
		return err
	}

	apiURL := s.APIURL
	if apiURL == "" {
		apiURL = defaultSlackAPI
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack api status %d", resp.StatusCode)
	}

	var result slackResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("slack api response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("slack api error: %s", result.Error)
	}

	return nil
}

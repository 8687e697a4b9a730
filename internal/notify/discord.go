package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Discord embed colors are decimal RGB values.
var discordColor = map[Status]int{
	StatusStarted:   3447003,  // blue
	StatusCompleted: 3066993,  // green
	StatusTimeout:   15844367, // orange
	StatusFailed:    15158332, // red
}

var discordEmoji = map[Status]string{
	StatusStarted:   "⏳",
	StatusCompleted: "✅",
	StatusTimeout:   "⚠️",
	StatusFailed:    "❌",
}

// Discord posts session transitions to a webhook.
type Discord struct {
	WebhookURL string
	ThreadID   string // optional, appended as ?thread_id=
	Username   string
}

func (d *Discord) Name() string { return "discord" }

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields"`
}

type discordPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

func (d *Discord) Send(ctx context.Context, ev Event) error {
	embed := discordEmbed{
		Title:       fmt.Sprintf("%s %s - %s", discordEmoji[ev.Status], ev.Title, ev.Status),
		Description: ev.Message,
		Color:       discordColor[ev.Status],
		Fields: []discordField{
			{Name: "Workflow", Value: ev.Workflow, Inline: true},
			{Name: "Repository", Value: ev.Repository, Inline: true},
			{Name: "Run ID", Value: ev.RunID},
		},
	}
	if ev.URL != "" {
		embed.Fields = append(embed.Fields, discordField{
			Name:  "Portal URL",
			Value: fmt.Sprintf("[Open Interactive Portal](%s)", ev.URL),
		})
	}

	body, err := json.Marshal(&discordPayload{
		Username: d.Username,
		Embeds:   []discordEmbed{embed},
	})
	if err != nil {
		return err
	}

	url := d.WebhookURL
	if d.ThreadID != "" {
		url += "?thread_id=" + d.ThreadID
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook status %d: %s", resp.StatusCode, msg)
	}

	return nil
}

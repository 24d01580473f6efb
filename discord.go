package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// DiscordAudit posts audit records to Discord, either through a webhook or
// as a bot message in a channel.
type DiscordAudit struct {
	session      *discordgo.Session
	webhookID    string
	webhookToken string
	channelID    string
}

// NewDiscordWebhookAudit posts through a webhook URL of the form
// https://discord.com/api/webhooks/<id>/<token>.
func NewDiscordWebhookAudit(webhookURL string) (*DiscordAudit, error) {
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	// Webhook execution is authorized by the token in the path, not the session.
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discordgo session: %w", err)
	}
	return &DiscordAudit{session: session, webhookID: id, webhookToken: token}, nil
}

// NewDiscordBotAudit posts as a bot user into channelID.
func NewDiscordBotAudit(token, channelID string) (*DiscordAudit, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discordgo session: %w", err)
	}
	return &DiscordAudit{session: session, channelID: channelID}, nil
}

func (d *DiscordAudit) Name() string { return "Discord" }

func (d *DiscordAudit) Send(ctx context.Context, rec AuditRecord) error {
	msg := formatAuditRecord(rec)

	if d.webhookID != "" {
		_, err := d.session.WebhookExecute(d.webhookID, d.webhookToken, false, &discordgo.WebhookParams{
			Content: msg,
		}, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("discord webhook: %w", err)
		}
		return nil
	}

	if _, err := d.session.ChannelMessageSend(d.channelID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send to Discord: %w", err)
	}
	return nil
}

func parseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("parse webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("webhook url %q has no /webhooks/<id>/<token> path", u.Redacted())
}

func formatAuditRecord(r AuditRecord) string {
	return fmt.Sprintf("**TK joke triggered** (%s)\nPlayer: %s (%s)\nMessage: %s\nJoke: %s\n<t:%d:R>",
		r.Server, r.PlayerName, r.PlayerID, r.Message, r.Content, r.Time.Unix())
}

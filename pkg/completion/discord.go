// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package completion

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/teradata-labs/warp/pkg/types"
)

const (
	// DiscordID is the id of the Discord handler.
	DiscordID = "discord"

	// DiscordChannelKey is the AgentContext.Metadata key holding the target channel.
	DiscordChannelKey = "discord_channel_id"

	maxEmbedDescription = 4000
)

// ErrNoDiscordChannel is returned when the agent has no channel in its metadata.
var ErrNoDiscordChannel = errors.New("agent metadata has no " + DiscordChannelKey)

// EmbedSender is the part of *discordgo.Session the handler uses.
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordHandler posts the outcome of an agent to a Discord channel.
type DiscordHandler struct {
	session EmbedSender
}

// NewDiscordHandler creates a handler sending through session.
func NewDiscordHandler(session EmbedSender) *DiscordHandler {
	return &DiscordHandler{session: session}
}

// NewDiscordSession opens a bot session for the handler.
func NewDiscordSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return session, nil
}

func (h *DiscordHandler) ID() string {
	return DiscordID
}

func (h *DiscordHandler) Notify(ctx context.Context, agent *types.AgentContext) error {
	channelID := agent.Metadata[DiscordChannelKey]
	if channelID == "" {
		return ErrNoDiscordChannel
	}
	_, err := h.session.ChannelMessageSendEmbed(channelID, embedFor(agent), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	return nil
}

func embedFor(agent *types.AgentContext) *discordgo.MessageEmbed {
	title := agent.Name
	if title == "" {
		title = agent.AgentID
	}

	color := 0xF1C40F // paused
	switch agent.State {
	case types.StateCompleted:
		title = "✅ " + title + " completed"
		color = 0x2ECC71
	case types.StateError:
		title = "❌ " + title + " failed"
		color = 0xE74C3C
	case types.StateHILFeedback:
		title = "❓ " + title + " needs feedback"
	default:
		title = "⏸️ " + title + " paused (" + string(agent.State) + ")"
	}

	description := agent.Reason()
	if utf8.RuneCountInString(description) > maxEmbedDescription {
		description = string([]rune(description)[:maxEmbedDescription]) + "…"
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Agent", Value: agent.AgentID, Inline: true},
			{Name: "Iterations", Value: fmt.Sprintf("%d", agent.Iterations), Inline: true},
			{Name: "Cost", Value: fmt.Sprintf("$%.4f", agent.Cost), Inline: true},
		},
	}
}

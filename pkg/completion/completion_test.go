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
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/warp/pkg/types"
)

type recordingHandler struct {
	id  string
	mu  *sync.Mutex
	got *[]string
	err error
}

func (h recordingHandler) ID() string { return h.id }

func (h recordingHandler) Notify(ctx context.Context, agent *types.AgentContext) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.got = append(*h.got, h.id+":"+string(agent.State))
	return h.err
}

func TestRegistry_Lifecycle(t *testing.T) {
	var buf bytes.Buffer
	r := NewRegistry(zaptest.NewLogger(t), ConsoleDefaults(&buf))
	assert.Equal(t, []string{ConsoleID}, r.IDs())

	var mu sync.Mutex
	var got []string
	r.Register("gitlab", func() Handler { return recordingHandler{id: "gitlab", mu: &mu, got: &got} })
	assert.Equal(t, []string{ConsoleID, "gitlab"}, r.IDs())
	require.NotNil(t, r.Get("gitlab"))

	assert.Nil(t, r.Get("missing"))
	assert.Nil(t, r.Get(""))

	r.Reset()
	assert.Equal(t, []string{ConsoleID}, r.IDs())
	assert.Nil(t, r.Get("gitlab"))

	// Overriding a default survives Init but not Reset.
	r.Register(ConsoleID, func() Handler { return recordingHandler{id: ConsoleID, mu: &mu, got: &got} })
	r.Init()
	_, isConsole := r.Get(ConsoleID).(*ConsoleHandler)
	assert.False(t, isConsole)
	r.Reset()
	_, isConsole = r.Get(ConsoleID).(*ConsoleHandler)
	assert.True(t, isConsole)
}

func TestRegistry_IsolatedInstances(t *testing.T) {
	a := NewRegistry(nil, nil)
	b := NewRegistry(nil, nil)
	a.Register("only-a", func() Handler { return NewConsoleHandler(nil) })
	assert.Equal(t, []string{"only-a"}, a.IDs())
	assert.Empty(t, b.IDs())
}

func TestRegistry_NotifyAllSwallowsErrors(t *testing.T) {
	var mu sync.Mutex
	var got []string
	r := NewRegistry(zaptest.NewLogger(t), nil)
	r.Register("bad", func() Handler {
		return recordingHandler{id: "bad", mu: &mu, got: &got, err: errors.New("webhook down")}
	})
	r.Register("good", func() Handler { return recordingHandler{id: "good", mu: &mu, got: &got} })

	r.NotifyAll(context.Background(), &types.AgentContext{
		AgentID:           "a1",
		State:             types.StateCompleted,
		CompletedHandlers: []string{"bad", "unknown", "good"},
	})
	assert.Equal(t, []string{"bad:completed", "good:completed"}, got)
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewConsoleHandler(&buf)

	require.NoError(t, h.Notify(context.Background(), &types.AgentContext{
		AgentID: "a1", Name: "report", State: types.StateCompleted, Output: "done", Iterations: 3, Cost: 0.5,
	}))
	assert.Contains(t, buf.String(), "Agent report completed: done")
	assert.Contains(t, buf.String(), "iterations=3 cost=$0.5000")

	buf.Reset()
	require.NoError(t, h.Notify(context.Background(), &types.AgentContext{
		AgentID: "a2", State: types.StateHILFeedback, FeedbackQuestion: "which branch?",
	}))
	assert.Contains(t, buf.String(), "Agent a2 needs feedback: which branch?")
}

type fakeSession struct {
	channel string
	embed   *discordgo.MessageEmbed
	err     error
}

func (f *fakeSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.channel = channelID
	f.embed = embed
	return &discordgo.Message{ID: "m1"}, f.err
}

func TestDiscordHandler(t *testing.T) {
	session := &fakeSession{}
	h := NewDiscordHandler(session)

	agent := &types.AgentContext{
		AgentID:  "a1",
		State:    types.StateError,
		Error:    "provider down",
		Metadata: map[string]string{DiscordChannelKey: "chan-9"},
	}
	require.NoError(t, h.Notify(context.Background(), agent))
	assert.Equal(t, "chan-9", session.channel)
	assert.Contains(t, session.embed.Title, "failed")
	assert.Equal(t, "provider down", session.embed.Description)
	assert.Equal(t, 0xE74C3C, session.embed.Color)

	agent.Metadata = nil
	assert.ErrorIs(t, h.Notify(context.Background(), agent), ErrNoDiscordChannel)

	session.err = errors.New("401 unauthorized")
	agent.Metadata = map[string]string{DiscordChannelKey: "chan-9"}
	assert.ErrorContains(t, h.Notify(context.Background(), agent), "failed to send discord message")
}

func TestDiscordEmbed_TruncatesOnRuneBoundary(t *testing.T) {
	agent := &types.AgentContext{
		AgentID: "a1",
		State:   types.StateError,
		Error:   "x" + strings.Repeat("é", maxEmbedDescription),
	}
	embed := embedFor(agent)

	assert.True(t, utf8.ValidString(embed.Description))
	assert.True(t, strings.HasSuffix(embed.Description, "é…"))
	assert.Equal(t, maxEmbedDescription+1, utf8.RuneCountInString(embed.Description))

	agent.Error = strings.Repeat("é", maxEmbedDescription)
	assert.Equal(t, agent.Error, embedFor(agent).Description)
}

package main

import (
	"testing"
	"time"

	"yomiage-bot/backend/pkg/config"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestBotIntents(t *testing.T) {
	intents := botIntents()

	for name, want := range map[string]discordgo.Intent{
		"guilds":             discordgo.IntentsGuilds,
		"guild_messages":     discordgo.IntentsGuildMessages,
		"guild_voice_states": discordgo.IntentsGuildVoiceStates,
		"message_content":    discordgo.IntentsMessageContent,
	} {
		assert.NotZero(t, intents&want, name)
	}
	assert.Zero(t, intents&discordgo.IntentsDirectMessages, "DMs are not read aloud")
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		TTSTempDir:          "/tmp/yomiage",
		SynthesisRetryDelay: 250 * time.Millisecond,
		SynthesisRatePerSec: 3,
		DefaultVoice:        "nova",
		ReconnectAttempts:   4,
		ReconnectDelay:      time.Second,
	}

	synth := synthesizerOptions(cfg)
	assert.Equal(t, "/tmp/yomiage", synth.TempDir)
	assert.Equal(t, 250*time.Millisecond, synth.RetryDelay)
	assert.Equal(t, 3.0, synth.RatePerSec)
	assert.Equal(t, "nova", synth.DefaultVoice)

	reg := registryOptions(cfg)
	assert.Equal(t, 4, reg.ReconnectAttempts)
	assert.Equal(t, time.Second, reg.ReconnectDelay)
}

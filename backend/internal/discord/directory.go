package discord

import (
	"github.com/bwmarrin/discordgo"
)

// Directory resolves member names and voice channel occupancy from the gateway state cache
type Directory struct {
	session *discordgo.Session
}

// NewDirectory creates a directory over session's state
func NewDirectory(session *discordgo.Session) *Directory {
	return &Directory{session: session}
}

// DisplayName returns the member's nickname, global name or username, in that order
func (d *Directory) DisplayName(guildID, userID string) string {
	member, err := d.session.State.Member(guildID, userID)
	if err != nil || member == nil {
		member, err = d.session.GuildMember(guildID, userID)
		if err != nil || member == nil {
			return userID
		}
	}
	return memberName(member, userID)
}

// HumanCount counts non-bot members in the voice channel
func (d *Directory) HumanCount(guildID, channelID string) int {
	guild, err := d.session.State.Guild(guildID)
	if err != nil {
		return 0
	}

	var botID string
	if d.session.State.User != nil {
		botID = d.session.State.User.ID
	}

	// Collect under the read lock; State.Member takes it again
	d.session.State.RLock()
	var occupants []*discordgo.VoiceState
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID && vs.UserID != botID {
			occupants = append(occupants, vs)
		}
	}
	d.session.State.RUnlock()

	count := 0
	for _, vs := range occupants {
		if !d.isBot(guildID, vs) {
			count++
		}
	}
	return count
}

func (d *Directory) isBot(guildID string, vs *discordgo.VoiceState) bool {
	if vs.Member != nil && vs.Member.User != nil {
		return vs.Member.User.Bot
	}
	member, err := d.session.State.Member(guildID, vs.UserID)
	if err != nil || member == nil || member.User == nil {
		return false
	}
	return member.User.Bot
}

func memberName(member *discordgo.Member, fallback string) string {
	if member.Nick != "" {
		return member.Nick
	}
	if member.User == nil {
		return fallback
	}
	if member.User.GlobalName != "" {
		return member.User.GlobalName
	}
	if member.User.Username != "" {
		return member.User.Username
	}
	return fallback
}

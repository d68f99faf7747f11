package commands

import "github.com/bwmarrin/discordgo"

func stringOpt(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

// SlashCommands returns the slash command definitions.
func SlashCommands() []*discordgo.ApplicationCommand {
	minRuns := 0.0
	return []*discordgo.ApplicationCommand{
		{
			Name:        "register",
			Description: "Register as a club player",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("username", "Club username (defaults to your Discord name)", false),
				stringOpt("sport", "Sport to join", false),
			},
		},
		{
			Name:        "promote",
			Description: "Ask to be promoted to coach",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("sport", "Sport you want to coach", true),
				stringOpt("remarks", "Why you should coach", false),
			},
		},
		{
			Name:        "promote-approve",
			Description: "Approve a promotion request (manager or admin)",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("request", "Promotion request ID", true),
			},
		},
		{
			Name:        "promote-reject",
			Description: "Reject a promotion request (manager or admin)",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("request", "Promotion request ID", true),
				stringOpt("remarks", "Reason for rejecting", false),
			},
		},
		{
			Name:        "link-invite",
			Description: "Invite a player to train with you (coach)",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("player", "Player code, e.g. P2500001", true),
				stringOpt("sport", "Sport of the link", true),
			},
		},
		{
			Name:        "link-accept",
			Description: "Accept a coaching link request",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("link", "Link request ID", true),
			},
		},
		{
			Name:        "link-reject",
			Description: "Reject a coaching link request",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("link", "Link request ID", true),
			},
		},
		{
			Name:        "score",
			Description: "Record runs off the next ball",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("match", "Match ID", true),
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "runs",
					Description: "Runs scored (0-6)",
					Required:    true,
					MinValue:    &minRuns,
					MaxValue:    6,
				},
			},
		},
		{
			Name:        "wicket",
			Description: "Record a wicket on the next ball",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("match", "Match ID", true),
				stringOpt("next-batsman", "Code of the incoming batsman", true),
				stringOpt("fielder", "Code of the catching fielder", false),
			},
		},
		{
			Name:        "scorecard",
			Description: "Show a match scorecard",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("match", "Match ID", true),
			},
		},
		{
			Name:        "points",
			Description: "Show a tournament points table",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("tournament", "Tournament ID", true),
			},
		},
	}
}

// Package commands implements the club's Discord slash commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/clubhub/internal/authz"
	"github.com/jensholdgaard/clubhub/internal/cricket"
	"github.com/jensholdgaard/clubhub/internal/domainerr"
	"github.com/jensholdgaard/clubhub/internal/identity"
	"github.com/jensholdgaard/clubhub/internal/store"
	"github.com/jensholdgaard/clubhub/internal/tournament"
)

// Identity registers users and resolves Discord accounts.
type Identity interface {
	RegisterUser(ctx context.Context, in identity.RegisterInput) (*store.User, identity.Profile, error)
	ResolveDiscordActor(ctx context.Context, discordID string) (authz.Actor, error)
}

// Workflows runs the promotion and link requests.
type Workflows interface {
	RequestPromotion(ctx context.Context, actor authz.Actor, sportID, remarks string) (*store.PromotionRequest, error)
	ApprovePromotion(ctx context.Context, actor authz.Actor, requestID string) (*store.Coach, error)
	RejectPromotion(ctx context.Context, actor authz.Actor, requestID, remarks string) (*store.PromotionRequest, error)
	InvitePlayer(ctx context.Context, actor authz.Actor, playerID, sportID string) (*store.LinkRequest, error)
	AcceptLink(ctx context.Context, actor authz.Actor, linkID string) (*store.LinkRequest, error)
	RejectLink(ctx context.Context, actor authz.Actor, linkID string) (*store.LinkRequest, error)
}

// Matches scores live matches.
type Matches interface {
	Score(ctx context.Context, actor authz.Actor, matchID string, runs int) (*cricket.Scorecard, error)
	Wicket(ctx context.Context, actor authz.Actor, matchID, nextBatsmanID, fielderID string) (*cricket.Scorecard, error)
	Scorecard(ctx context.Context, matchID string) (*cricket.Scorecard, error)
}

// Standings reads tournament points tables.
type Standings interface {
	PointsTable(ctx context.Context, tournamentID string) ([]tournament.Standing, error)
}

// Lookup turns the names and codes users type into IDs.
type Lookup interface {
	SportByName(ctx context.Context, name string) (*store.Sport, error)
	PlayerByCode(ctx context.Context, code string) (*store.Player, error)
}

// StoreLookup resolves names against the repositories.
type StoreLookup struct {
	Sports   store.SportRepository
	Profiles store.ProfileRepository
}

func (l StoreLookup) SportByName(ctx context.Context, name string) (*store.Sport, error) {
	return l.Sports.GetByName(ctx, name)
}

func (l StoreLookup) PlayerByCode(ctx context.Context, code string) (*store.Player, error) {
	return l.Profiles.GetPlayerByCode(ctx, strings.ToUpper(code))
}

// Deps are the services behind the commands.
type Deps struct {
	Identity  Identity
	Workflows Workflows
	Matches   Matches
	Standings Standings
	Lookup    Lookup
}

// Handlers process Discord interactions.
type Handlers struct {
	deps   Deps
	logger *slog.Logger
	tracer trace.Tracer
}

// NewHandlers creates new command handlers.
func NewHandlers(deps Deps, logger *slog.Logger, tp trace.TracerProvider) *Handlers {
	return &Handlers{
		deps:   deps,
		logger: logger,
		tracer: tp.Tracer("github.com/jensholdgaard/clubhub/internal/bot/commands"),
	}
}

// Interactor is the part of *discordgo.Session used to answer commands.
type Interactor interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// InteractionCreate handles incoming slash command interactions.
func (h *Handlers) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.Handle(context.Background(), s, i)
}

// Handle runs the command and replies in the channel it came from.
func (h *Handlers) Handle(ctx context.Context, s Interactor, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	reply, err := h.Execute(ctx, i)
	if err != nil {
		reply = h.describe(ctx, i, err)
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: reply},
	}); err != nil {
		h.logger.WarnContext(ctx, "responding to interaction",
			slog.String("command", i.ApplicationCommandData().Name),
			slog.Any("error", err),
		)
	}
}

// Execute runs the command and returns the reply text.
func (h *Handlers) Execute(ctx context.Context, i *discordgo.InteractionCreate) (string, error) {
	data := i.ApplicationCommandData()
	ctx, span := h.tracer.Start(ctx, "Handlers.Execute",
		trace.WithAttributes(attribute.String("command", data.Name)),
	)
	defer span.End()

	user := invoker(i)
	if user == nil {
		return "", errNoInvoker
	}
	opts := options(data.Options)

	if data.Name == "register" {
		return h.register(ctx, user, opts)
	}

	actor, err := h.deps.Identity.ResolveDiscordActor(ctx, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		return "", errNotRegistered
	}
	if err != nil {
		return "", err
	}

	switch data.Name {
	case "promote":
		return h.promote(ctx, actor, opts)
	case "promote-approve":
		return h.promoteApprove(ctx, actor, opts)
	case "promote-reject":
		return h.promoteReject(ctx, actor, opts)
	case "link-invite":
		return h.linkInvite(ctx, actor, opts)
	case "link-accept":
		link, err := h.deps.Workflows.AcceptLink(ctx, actor, opts.str("link"))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Link `%s` accepted.", link.ID), nil
	case "link-reject":
		link, err := h.deps.Workflows.RejectLink(ctx, actor, opts.str("link"))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Link `%s` rejected.", link.ID), nil
	case "score":
		card, err := h.deps.Matches.Score(ctx, actor, opts.str("match"), int(opts.integer("runs")))
		if err != nil {
			return "", err
		}
		return FormatScorecard(card), nil
	case "wicket":
		return h.wicket(ctx, actor, opts)
	case "scorecard":
		card, err := h.deps.Matches.Scorecard(ctx, opts.str("match"))
		if err != nil {
			return "", err
		}
		return FormatScorecard(card), nil
	case "points":
		table, err := h.deps.Standings.PointsTable(ctx, opts.str("tournament"))
		if err != nil {
			return "", err
		}
		return FormatPoints(table), nil
	default:
		return "Unknown command", nil
	}
}

var (
	errNoInvoker     = domainerr.Precondition("no_invoker", "could not tell who sent this command")
	errNotRegistered = domainerr.Forbidden("not_registered", "You are not registered. Use `/register` first.")
)

func (h *Handlers) register(ctx context.Context, user *discordgo.User, opts optionMap) (string, error) {
	in := identity.RegisterInput{
		Username:  opts.str("username"),
		DiscordID: user.ID,
		Role:      store.RolePlayer,
	}
	if in.Username == "" {
		in.Username = user.Username
	}
	if name := opts.str("sport"); name != "" {
		sp, err := h.deps.Lookup.SportByName(ctx, name)
		if err != nil {
			return "", unknownSport(name, err)
		}
		in.SportIDs = []string{sp.ID}
	}

	_, p, err := h.deps.Identity.RegisterUser(ctx, in)
	if err != nil {
		return "", err
	}
	h.logger.InfoContext(ctx, "registered from discord",
		slog.String("discord_id", user.ID),
		slog.String("code", p.Code()),
	)
	return fmt.Sprintf("Registered **%s** as player `%s`.", in.Username, p.Code()), nil
}

func (h *Handlers) promote(ctx context.Context, actor authz.Actor, opts optionMap) (string, error) {
	name := opts.str("sport")
	sp, err := h.deps.Lookup.SportByName(ctx, name)
	if err != nil {
		return "", unknownSport(name, err)
	}
	req, err := h.deps.Workflows.RequestPromotion(ctx, actor, sp.ID, opts.str("remarks"))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Promotion to **%s** coach requested (ID: `%s`).", sp.Name, req.ID), nil
}

func (h *Handlers) promoteApprove(ctx context.Context, actor authz.Actor, opts optionMap) (string, error) {
	c, err := h.deps.Workflows.ApprovePromotion(ctx, actor, opts.str("request"))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Promotion approved. New coach `%s`.", c.Code), nil
}

func (h *Handlers) promoteReject(ctx context.Context, actor authz.Actor, opts optionMap) (string, error) {
	req, err := h.deps.Workflows.RejectPromotion(ctx, actor, opts.str("request"), opts.str("remarks"))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Promotion `%s` rejected.", req.ID), nil
}

func (h *Handlers) linkInvite(ctx context.Context, actor authz.Actor, opts optionMap) (string, error) {
	p, err := h.player(ctx, opts.str("player"))
	if err != nil {
		return "", err
	}
	name := opts.str("sport")
	sp, err := h.deps.Lookup.SportByName(ctx, name)
	if err != nil {
		return "", unknownSport(name, err)
	}
	link, err := h.deps.Workflows.InvitePlayer(ctx, actor, p.ID, sp.ID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Invited `%s` to train **%s** (link `%s`).", p.Code, sp.Name, link.ID), nil
}

func (h *Handlers) wicket(ctx context.Context, actor authz.Actor, opts optionMap) (string, error) {
	next, err := h.player(ctx, opts.str("next-batsman"))
	if err != nil {
		return "", err
	}
	var fielderID string
	if code := opts.str("fielder"); code != "" {
		f, err := h.player(ctx, code)
		if err != nil {
			return "", err
		}
		fielderID = f.ID
	}
	card, err := h.deps.Matches.Wicket(ctx, actor, opts.str("match"), next.ID, fielderID)
	if err != nil {
		return "", err
	}
	return FormatScorecard(card), nil
}

func (h *Handlers) player(ctx context.Context, code string) (*store.Player, error) {
	p, err := h.deps.Lookup.PlayerByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerr.NotFound("unknown_player", "no player with code %s", code)
	}
	return p, err
}

func unknownSport(name string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domainerr.NotFound("unknown_sport", "no sport named %q", name)
	}
	return err
}

// describe turns a failure into a reply. Domain errors are shown as is;
// anything else is logged and hidden.
func (h *Handlers) describe(ctx context.Context, i *discordgo.InteractionCreate, err error) string {
	var de *domainerr.Error
	if errors.As(err, &de) {
		return de.Message
	}
	h.logger.ErrorContext(ctx, "command failed",
		slog.String("command", i.ApplicationCommandData().Name),
		slog.Any("error", err),
	)
	return "Something went wrong. Please try again later."
}

func invoker(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

type optionMap map[string]*discordgo.ApplicationCommandInteractionDataOption

func options(opts []*discordgo.ApplicationCommandInteractionDataOption) optionMap {
	m := make(optionMap, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func (m optionMap) str(name string) string {
	if o, ok := m[name]; ok {
		return strings.TrimSpace(o.StringValue())
	}
	return ""
}

func (m optionMap) integer(name string) int64 {
	if o, ok := m[name]; ok {
		return o.IntValue()
	}
	return 0
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"guildhall/config"
	"guildhall/database"
	"guildhall/discord"
	"guildhall/events"
	"guildhall/gentext"
	"guildhall/repository"
	"guildhall/service"
	"guildhall/workers"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context, cfg *config.Config) error {
	log.Info("Starting guildhall...")

	eco, err := config.LoadEconomy(cfg.EconomyFile)
	if err != nil {
		return fmt.Errorf("failed to load economy config: %w", err)
	}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	log.Info("Connecting to Discord...")
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer session.Close()

	notifier := discord.NewNotifier(session)
	announcer := discord.NewAnnouncer(session, cfg)
	provisioner := discord.NewProvisioner(session, cfg.DiscordGuildID)
	describer := gentext.NewClient(cfg.GenTextURL)
	catalogue := service.StaticCatalogue(eco.Products)

	log.Info("Initializing services...")
	progressionService := service.NewProgressionService(uowFactory, eco)
	affiliateService := service.NewAffiliateService(uowFactory, eco)
	cashoutService := service.NewCashoutService(uowFactory, eco, affiliateService, announcer)
	weeklyService := service.NewWeeklyService(uowFactory, eco)
	guildService := service.NewGuildService(uowFactory, eco, provisioner)
	lotteryService := service.NewLotteryService(uowFactory, eco)
	purchaseService := service.NewPurchaseService(uowFactory, eco, catalogue, describer, progressionService, affiliateService)
	shopService := service.NewShopService(uowFactory, eco)
	missionService := service.NewMissionService(uowFactory, eco, progressionService)
	moderationService := service.NewModerationService(uowFactory, eco)
	accountService := service.NewAccountService(uowFactory, eco, progressionService)

	discord.Subscribe(eventBus, notifier, announcer, cfg)

	bot := discord.NewBot(session, discord.BotServices{
		Accounts:    accountService,
		Progression: progressionService,
		Cashouts:    cashoutService,
		Guilds:      guildService,
		Lottery:     lotteryService,
		Purchases:   purchaseService,
		Shop:        shopService,
		Missions:    missionService,
		Moderation:  moderationService,
	}, eco.XP.AntiFarmMinWords)
	bot.Register()

	background := workers.New(weeklyService, missionService)
	background.Start(ctx)

	log.WithField("environment", cfg.Environment).Info("guildhall is running")
	<-ctx.Done()

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	select {
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout exceeded")
	case <-time.After(1 * time.Second):
		log.Info("Shutdown completed")
	}

	return nil
}

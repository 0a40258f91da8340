package service

import (
	"context"
	"math/rand"

	"guildhall/config"
	"guildhall/events"
	"guildhall/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type lotteryService struct {
	uowFactory UnitOfWorkFactory
	eco        *config.Economy
	applier    *TxApplier
	randIndex  func(n int) int
}

// NewLotteryService creates a new lottery service
func NewLotteryService(uowFactory UnitOfWorkFactory, eco *config.Economy) LotteryService {
	return &lotteryService{
		uowFactory: uowFactory,
		eco:        eco,
		applier:    NewTxApplier(eco.MaxLogEntries),
		randIndex:  rand.Intn,
	}
}

// Join sells a lottery entry. The duplicate check runs inside the
// transaction, so two concurrent joins by the same member cannot both
// land. Filling the pot triggers the draw in the same transaction: the
// winner's prize and the cleared pot commit together.
func (s *lotteryService) Join(ctx context.Context, memberID int64, displayName string) (*LotteryJoinResult, error) {
	if !s.eco.Lottery.Enabled {
		return nil, ErrNotFound
	}

	ticketCost := decimal.NewFromFloat(s.eco.Lottery.TicketCost)

	var result *LotteryJoinResult
	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		result = nil

		pot, err := uow.LotteryRepository().GetPot(ctx)
		if err != nil {
			return err
		}
		if pot.HasEntrant(memberID) {
			return ErrAlreadyEntered
		}

		if _, err := s.applier.Apply(ctx, uow, memberID, models.FieldStoreCredit, ticketCost.Neg(), "lottery ticket"); err != nil {
			return err
		}

		entrants := append(pot.Entrants, models.LotteryEntrant{
			MemberID:    memberID,
			DisplayName: displayName,
		})
		result = &LotteryJoinResult{PotSize: len(entrants)}

		if len(entrants) < s.eco.Lottery.PlayersPerDraw {
			return uow.LotteryRepository().SetPot(ctx, entrants)
		}

		winner := entrants[s.randIndex(len(entrants))]
		prize := decimal.NewFromFloat(s.eco.Lottery.WinnerPrize)
		if _, err := s.applier.Apply(ctx, uow, winner.MemberID, models.FieldStoreCredit, prize, "lottery prize"); err != nil {
			return err
		}
		if err := uow.LotteryRepository().SetPot(ctx, nil); err != nil {
			return err
		}

		uow.EventBus().Publish(events.LotteryDrawEvent{
			WinnerID:   winner.MemberID,
			WinnerName: winner.DisplayName,
			Prize:      prize,
			Entrants:   entrants,
		})

		result.Draw = &LotteryDrawResult{
			WinnerID:   winner.MemberID,
			WinnerName: winner.DisplayName,
			Prize:      prize,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Draw != nil {
		log.WithFields(log.Fields{
			"winnerID": result.Draw.WinnerID,
			"prize":    result.Draw.Prize,
		}).Info("Lottery draw complete")
	}
	return result, nil
}

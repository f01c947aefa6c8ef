package game

import (
	"context"
	"errors"

	"lifesim/internal/apperr"
	"lifesim/internal/calendar"
	"lifesim/internal/engine"
	"lifesim/internal/story"
)

// PendingNotice describes a game that is waiting on a player decision.
type PendingNotice struct {
	GameID     string      `json:"game_id"`
	PlayerName string      `json:"player_name"`
	Date       string      `json:"date"`
	Event      story.Event `json:"event"`
}

type TickReport struct {
	Advanced int             `json:"advanced"`
	Skipped  int             `json:"skipped"`
	Failed   int             `json:"failed"`
	Pending  []PendingNotice `json:"pending"`
}

// RunTick advances every stored game by one day. Games waiting on an event
// are left alone and reported in Pending, as are games whose tick just
// delivered one.
func (s *Service) RunTick(ctx context.Context) (TickReport, error) {
	var report TickReport
	records, err := s.store.List(ctx)
	if err != nil {
		return report, err
	}
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		st, err := s.mutate(ctx, r.ID, func(e *engine.Engine) error {
			_, err := e.AdvanceDay()
			return err
		})
		switch {
		case err == nil:
			report.Advanced++
		case errors.Is(err, apperr.ErrEventPending):
			report.Skipped++
			if st, err = s.State(ctx, r.ID); err != nil {
				report.Failed++
				continue
			}
		case errors.Is(err, apperr.ErrGameNotFound):
			continue
		default:
			report.Failed++
			s.log.Error("tick failed", "game_id", r.ID, "error", err)
			continue
		}
		if ev, ok := st.PendingEvent(); ok {
			report.Pending = append(report.Pending, PendingNotice{
				GameID:     r.ID,
				PlayerName: st.Player.Name,
				Date:       calendar.Key(st.CurrentDate),
				Event:      ev.Clone(),
			})
		}
	}
	s.log.Info("tick pass complete", "games", len(records), "advanced", report.Advanced, "skipped", report.Skipped, "failed", report.Failed, "pending", len(report.Pending))
	return report, nil
}

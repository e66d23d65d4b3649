package control

import (
	"context"
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/mcdev12/battlescore/go/internal/match/gateway"
	"github.com/rs/zerolog/log"
)

// Websocket command types.
const (
	CommandSnapshot         = "snapshot"
	CommandEffectConsumed   = "effect:consumed"
	CommandTimerStart       = "timer:start"
	CommandTimerPauseToggle = "timer:pauseToggle"
	CommandMatchReset       = "match:reset"
	CommandMatchFinish      = "match:finish"
	CommandMatchShowResult  = "match:showResult"
	CommandScoreReset       = "score:reset"
	CommandScoreAdjust      = "score:adjust"
	CommandSetMagnification = "score:setMagnification"
	CommandLastBonusStart   = "lastbonus:start"
	CommandLastBonusEnd     = "lastbonus:end"
	CommandSCStart          = "sc:start"
	CommandSCStop           = "sc:stop"
	CommandSCSuccess        = "sc:success"
	CommandSettingsSave     = "settings:save"
)

// admin may send everything; the other audiences get a fixed subset.
var audienceCommands = map[events.Audience]map[string]bool{
	events.AudienceInput: {CommandSnapshot: true},
	events.AudienceHUD:   {CommandEffectConsumed: true},
}

// Commands routes websocket client messages to the control service so both
// surfaces share validation and error mapping.
type Commands struct {
	svc *Service
}

// NewCommands creates the websocket command router.
func NewCommands(svc *Service) *Commands {
	return &Commands{svc: svc}
}

var _ gateway.CommandHandler = (*Commands)(nil)

// HandleCommand implements gateway.CommandHandler. Malformed or disallowed
// commands are reported as gateway.ErrInvalidCommand; precondition failures
// were already announced to the operator by the engine.
func (c *Commands) HandleCommand(ctx context.Context, audience events.Audience, msgType string, data json.RawMessage) error {
	if allowed, restricted := audienceCommands[audience]; restricted && !allowed[msgType] {
		return fmt.Errorf("%w: %s is not accepted from %s", gateway.ErrInvalidCommand, msgType, audience)
	}

	err := c.dispatch(ctx, msgType, data)
	if err != nil && connect.CodeOf(err) == connect.CodeInvalidArgument {
		return fmt.Errorf("%w: %v", gateway.ErrInvalidCommand, err)
	}
	return err
}

func (c *Commands) dispatch(ctx context.Context, msgType string, data json.RawMessage) error {
	svc := c.svc
	switch msgType {
	case CommandSnapshot:
		var snap events.Snapshot
		if err := decode(data, &snap); err != nil {
			return err
		}
		_, err := svc.SubmitSnapshot(ctx, connect.NewRequest(&SubmitSnapshotRequest{Snapshot: snap}))
		return err

	case CommandEffectConsumed:
		var msg PlayerRequest
		if err := decode(data, &msg); err != nil {
			return err
		}
		player, err := parsePlayer(msg.Player)
		if err != nil {
			return err
		}
		if effect, ok := svc.engine.ConsumeEffect(player); ok {
			log.Debug().Str("player", string(player)).Str("effect", effect).Msg("effect consumed")
		}
		return nil

	case CommandTimerStart:
		var msg StartTimerRequest
		if err := decode(data, &msg); err != nil {
			return err
		}
		_, err := svc.StartTimer(ctx, connect.NewRequest(&msg))
		return err

	case CommandTimerPauseToggle:
		_, err := svc.TogglePause(ctx, connect.NewRequest(&Empty{}))
		return err

	case CommandMatchReset:
		_, err := svc.ResetMatch(ctx, connect.NewRequest(&Empty{}))
		return err

	case CommandMatchFinish, CommandMatchShowResult:
		_, err := svc.Finalize(ctx, connect.NewRequest(&FinalizeRequest{Reason: msgType}))
		return err

	case CommandScoreReset:
		_, err := svc.ResetScore(ctx, connect.NewRequest(&Empty{}))
		return err

	case CommandScoreAdjust:
		var msg AdjustScoreRequest
		if err := decode(data, &msg); err != nil {
			return err
		}
		_, err := svc.AdjustScore(ctx, connect.NewRequest(&msg))
		return err

	case CommandSetMagnification:
		var msg SetMultiplierRequest
		if err := decode(data, &msg); err != nil {
			return err
		}
		_, err := svc.SetMultiplier(ctx, connect.NewRequest(&msg))
		return err

	case CommandLastBonusStart, CommandLastBonusEnd, CommandSCSuccess:
		var msg PlayerRequest
		if err := decode(data, &msg); err != nil {
			return err
		}
		req := connect.NewRequest(&msg)
		var err error
		switch msgType {
		case CommandLastBonusStart:
			_, err = svc.StartLastBonus(ctx, req)
		case CommandLastBonusEnd:
			_, err = svc.EndLastBonus(ctx, req)
		default:
			_, err = svc.MarkSuccess(ctx, req)
		}
		return err

	case CommandSCStart:
		_, err := svc.StartSpeedChallenge(ctx, connect.NewRequest(&Empty{}))
		return err

	case CommandSCStop:
		_, err := svc.StopSpeedChallenge(ctx, connect.NewRequest(&Empty{}))
		return err

	case CommandSettingsSave:
		var msg SaveSettingsRequest
		if err := decode(data, &msg); err != nil {
			return err
		}
		_, err := svc.SaveSettings(ctx, connect.NewRequest(&msg))
		return err

	default:
		return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown command %q", msgType))
	}
}

// decode leaves out untouched when the message carried no data.
func decode(data json.RawMessage, out any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("decode command data: %w", err))
	}
	return nil
}

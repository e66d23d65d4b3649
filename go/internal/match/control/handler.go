package control

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// MatchControlServiceName is the fully-qualified name of the operator service.
const MatchControlServiceName = "battlescore.v1.MatchControlService"

// Procedure paths of MatchControlService.
const (
	MatchControlServiceSubmitSnapshotProcedure      = "/battlescore.v1.MatchControlService/SubmitSnapshot"
	MatchControlServiceStartTimerProcedure          = "/battlescore.v1.MatchControlService/StartTimer"
	MatchControlServiceTogglePauseProcedure         = "/battlescore.v1.MatchControlService/TogglePause"
	MatchControlServiceResetMatchProcedure          = "/battlescore.v1.MatchControlService/ResetMatch"
	MatchControlServiceResetScoreProcedure          = "/battlescore.v1.MatchControlService/ResetScore"
	MatchControlServiceAdjustScoreProcedure         = "/battlescore.v1.MatchControlService/AdjustScore"
	MatchControlServiceSetMultiplierProcedure       = "/battlescore.v1.MatchControlService/SetMultiplier"
	MatchControlServiceStartLastBonusProcedure      = "/battlescore.v1.MatchControlService/StartLastBonus"
	MatchControlServiceEndLastBonusProcedure        = "/battlescore.v1.MatchControlService/EndLastBonus"
	MatchControlServiceStartSpeedChallengeProcedure = "/battlescore.v1.MatchControlService/StartSpeedChallenge"
	MatchControlServiceStopSpeedChallengeProcedure  = "/battlescore.v1.MatchControlService/StopSpeedChallenge"
	MatchControlServiceMarkSuccessProcedure         = "/battlescore.v1.MatchControlService/MarkSuccess"
	MatchControlServiceFinalizeProcedure            = "/battlescore.v1.MatchControlService/Finalize"
	MatchControlServiceGetStateProcedure            = "/battlescore.v1.MatchControlService/GetState"
	MatchControlServiceSaveSettingsProcedure        = "/battlescore.v1.MatchControlService/SaveSettings"
	MatchControlServiceListMatchesProcedure         = "/battlescore.v1.MatchControlService/ListMatches"
	MatchControlServiceGetMatchProcedure            = "/battlescore.v1.MatchControlService/GetMatch"
)

// MatchControlServiceHandler is implemented by the operator service.
type MatchControlServiceHandler interface {
	SubmitSnapshot(context.Context, *connect.Request[SubmitSnapshotRequest]) (*connect.Response[Empty], error)
	StartTimer(context.Context, *connect.Request[StartTimerRequest]) (*connect.Response[StartTimerResponse], error)
	TogglePause(context.Context, *connect.Request[Empty]) (*connect.Response[TogglePauseResponse], error)
	ResetMatch(context.Context, *connect.Request[Empty]) (*connect.Response[StateResponse], error)
	ResetScore(context.Context, *connect.Request[Empty]) (*connect.Response[Empty], error)
	AdjustScore(context.Context, *connect.Request[AdjustScoreRequest]) (*connect.Response[AdjustScoreResponse], error)
	SetMultiplier(context.Context, *connect.Request[SetMultiplierRequest]) (*connect.Response[Empty], error)
	StartLastBonus(context.Context, *connect.Request[PlayerRequest]) (*connect.Response[Empty], error)
	EndLastBonus(context.Context, *connect.Request[PlayerRequest]) (*connect.Response[Empty], error)
	StartSpeedChallenge(context.Context, *connect.Request[Empty]) (*connect.Response[Empty], error)
	StopSpeedChallenge(context.Context, *connect.Request[Empty]) (*connect.Response[Empty], error)
	MarkSuccess(context.Context, *connect.Request[PlayerRequest]) (*connect.Response[Empty], error)
	Finalize(context.Context, *connect.Request[FinalizeRequest]) (*connect.Response[FinalizeResponse], error)
	GetState(context.Context, *connect.Request[Empty]) (*connect.Response[StateResponse], error)
	SaveSettings(context.Context, *connect.Request[SaveSettingsRequest]) (*connect.Response[SaveSettingsResponse], error)
	ListMatches(context.Context, *connect.Request[ListMatchesRequest]) (*connect.Response[ListMatchesResponse], error)
	GetMatch(context.Context, *connect.Request[GetMatchRequest]) (*connect.Response[GetMatchResponse], error)
}

// NewMatchControlServiceHandler builds an HTTP handler for every procedure and
// returns the path to mount it on.
func NewMatchControlServiceHandler(svc MatchControlServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(MatchControlServiceSubmitSnapshotProcedure, connect.NewUnaryHandler(MatchControlServiceSubmitSnapshotProcedure, svc.SubmitSnapshot, opts...))
	mux.Handle(MatchControlServiceStartTimerProcedure, connect.NewUnaryHandler(MatchControlServiceStartTimerProcedure, svc.StartTimer, opts...))
	mux.Handle(MatchControlServiceTogglePauseProcedure, connect.NewUnaryHandler(MatchControlServiceTogglePauseProcedure, svc.TogglePause, opts...))
	mux.Handle(MatchControlServiceResetMatchProcedure, connect.NewUnaryHandler(MatchControlServiceResetMatchProcedure, svc.ResetMatch, opts...))
	mux.Handle(MatchControlServiceResetScoreProcedure, connect.NewUnaryHandler(MatchControlServiceResetScoreProcedure, svc.ResetScore, opts...))
	mux.Handle(MatchControlServiceAdjustScoreProcedure, connect.NewUnaryHandler(MatchControlServiceAdjustScoreProcedure, svc.AdjustScore, opts...))
	mux.Handle(MatchControlServiceSetMultiplierProcedure, connect.NewUnaryHandler(MatchControlServiceSetMultiplierProcedure, svc.SetMultiplier, opts...))
	mux.Handle(MatchControlServiceStartLastBonusProcedure, connect.NewUnaryHandler(MatchControlServiceStartLastBonusProcedure, svc.StartLastBonus, opts...))
	mux.Handle(MatchControlServiceEndLastBonusProcedure, connect.NewUnaryHandler(MatchControlServiceEndLastBonusProcedure, svc.EndLastBonus, opts...))
	mux.Handle(MatchControlServiceStartSpeedChallengeProcedure, connect.NewUnaryHandler(MatchControlServiceStartSpeedChallengeProcedure, svc.StartSpeedChallenge, opts...))
	mux.Handle(MatchControlServiceStopSpeedChallengeProcedure, connect.NewUnaryHandler(MatchControlServiceStopSpeedChallengeProcedure, svc.StopSpeedChallenge, opts...))
	mux.Handle(MatchControlServiceMarkSuccessProcedure, connect.NewUnaryHandler(MatchControlServiceMarkSuccessProcedure, svc.MarkSuccess, opts...))
	mux.Handle(MatchControlServiceFinalizeProcedure, connect.NewUnaryHandler(MatchControlServiceFinalizeProcedure, svc.Finalize, opts...))
	mux.Handle(MatchControlServiceGetStateProcedure, connect.NewUnaryHandler(MatchControlServiceGetStateProcedure, svc.GetState, opts...))
	mux.Handle(MatchControlServiceSaveSettingsProcedure, connect.NewUnaryHandler(MatchControlServiceSaveSettingsProcedure, svc.SaveSettings, opts...))
	mux.Handle(MatchControlServiceListMatchesProcedure, connect.NewUnaryHandler(MatchControlServiceListMatchesProcedure, svc.ListMatches, opts...))
	mux.Handle(MatchControlServiceGetMatchProcedure, connect.NewUnaryHandler(MatchControlServiceGetMatchProcedure, svc.GetMatch, opts...))

	return "/" + MatchControlServiceName + "/", mux
}

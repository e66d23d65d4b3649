package control

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// MatchControlServiceClient calls a remote MatchControlService.
type MatchControlServiceClient struct {
	submitSnapshot      *connect.Client[SubmitSnapshotRequest, Empty]
	startTimer          *connect.Client[StartTimerRequest, StartTimerResponse]
	togglePause         *connect.Client[Empty, TogglePauseResponse]
	resetMatch          *connect.Client[Empty, StateResponse]
	resetScore          *connect.Client[Empty, Empty]
	adjustScore         *connect.Client[AdjustScoreRequest, AdjustScoreResponse]
	setMultiplier       *connect.Client[SetMultiplierRequest, Empty]
	startLastBonus      *connect.Client[PlayerRequest, Empty]
	endLastBonus        *connect.Client[PlayerRequest, Empty]
	startSpeedChallenge *connect.Client[Empty, Empty]
	stopSpeedChallenge  *connect.Client[Empty, Empty]
	markSuccess         *connect.Client[PlayerRequest, Empty]
	finalize            *connect.Client[FinalizeRequest, FinalizeResponse]
	getState            *connect.Client[Empty, StateResponse]
	saveSettings        *connect.Client[SaveSettingsRequest, SaveSettingsResponse]
	listMatches         *connect.Client[ListMatchesRequest, ListMatchesResponse]
	getMatch            *connect.Client[GetMatchRequest, GetMatchResponse]
}

// NewMatchControlServiceClient constructs a client for the service at baseURL,
// e.g. http://localhost:8088.
func NewMatchControlServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *MatchControlServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &MatchControlServiceClient{
		submitSnapshot:      connect.NewClient[SubmitSnapshotRequest, Empty](httpClient, baseURL+MatchControlServiceSubmitSnapshotProcedure, opts...),
		startTimer:          connect.NewClient[StartTimerRequest, StartTimerResponse](httpClient, baseURL+MatchControlServiceStartTimerProcedure, opts...),
		togglePause:         connect.NewClient[Empty, TogglePauseResponse](httpClient, baseURL+MatchControlServiceTogglePauseProcedure, opts...),
		resetMatch:          connect.NewClient[Empty, StateResponse](httpClient, baseURL+MatchControlServiceResetMatchProcedure, opts...),
		resetScore:          connect.NewClient[Empty, Empty](httpClient, baseURL+MatchControlServiceResetScoreProcedure, opts...),
		adjustScore:         connect.NewClient[AdjustScoreRequest, AdjustScoreResponse](httpClient, baseURL+MatchControlServiceAdjustScoreProcedure, opts...),
		setMultiplier:       connect.NewClient[SetMultiplierRequest, Empty](httpClient, baseURL+MatchControlServiceSetMultiplierProcedure, opts...),
		startLastBonus:      connect.NewClient[PlayerRequest, Empty](httpClient, baseURL+MatchControlServiceStartLastBonusProcedure, opts...),
		endLastBonus:        connect.NewClient[PlayerRequest, Empty](httpClient, baseURL+MatchControlServiceEndLastBonusProcedure, opts...),
		startSpeedChallenge: connect.NewClient[Empty, Empty](httpClient, baseURL+MatchControlServiceStartSpeedChallengeProcedure, opts...),
		stopSpeedChallenge:  connect.NewClient[Empty, Empty](httpClient, baseURL+MatchControlServiceStopSpeedChallengeProcedure, opts...),
		markSuccess:         connect.NewClient[PlayerRequest, Empty](httpClient, baseURL+MatchControlServiceMarkSuccessProcedure, opts...),
		finalize:            connect.NewClient[FinalizeRequest, FinalizeResponse](httpClient, baseURL+MatchControlServiceFinalizeProcedure, opts...),
		getState:            connect.NewClient[Empty, StateResponse](httpClient, baseURL+MatchControlServiceGetStateProcedure, opts...),
		saveSettings:        connect.NewClient[SaveSettingsRequest, SaveSettingsResponse](httpClient, baseURL+MatchControlServiceSaveSettingsProcedure, opts...),
		listMatches:         connect.NewClient[ListMatchesRequest, ListMatchesResponse](httpClient, baseURL+MatchControlServiceListMatchesProcedure, opts...),
		getMatch:            connect.NewClient[GetMatchRequest, GetMatchResponse](httpClient, baseURL+MatchControlServiceGetMatchProcedure, opts...),
	}
}

var _ MatchControlServiceHandler = (*MatchControlServiceClient)(nil)

func (c *MatchControlServiceClient) SubmitSnapshot(ctx context.Context, req *connect.Request[SubmitSnapshotRequest]) (*connect.Response[Empty], error) {
	return c.submitSnapshot.CallUnary(ctx, req)
}

func (c *MatchControlServiceClient) StartTimer(ctx context.Context, req *connect.Request[StartTimerRequest]) (*connect.Response[StartTimerResponse], error) {
	return c.startTimer.CallUnary(ctx, req)
}

func (c *MatchControlServiceClient) TogglePause(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[TogglePauseResponse], error) {
	return c.togglePause.CallUnary(ctx, req)
}

func (c *MatchControlServiceClient) ResetMatch(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[StateResponse], error) {
	return c.resetMatch.CallUnary(ctx, req)
}

func (c *MatchControlServiceClient) ResetScore(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[Empty], error) {
	return c.resetScore.CallUnary(ctx, req)
}

func (c *MatchControlServiceClient) AdjustScore(ctx context.Context, req *connect.Request[AdjustScoreRequest]) (*connect.Response[AdjustScoreResponse], error) {
	return c.adjustScore.CallUnary(ctx, req)
}

func (c *MatchControlServiceClient) SetMultiplier(ctx context.Context, req *connect.Request[SetMultiplierRequest]) (*connect.Response[Empty], error) {
	return c.setMultiplier.CallUnary(ctx, req)
}

func (c *MatchControlServiceClient) StartLastBonus(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[Empty], error) {
	return c.startLastBonus.CallUnary(ctx, req)
}

func (c *MatchControlServiceClient) EndLastBonus(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[Empty], error) {
	return c.endLastBonus.CallUnary(ctx, req)
}

func (c *MatchControlServiceClient) StartSpeedChallenge(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[Empty], error) {
	return c.startSpeedChallenge.CallUnary(ctx, req)
}

func (c *MatchControlServiceClient) StopSpeedChallenge(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[Empty], error) {
	return c.stopSpeedChallenge.CallUnary(ctx, req)
}

func (c *MatchControlServiceClient) MarkSuccess(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[Empty], error) {
	return c.markSuccess.CallUnary(ctx, req)
}

func (c *MatchControlServiceClient) Finalize(ctx context.Context, req *connect.Request[FinalizeRequest]) (*connect.Response[FinalizeResponse], error) {
	return c.finalize.CallUnary(ctx, req)
}

func (c *MatchControlServiceClient) GetState(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[StateResponse], error) {
	return c.getState.CallUnary(ctx, req)
}

func (c *MatchControlServiceClient) SaveSettings(ctx context.Context, req *connect.Request[SaveSettingsRequest]) (*connect.Response[SaveSettingsResponse], error) {
	return c.saveSettings.CallUnary(ctx, req)
}

func (c *MatchControlServiceClient) ListMatches(ctx context.Context, req *connect.Request[ListMatchesRequest]) (*connect.Response[ListMatchesResponse], error) {
	return c.listMatches.CallUnary(ctx, req)
}

func (c *MatchControlServiceClient) GetMatch(ctx context.Context, req *connect.Request[GetMatchRequest]) (*connect.Response[GetMatchResponse], error) {
	return c.getMatch.CallUnary(ctx, req)
}

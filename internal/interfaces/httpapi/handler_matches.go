package httpapi

import "net/http"

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startHandlerSpan(r, "httpapi.Handler.GetStats")
	defer span.End()

	stats, err := h.dashboard.Get(ctx)
	if err != nil {
		h.logFailure(ctx, "get stats failed", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, statsToDTO(stats))
}

func (h *Handler) ListRecentMatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startHandlerSpan(r, "httpapi.Handler.ListRecentMatches")
	defer span.End()

	limit, err := parseLimit(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	items, err := h.dashboard.RecentMatches(ctx, limit)
	if err != nil {
		h.logFailure(ctx, "list recent matches failed", err, "limit", limit)
		writeError(ctx, w, err)
		return
	}

	out := make([]matchDTO, 0, len(items))
	for _, item := range items {
		out = append(out, matchToDTO(item))
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) FinishMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startHandlerSpan(r, "httpapi.Handler.FinishMatch")
	defer span.End()

	matchID, req, err := h.decodeScoreRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.settlement.Finish(ctx, matchID, *req.HomeScore, *req.AwayScore)
	if err != nil {
		h.logFailure(ctx, "finish match failed", err, "match_id", matchID)
		writeError(ctx, w, err)
		return
	}
	h.dashboard.Invalidate(ctx)
	h.logger.InfoContext(ctx, "match finished manually",
		"match_id", matchID,
		"home_score", *req.HomeScore,
		"away_score", *req.AwayScore,
		"already_finished", result.AlreadyFinished,
	)

	writeSuccess(ctx, w, http.StatusOK, finishResultToDTO(result))
}

func (h *Handler) ResolveMatchScore(w http.ResponseWriter, r *http.Request) {
	ctx, span := startHandlerSpan(r, "httpapi.Handler.ResolveMatchScore")
	defer span.End()

	matchID, req, err := h.decodeScoreRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.settlement.ResolveScore(ctx, matchID, *req.HomeScore, *req.AwayScore)
	if err != nil {
		h.logFailure(ctx, "resolve match score failed", err, "match_id", matchID)
		writeError(ctx, w, err)
		return
	}
	h.dashboard.Invalidate(ctx)

	writeSuccess(ctx, w, http.StatusOK, finishResultToDTO(result))
}

func (h *Handler) SettleMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startHandlerSpan(r, "httpapi.Handler.SettleMatch")
	defer span.End()

	matchID, err := parseMatchID(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.settlement.SettleMatch(ctx, matchID)
	if err != nil {
		h.logFailure(ctx, "settle match failed", err, "match_id", matchID)
		writeError(ctx, w, err)
		return
	}
	h.dashboard.Invalidate(ctx)

	writeSuccess(ctx, w, http.StatusOK, settleResultToDTO(result))
}

func (h *Handler) decodeScoreRequest(r *http.Request) (int64, scoreRequest, error) {
	matchID, err := parseMatchID(r)
	if err != nil {
		return 0, scoreRequest{}, err
	}

	var req scoreRequest
	if err := decodeJSON(r, &req, false); err != nil {
		return 0, scoreRequest{}, err
	}
	if err := h.validateRequest(r.Context(), req); err != nil {
		return 0, scoreRequest{}, err
	}
	return matchID, req, nil
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	ctx, span := startHandlerSpan(r, "httpapi.Handler.GetAccount")
	defer span.End()

	userID, err := parseUserID(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	account, err := h.accounts.Get(ctx, userID)
	if err != nil {
		h.logFailure(ctx, "get account failed", err, "user_id", userID)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, accountDTO{UserID: account.UserID, Balance: account.Balance.StringFixed(2)})
}

package web

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"bondsignal/internal/engine"
	"bondsignal/internal/provider"
	"bondsignal/internal/reference"
	"bondsignal/internal/risk"
	"bondsignal/internal/scanner"
	"bondsignal/pkg/model"
)

var validate = validator.New()

// AnalyzeRequest carries bars and an optional reference record
type AnalyzeRequest struct {
	Bond      model.Bond       `json:"bond"`
	Bars      []model.Bar      `json:"bars" validate:"required,min=1"`
	Reference *model.Reference `json:"reference,omitempty"`
}

// RiskRequest replays prices through a fresh risk state
type RiskRequest struct {
	Entry       float64   `json:"entry" validate:"gt=0"`
	ATR         float64   `json:"atr" validate:"gte=0"`
	StopLossPct float64   `json:"stop_loss_pct" validate:"gte=0,lt=1"`
	History     []float64 `json:"history,omitempty" validate:"dive,gt=0"`
	Prices      []float64 `json:"prices" validate:"dive,gt=0"`
}

// RiskResponse is the opening plan plus one update per price
type RiskResponse struct {
	ID        string        `json:"id"`
	Mode      risk.Mode     `json:"mode"`
	FixedStop float64       `json:"fixed_stop"`
	Ladder    []risk.Rung   `json:"ladder"`
	Updates   []risk.Update `json:"updates"`
	Final     *risk.State   `json:"final"`
	StoppedAt int           `json:"stopped_at"` // index into prices, -1 if never stopped
}

// ScanRequest selects bonds to scan; empty codes scans the universe
type ScanRequest struct {
	Codes    []string `json:"codes"`
	MinScore float64  `json:"min_score" validate:"gte=0,lte=100"`
	Limit    int      `json:"limit" default:"20" validate:"gte=1,lte=500"`
}

// ScanResponse is a trimmed scan result
type ScanResponse struct {
	ID       string            `json:"id"`
	Total    int               `json:"total"`
	Scanned  int               `json:"scanned"`
	Results  []*engine.Result  `json:"results"`
	Failures []scanner.Failure `json:"failures,omitempty"`
	ScanTime string            `json:"scan_time"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// bindAndValidate binds, applies defaults and validates a request body
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return badRequest("invalid request body")
	}
	if err := defaults.Set(req); err != nil {
		return badRequest(err.Error())
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return echo.NewHTTPError(http.StatusBadRequest, errorResponse{Error: "validation failed", Details: details})
		}
		return badRequest(err.Error())
	}
	return nil
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, errorResponse{Error: msg})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(c echo.Context) error {
	req := &AnalyzeRequest{}
	if err := bindAndValidate(c, req); err != nil {
		return err
	}
	if len(req.Bars) > s.config.MaxBars {
		return badRequest(fmt.Sprintf("at most %d bars per request", s.config.MaxBars))
	}
	// Clients may send bars newest first
	sort.SliceStable(req.Bars, func(i, j int) bool { return req.Bars[i].Time.Before(req.Bars[j].Time) })

	res, err := s.deps.Analyzer.Analyze(req.Bond, req.Bars, req.Reference)
	if err != nil {
		return badRequest(err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleBonds(c echo.Context) error {
	if s.deps.Universe == nil {
		return c.JSON(http.StatusOK, []model.Bond{})
	}
	return c.JSON(http.StatusOK, s.deps.Universe.Bonds())
}

func (s *Server) handleBond(c echo.Context) error {
	code := c.Param("code")
	days := 250
	if v := c.QueryParam("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > s.config.MaxBars {
			return badRequest("days must be between 1 and " + strconv.Itoa(s.config.MaxBars))
		}
		days = n
	}

	bond := model.Bond{Code: code}
	var ref *model.Reference
	if s.deps.Universe != nil {
		b, r, err := s.deps.Universe.Get(code)
		switch {
		case err == nil:
			bond, ref = b, r
		case !errors.Is(err, reference.ErrUnknownBond):
			return err
		}
	}

	bars, err := s.deps.Provider.GetDailyBars(c.Request().Context(), code, days)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, errorResponse{Error: "no bars for " + code})
		}
		s.log.Warn().Err(err).Str("bond", code).Msg("fetching bars failed")
		return echo.NewHTTPError(http.StatusBadGateway, errorResponse{Error: "bar source unavailable"})
	}

	res, err := s.deps.Analyzer.Analyze(bond, bars, ref)
	if err != nil {
		if errors.Is(err, engine.ErrNoBars) {
			return echo.NewHTTPError(http.StatusNotFound, errorResponse{Error: "no bars for " + code})
		}
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleRisk(c echo.Context) error {
	req := &RiskRequest{}
	if err := bindAndValidate(c, req); err != nil {
		return err
	}

	st := s.deps.Analyzer.RiskManager().Open(req.Entry, risk.OpenOptions{
		ATR:         req.ATR,
		History:     req.History,
		StopLossPct: req.StopLossPct,
	})
	resp := RiskResponse{
		ID:        st.ID,
		Mode:      st.Mode,
		FixedStop: st.FixedStop,
		Ladder:    append([]risk.Rung(nil), st.Ladder...),
		Updates:   make([]risk.Update, 0, len(req.Prices)),
		Final:     st,
		StoppedAt: -1,
	}
	for i, p := range req.Prices {
		u := st.Update(p)
		resp.Updates = append(resp.Updates, u)
		if u.StopHit && resp.StoppedAt < 0 {
			resp.StoppedAt = i
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleScan(c echo.Context) error {
	if s.deps.Scanner == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, errorResponse{Error: "scanner not configured"})
	}
	req := &ScanRequest{}
	if err := bindAndValidate(c, req); err != nil {
		return err
	}

	var bonds []model.Bond
	for _, code := range req.Codes {
		if code = strings.TrimSpace(code); code != "" {
			bonds = append(bonds, model.Bond{Code: code})
		}
	}
	if len(bonds) == 0 && s.deps.Universe != nil {
		bonds = s.deps.Universe.Bonds()
	}
	if len(bonds) == 0 {
		return badRequest("no bonds to scan")
	}

	res, err := s.deps.Scanner.Scan(c.Request().Context(), bonds)
	if err != nil {
		return err
	}
	results := res.Filter(req.MinScore)
	if len(results) > req.Limit {
		results = results[:req.Limit]
	}
	if results == nil {
		results = []*engine.Result{}
	}
	return c.JSON(http.StatusOK, ScanResponse{
		ID:       res.ID,
		Total:    res.Total,
		Scanned:  res.Scanned,
		Results:  results,
		Failures: res.Failures,
		ScanTime: res.ScanTime.String(),
	})
}

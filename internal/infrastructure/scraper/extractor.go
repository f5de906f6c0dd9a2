package scraper

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/oddsline/internal/domain/snapshot"
)

var backgroundURLRegex = regexp.MustCompile(`url\(\s*["']?([^"')]+)["']?\s*\)`)

// Selectors locate the parts of a bookmaker listing. Empty fields fall back to
// DefaultSelectors.
type Selectors struct {
	League         string
	LeagueFallback string
	LeagueTitle    string
	Event          string
	EventLink      string
	EventAnyLink   string
	Clock          string
	Date           string
	Teams          string
	TeamName       string
	TeamIcon       string
	MainOdds       string
	StakeButton    string
	OddsValue      string
	MarketGroup    string
	MarketHeader   string
	OutcomeTitle   string
	Score          []string
	HomeScore      string
	AwayScore      string
	Status         string
}

func DefaultSelectors() Selectors {
	return Selectors{
		League:         ".accordion.league-wrap",
		LeagueFallback: ".league-wrap",
		LeagueTitle:    ".icon-title__text",
		Event:          ".event",
		EventLink:      "a.event__link",
		EventAnyLink:   "a",
		Clock:          ".time__hours",
		Date:           ".time__date",
		Teams:          ".opps__container .icon-title",
		TeamName:       ".icon-title__text",
		TeamIcon:       ".icon-title__icon",
		MainOdds:       ".odds",
		StakeButton:    ".stake-button",
		OddsValue:      ".formated-odd",
		MarketGroup:    ".accordion-stake",
		MarketHeader:   ".accordion__header",
		OutcomeTitle:   ".stake__title",
		Score:          []string{".event__score", ".score", ".match-score", ".live-score", ".scoreboard"},
		HomeScore:      ".score__home",
		AwayScore:      ".score__away",
		Status:         ".event__status, .time__status, .match-status",
	}
}

func normalizeSelectors(sel Selectors) Selectors {
	def := DefaultSelectors()
	fill := func(v *string, fallback string) {
		if strings.TrimSpace(*v) == "" {
			*v = fallback
		}
	}
	fill(&sel.League, def.League)
	fill(&sel.LeagueFallback, def.LeagueFallback)
	fill(&sel.LeagueTitle, def.LeagueTitle)
	fill(&sel.Event, def.Event)
	fill(&sel.EventLink, def.EventLink)
	fill(&sel.EventAnyLink, def.EventAnyLink)
	fill(&sel.Clock, def.Clock)
	fill(&sel.Date, def.Date)
	fill(&sel.Teams, def.Teams)
	fill(&sel.TeamName, def.TeamName)
	fill(&sel.TeamIcon, def.TeamIcon)
	fill(&sel.MainOdds, def.MainOdds)
	fill(&sel.StakeButton, def.StakeButton)
	fill(&sel.OddsValue, def.OddsValue)
	fill(&sel.MarketGroup, def.MarketGroup)
	fill(&sel.MarketHeader, def.MarketHeader)
	fill(&sel.OutcomeTitle, def.OutcomeTitle)
	fill(&sel.HomeScore, def.HomeScore)
	fill(&sel.AwayScore, def.AwayScore)
	fill(&sel.Status, def.Status)
	if len(sel.Score) == 0 {
		sel.Score = def.Score
	}
	return sel
}

// Extractor reads raw match rows out of a rendered listing page.
type Extractor struct {
	sel Selectors
}

func NewExtractor(sel Selectors) *Extractor {
	return &Extractor{sel: normalizeSelectors(sel)}
}

// Extract returns one raw record per event row that names both teams. Rows
// without teams are skipped; everything else is left to normalization.
func (e *Extractor) Extract(page []byte) ([]snapshot.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, crerr.Wrap(err, "parse listing html")
	}

	leagues := doc.Find(e.sel.League)
	if leagues.Length() == 0 {
		leagues = doc.Find(e.sel.LeagueFallback)
	}

	out := make([]snapshot.RawRecord, 0)
	leagues.Each(func(order int, league *goquery.Selection) {
		name := selectionText(league.Find(e.sel.LeagueTitle).First())
		league.Find(e.sel.Event).Each(func(_ int, event *goquery.Selection) {
			record, ok := e.extractEvent(event)
			if !ok {
				return
			}
			record.League = name
			record.LeagueOrder = order
			out = append(out, record)
		})
	})
	return out, nil
}

func (e *Extractor) extractEvent(event *goquery.Selection) (snapshot.RawRecord, bool) {
	var record snapshot.RawRecord

	teams := event.Find(e.sel.Teams)
	if teams.Length() >= 2 {
		home, away := teams.Eq(0), teams.Eq(1)
		record.HomeTeam = selectionText(home.Find(e.sel.TeamName).First())
		record.AwayTeam = selectionText(away.Find(e.sel.TeamName).First())
		record.HomeLogo = backgroundURL(home.Find(e.sel.TeamIcon).First())
		record.AwayLogo = backgroundURL(away.Find(e.sel.TeamIcon).First())
	} else {
		// Compact rows repeat the league title before both team names.
		names := event.Find(e.sel.TeamName)
		if names.Length() >= 3 {
			record.HomeTeam = selectionText(names.Eq(1))
			record.AwayTeam = selectionText(names.Eq(2))
		}
	}
	if record.HomeTeam == "" || record.AwayTeam == "" {
		return snapshot.RawRecord{}, false
	}

	link := event.Find(e.sel.EventLink).First()
	if link.Length() == 0 {
		link = event.Find(e.sel.EventAnyLink).First()
	}
	record.Href, _ = link.Attr("href")

	record.Clock = selectionText(event.Find(e.sel.Clock).First())
	record.Date = selectionText(event.Find(e.sel.Date).First())

	record.StatusText = selectionText(event.Find(e.sel.Status).First())
	if record.StatusText == "" && !looksLikeClock(record.Clock) {
		// Live rows show the minute or period where the kickoff time would be.
		record.StatusText = record.Clock
	}

	record.ScoreText = e.scoreText(event)
	if record.ScoreText == "" {
		record.HomeScoreText = selectionText(event.Find(e.sel.HomeScore).First())
		record.AwayScoreText = selectionText(event.Find(e.sel.AwayScore).First())
	}

	buttons := event.Find(e.sel.MainOdds).First().Find(e.sel.StakeButton)
	if buttons.Length() >= 3 {
		record.HomeOdds = selectionText(buttons.Eq(0).Find(e.sel.OddsValue).First())
		record.DrawOdds = selectionText(buttons.Eq(1).Find(e.sel.OddsValue).First())
		record.AwayOdds = selectionText(buttons.Eq(2).Find(e.sel.OddsValue).First())
	}

	event.Find(e.sel.MarketGroup).Each(func(_ int, group *goquery.Selection) {
		header := group.Find(e.sel.MarketHeader).First()
		if header.Length() == 0 {
			return
		}
		market := snapshot.RawMarket{Name: selectionText(header)}
		group.Find(e.sel.StakeButton).Each(func(_ int, button *goquery.Selection) {
			title := button.Find(e.sel.OutcomeTitle).First()
			odds := button.Find(e.sel.OddsValue).First()
			if title.Length() == 0 || odds.Length() == 0 {
				return
			}
			market.Outcomes = append(market.Outcomes, snapshot.RawOutcome{
				Name: selectionText(title),
				Odds: selectionText(odds),
			})
		})
		if len(market.Outcomes) > 0 {
			record.Markets = append(record.Markets, market)
		}
	})

	return record, true
}

// scoreText returns the first score-looking text among the score selectors.
func (e *Extractor) scoreText(event *goquery.Selection) string {
	for _, selector := range e.sel.Score {
		var found string
		event.Find(selector).EachWithBreak(func(_ int, item *goquery.Selection) bool {
			text := selectionText(item)
			if strings.ContainsAny(text, ":-") && strings.ContainsAny(text, "0123456789") {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func selectionText(s *goquery.Selection) string {
	if s == nil || s.Length() == 0 {
		return ""
	}
	return strings.Join(strings.Fields(s.Text()), " ")
}

func backgroundURL(s *goquery.Selection) string {
	style, ok := s.Attr("style")
	if !ok || !strings.Contains(style, "background-image") {
		return ""
	}
	m := backgroundURLRegex.FindStringSubmatch(style)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func looksLikeClock(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	hours, minutes, ok := strings.Cut(v, ":")
	if !ok || len(minutes) != 2 || hours == "" || len(hours) > 2 {
		return false
	}
	for _, r := range hours + minutes {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

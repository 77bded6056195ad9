package registry

import "github.com/linesentry/core/internal/domain"

// Reference data seeded at startup. Keys follow The Odds API catalog
// so provider responses join against the registry without mapping
// tables. Category ties markets to sport families; "game" and "period"
// apply to every sport, subject to the period structure check.

func seedSports() []domain.Sport {
	return []domain.Sport{
		{
			Key:      "americanfootball_nfl",
			Name:     "NFL",
			Category: "football",
			Periods:  domain.PeriodsQuarters,
			Active:   true,
			Keywords: []string{"nfl", "football", "pro football"},
		},
		{
			Key:      "americanfootball_ncaaf",
			Name:     "NCAA Football",
			Category: "football",
			Periods:  domain.PeriodsQuarters,
			Active:   true,
			Keywords: []string{"ncaaf", "college football", "cfb"},
		},
		{
			Key:      "basketball_nba",
			Name:     "NBA",
			Category: "basketball",
			Periods:  domain.PeriodsQuarters,
			Active:   true,
			Keywords: []string{"nba", "basketball", "pro basketball"},
		},
		{
			Key:      "basketball_ncaab",
			Name:     "NCAA Basketball",
			Category: "basketball",
			Periods:  domain.PeriodsHalves,
			Active:   true,
			Keywords: []string{"ncaab", "college basketball", "cbb", "march madness"},
		},
		{
			Key:      "baseball_mlb",
			Name:     "MLB",
			Category: "baseball",
			Periods:  domain.PeriodsInnings,
			Active:   true,
			Keywords: []string{"mlb", "baseball"},
		},
		{
			Key:      "icehockey_nhl",
			Name:     "NHL",
			Category: "hockey",
			Periods:  domain.PeriodsPeriods,
			Active:   true,
			Keywords: []string{"nhl", "hockey", "ice hockey"},
		},
		{
			Key:      "soccer_epl",
			Name:     "Premier League",
			Category: "soccer",
			Periods:  domain.PeriodsHalves,
			Active:   true,
			Keywords: []string{"epl", "premier league", "english premier league"},
		},
		{
			Key:      "soccer_usa_mls",
			Name:     "MLS",
			Category: "soccer",
			Periods:  domain.PeriodsHalves,
			Active:   false,
			Keywords: []string{"mls", "major league soccer"},
		},
	}
}

func seedMarkets() []domain.MarketDefinition {
	return []domain.MarketDefinition{
		// Full-game core markets, every sport.
		{
			Key:          "h2h",
			Name:         "Moneyline",
			Category:     "game",
			Shape:        domain.ShapeTeamBased,
			RequiredTier: domain.TierStarter,
			Keywords:     []string{"moneyline", "money line", "ml", "h2h"},
		},
		{
			Key:          "spreads",
			Name:         "Point Spread",
			Category:     "game",
			Shape:        domain.ShapeTeamBased,
			RequiredTier: domain.TierStarter,
			Keywords:     []string{"spread", "spreads", "point spread", "ats", "handicap"},
		},
		{
			Key:          "totals",
			Name:         "Game Total",
			Category:     "game",
			Shape:        domain.ShapeOverUnder,
			RequiredTier: domain.TierStarter,
			Keywords:     []string{"total", "totals", "over under", "o/u", "ou"},
		},

		// Alternate lines.
		{
			Key:          "alternate_spreads",
			Name:         "Alternate Spreads",
			Category:     "game",
			Shape:        domain.ShapeTeamBased,
			RequiredTier: domain.TierCore,
			Alternate:    true,
			Keywords:     []string{"alternate spread", "alt spread"},
		},
		{
			Key:          "alternate_totals",
			Name:         "Alternate Totals",
			Category:     "game",
			Shape:        domain.ShapeOverUnder,
			RequiredTier: domain.TierCore,
			Alternate:    true,
			Keywords:     []string{"alternate total", "alt total"},
		},
		{
			Key:          "team_totals",
			Name:         "Team Totals",
			Category:     "game",
			Shape:        domain.ShapeOverUnder,
			RequiredTier: domain.TierCore,
			Keywords:     []string{"team total", "tt"},
		},

		// Period markets, gated on the sport's period structure.
		{
			Key:          "h2h_h1",
			Name:         "1st Half Moneyline",
			Category:     "period",
			Shape:        domain.ShapeTeamBased,
			RequiredTier: domain.TierCore,
			Period:       "1h",
			Keywords:     []string{"first half moneyline", "1h moneyline", "1h ml"},
		},
		{
			Key:          "spreads_h1",
			Name:         "1st Half Spread",
			Category:     "period",
			Shape:        domain.ShapeTeamBased,
			RequiredTier: domain.TierCore,
			Period:       "1h",
			Keywords:     []string{"first half spread", "1h spread"},
		},
		{
			Key:          "totals_h1",
			Name:         "1st Half Total",
			Category:     "period",
			Shape:        domain.ShapeOverUnder,
			RequiredTier: domain.TierCore,
			Period:       "1h",
			Keywords:     []string{"first half total", "1h total"},
		},
		{
			Key:          "spreads_q1",
			Name:         "1st Quarter Spread",
			Category:     "period",
			Shape:        domain.ShapeTeamBased,
			RequiredTier: domain.TierCore,
			Period:       "1q",
			Keywords:     []string{"first quarter spread", "1q spread"},
		},
		{
			Key:          "totals_q1",
			Name:         "1st Quarter Total",
			Category:     "period",
			Shape:        domain.ShapeOverUnder,
			RequiredTier: domain.TierCore,
			Period:       "1q",
			Keywords:     []string{"first quarter total", "1q total"},
		},
		{
			Key:          "h2h_p1",
			Name:         "1st Period Moneyline",
			Category:     "period",
			Shape:        domain.ShapeTeamBased,
			RequiredTier: domain.TierCore,
			Period:       "1p",
			Keywords:     []string{"first period moneyline", "1p moneyline"},
		},

		// Soccer-family markets.
		{
			Key:          "draw_no_bet",
			Name:         "Draw No Bet",
			Category:     "soccer",
			Shape:        domain.ShapeTeamBased,
			RequiredTier: domain.TierCore,
			Keywords:     []string{"draw no bet", "dnb"},
		},
		{
			Key:          "btts",
			Name:         "Both Teams To Score",
			Category:     "soccer",
			Shape:        domain.ShapeYesNo,
			RequiredTier: domain.TierCore,
			Keywords:     []string{"both teams to score", "btts"},
		},

		// Player props per sport family.
		{
			Key:          "player_pass_yds",
			Name:         "Passing Yards",
			Category:     "football",
			Shape:        domain.ShapeOverUnder,
			RequiredTier: domain.TierCore,
			PlayerProp:   true,
			Keywords:     []string{"passing yards", "pass yds"},
		},
		{
			Key:          "player_rush_yds",
			Name:         "Rushing Yards",
			Category:     "football",
			Shape:        domain.ShapeOverUnder,
			RequiredTier: domain.TierCore,
			PlayerProp:   true,
			Keywords:     []string{"rushing yards", "rush yds"},
		},
		{
			Key:          "player_reception_yds",
			Name:         "Receiving Yards",
			Category:     "football",
			Shape:        domain.ShapeOverUnder,
			RequiredTier: domain.TierCore,
			PlayerProp:   true,
			Keywords:     []string{"receiving yards", "rec yds"},
		},
		{
			Key:          "player_anytime_td",
			Name:         "Anytime Touchdown",
			Category:     "football",
			Shape:        domain.ShapeYesNo,
			RequiredTier: domain.TierCore,
			PlayerProp:   true,
			Keywords:     []string{"anytime touchdown", "anytime td", "td scorer"},
		},
		{
			Key:          "player_points",
			Name:         "Player Points",
			Category:     "basketball",
			Shape:        domain.ShapeOverUnder,
			RequiredTier: domain.TierCore,
			PlayerProp:   true,
			Keywords:     []string{"player points", "points", "pts"},
		},
		{
			Key:          "player_points_alternate",
			Name:         "Alternate Player Points",
			Category:     "basketball",
			Shape:        domain.ShapeOverUnder,
			RequiredTier: domain.TierSharp,
			PlayerProp:   true,
			Alternate:    true,
			Keywords:     []string{"alternate player points", "alt points"},
		},
		{
			Key:          "player_rebounds",
			Name:         "Player Rebounds",
			Category:     "basketball",
			Shape:        domain.ShapeOverUnder,
			RequiredTier: domain.TierCore,
			PlayerProp:   true,
			Keywords:     []string{"player rebounds", "rebounds", "rebs"},
		},
		{
			Key:          "player_assists",
			Name:         "Player Assists",
			Category:     "basketball",
			Shape:        domain.ShapeOverUnder,
			RequiredTier: domain.TierCore,
			PlayerProp:   true,
			Keywords:     []string{"player assists", "assists", "asts"},
		},
		{
			Key:          "player_threes",
			Name:         "Player Threes",
			Category:     "basketball",
			Shape:        domain.ShapeOverUnder,
			RequiredTier: domain.TierCore,
			PlayerProp:   true,
			Keywords:     []string{"player threes", "threes", "three pointers"},
		},
		{
			Key:          "batter_home_runs",
			Name:         "Batter Home Runs",
			Category:     "baseball",
			Shape:        domain.ShapeOverUnder,
			RequiredTier: domain.TierCore,
			PlayerProp:   true,
			Keywords:     []string{"home runs", "hr"},
		},
		{
			Key:          "pitcher_strikeouts",
			Name:         "Pitcher Strikeouts",
			Category:     "baseball",
			Shape:        domain.ShapeOverUnder,
			RequiredTier: domain.TierCore,
			PlayerProp:   true,
			Keywords:     []string{"strikeouts", "pitcher ks", "ks"},
		},
		{
			Key:          "player_shots_on_goal",
			Name:         "Shots On Goal",
			Category:     "hockey",
			Shape:        domain.ShapeOverUnder,
			RequiredTier: domain.TierCore,
			PlayerProp:   true,
			Keywords:     []string{"shots on goal", "sog"},
		},
		{
			Key:          "player_goal_scorer_anytime",
			Name:         "Anytime Goal Scorer",
			Category:     "hockey",
			Shape:        domain.ShapeYesNo,
			RequiredTier: domain.TierCore,
			PlayerProp:   true,
			Keywords:     []string{"anytime goal", "goal scorer"},
		},
	}
}

func seedBookmakers() []domain.Bookmaker {
	return []domain.Bookmaker{
		{Key: "pinnacle", Name: "Pinnacle", Tier: domain.BookSharp, RequiredTier: domain.TierSharp, Region: "eu", Keywords: []string{"pinnacle", "pinny"}},
		{Key: "circasports", Name: "Circa Sports", Tier: domain.BookSharp, RequiredTier: domain.TierSharp, Region: "us", Keywords: []string{"circa", "circa sports"}},
		{Key: "betonlineag", Name: "BetOnline", Tier: domain.BookMarket, RequiredTier: domain.TierCore, Region: "us", Keywords: []string{"betonline", "bol"}},
		{Key: "lowvig", Name: "LowVig", Tier: domain.BookMarket, RequiredTier: domain.TierCore, Region: "us", Keywords: []string{"lowvig"}},
		{Key: "draftkings", Name: "DraftKings", Tier: domain.BookRetail, RequiredTier: domain.TierStarter, Region: "us", Keywords: []string{"draftkings", "dk"}},
		{Key: "fanduel", Name: "FanDuel", Tier: domain.BookRetail, RequiredTier: domain.TierStarter, Region: "us", Keywords: []string{"fanduel", "fd"}},
		{Key: "betmgm", Name: "BetMGM", Tier: domain.BookRetail, RequiredTier: domain.TierStarter, Region: "us", Keywords: []string{"betmgm", "mgm"}},
		{Key: "williamhill_us", Name: "Caesars", Tier: domain.BookRetail, RequiredTier: domain.TierStarter, Region: "us", Keywords: []string{"caesars", "william hill"}},
		{Key: "espnbet", Name: "ESPN BET", Tier: domain.BookRetail, RequiredTier: domain.TierStarter, Region: "us", Keywords: []string{"espn bet", "espnbet"}},
		{Key: "hardrockbet", Name: "Hard Rock Bet", Tier: domain.BookRetail, RequiredTier: domain.TierStarter, Region: "us", Keywords: []string{"hard rock"}},
		{Key: "betrivers", Name: "BetRivers", Tier: domain.BookRetail, RequiredTier: domain.TierStarter, Region: "us", Keywords: []string{"betrivers"}},
		{Key: "bovada", Name: "Bovada", Tier: domain.BookRetail, RequiredTier: domain.TierStarter, Region: "us", Keywords: []string{"bovada"}},
		{Key: "bet365", Name: "bet365", Tier: domain.BookRetail, RequiredTier: domain.TierStarter, Region: "eu", Keywords: []string{"bet365", "365"}},
		{Key: "unibet_us", Name: "Unibet", Tier: domain.BookRetail, RequiredTier: domain.TierStarter, Region: "us", Keywords: []string{"unibet"}},
	}
}

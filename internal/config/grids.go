package config

import (
	"github.com/danielpatrickdp/reimburse-harness/internal/formula"
	"github.com/danielpatrickdp/reimburse-harness/internal/search"
)

// #region default-grids
// DefaultGrids are the coarse grids searched when the config names none: a
// per-diem linear base with a five-day bonus, a tiered receipt schedule and a
// rule set keyed on receipt size and daily mileage.
func DefaultGrids() []search.Grid {
	return []search.Grid{linearGrid(), tieredGrid(), ruleSetGrid()}
}

func linearGrid() search.Grid {
	return search.Grid{
		Name: "linear",
		Template: formula.Spec{Kind: formula.KindLinear, Linear: &formula.LinearSpec{
			Bonuses: []formula.Bonus{{When: formula.When(formula.FieldDays, formula.OpEq, 5)}},
		}},
		Params: []search.Param{
			search.Span("days", 50, 120, 5),
			search.Span("miles", 0.3, 0.6, 0.05),
			search.Span("receipts", 0.2, 0.6, 0.05),
			search.Fixed("bonuses[0].amount", 0, 25, 50),
		},
	}
}

func tieredGrid() search.Grid {
	return search.Grid{
		Name: "tiered",
		Template: formula.Spec{Kind: formula.KindTiered, Tiered: &formula.TieredSpec{
			Bands:    []formula.Band{{Width: 600, Rate: 0.8}, {Width: 600, Rate: 0.5}},
			TailRate: 0.2,
		}},
		Params: []search.Param{
			search.Span("day_rate", 80, 110, 10),
			search.Fixed("mile_rate", 0.45, 0.5, 0.55),
			search.Fixed("bands[0].width", 400, 600, 800),
			search.Fixed("bands[0].rate", 0.6, 0.8),
			search.Fixed("bands[1].rate", 0.3, 0.5),
			search.Fixed("tail_rate", 0.1, 0.2, 0.3),
		},
	}
}

func ruleSetGrid() search.Grid {
	return search.Grid{
		Name: "rules",
		Template: formula.Spec{Kind: formula.KindRuleSet, Rules: &formula.RuleSetSpec{
			Rules: []formula.Rule{
				{When: formula.When(formula.FieldReceipts, formula.OpLt, 50), Rate: 0.1},
				{When: formula.When(formula.FieldMilesPerDay, formula.OpGte, 180).And(formula.FieldMilesPerDay, formula.OpLte, 220), Rate: 0.5},
				{Rate: 0.4},
			},
			Bonuses: []formula.Bonus{{When: formula.When(formula.FieldDays, formula.OpEq, 5), Amount: 25}},
		}},
		Params: []search.Param{
			search.Span("day_rate", 80, 110, 10),
			search.Fixed("mile_rate", 0.45, 0.5, 0.55),
			search.Fixed("rules[0].rate", 0, 0.1, 0.2),
			search.Fixed("rules[1].rate", 0.4, 0.5, 0.6),
			search.Fixed("rules[2].rate", 0.3, 0.4, 0.5),
			search.Fixed("bonuses[0].amount", 0, 25, 50),
		},
	}
}

// #endregion default-grids

package presenter

import (
	"strconv"

	"github.com/radiusdt/roas-board/internal/analytics"
	"github.com/radiusdt/roas-board/internal/models"
)

// Header names a rendered column.
type Header struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Cell is one formatted metric value.
type Cell struct {
	Column string     `json:"column"`
	Raw    float64    `json:"raw"`
	Text   string     `json:"text"`
	Style  *CellStyle `json:"style,omitempty"`
}

// Row is one visible Group.
type Row struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	LatestDay string `json:"latest_day,omitempty"`
	Cells     []Cell `json:"cells"`
}

// Section is one SuperGroup with its visible members in board order.
type Section struct {
	ID         string  `json:"id"`
	Game       string  `json:"game"`
	Country    string  `json:"country"`
	Platform   string  `json:"platform"`
	Value      float64 `json:"value"`
	ValueText  string  `json:"value_text"`
	Custom     bool    `json:"custom_member_order"`
	HiddenRows int     `json:"hidden_rows"`
	Rows       []Row   `json:"rows"`
}

// SummaryCard is one headline number.
type SummaryCard struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Raw   float64 `json:"raw"`
	Text  string  `json:"text"`
}

// Table is the presentation-ready board.
type Table struct {
	Criterion string        `json:"criterion"`
	View      string        `json:"view"`
	Custom    bool          `json:"custom_order"`
	Columns   []Header      `json:"columns"`
	Sections  []Section     `json:"sections"`
	Summary   []SummaryCard `json:"summary"`
}

// Build renders a derived board with the given settings. Hidden Groups are
// left out of the rows but counted per section.
func Build(view *analytics.BoardView, settings models.Settings) (*Table, error) {
	cols, err := ResolveColumns(settings.VisibleColumns)
	if err != nil {
		return nil, err
	}

	t := &Table{
		Criterion: string(view.Criterion),
		View:      string(view.View),
		Custom:    view.Custom,
		Columns:   make([]Header, len(cols)),
		Sections:  make([]Section, 0, len(view.SuperGroups)),
		Summary:   summaryCards(view.Summary),
	}
	for i, c := range cols {
		t.Columns[i] = Header{ID: c.ID, Label: c.Label}
	}

	valueKind := criterionKind(view.Criterion)
	for _, sg := range view.SuperGroups {
		sec := Section{
			ID:        sg.ID,
			Game:      sg.Key.Game,
			Country:   sg.Key.Country,
			Platform:  sg.Key.Platform,
			Value:     sg.Value,
			ValueText: Format(valueKind, sg.Value),
			Custom:    sg.Custom,
			Rows:      make([]Row, 0, len(sg.Members)),
		}
		for _, m := range sg.Members {
			if m.Hidden {
				sec.HiddenRows++
				continue
			}
			sec.Rows = append(sec.Rows, buildRow(m, cols, settings.FormattingRules))
		}
		t.Sections = append(t.Sections, sec)
	}
	return t, nil
}

func buildRow(m analytics.GroupView, cols []Column, rules []models.FormattingRule) Row {
	row := Row{
		ID:        m.ID,
		Source:    m.Key.Source,
		LatestDay: latestDay(m.Group),
		Cells:     make([]Cell, len(cols)),
	}
	for i, c := range cols {
		raw := c.Value(m.Metrics)
		cell := Cell{Column: c.ID, Raw: raw, Text: Format(c.Kind, raw)}
		if style, ok := MatchRule(rules, c.ID, DisplayValue(c.Kind, raw)); ok {
			cell.Style = style
		}
		row.Cells[i] = cell
	}
	return row
}

// latestDay is the last valid date of a Group, or "" when it has none.
func latestDay(g *analytics.Group) string {
	for i := len(g.Days) - 1; i >= 0; i-- {
		if g.Days[i].ValidDate {
			return analytics.FormatDay(g.Days[i])
		}
	}
	return ""
}

func criterionKind(c analytics.SortCriterion) Kind {
	switch {
	case c == analytics.SortCost || c == analytics.SortRevenue:
		return KindCurrency
	case c.IsRoas():
		return KindPercent
	}
	return KindCount
}

func summaryCards(s analytics.Summary) []SummaryCard {
	cards := []SummaryCard{
		{ID: "groups", Label: "Groups", Raw: float64(s.Groups), Text: strconv.Itoa(s.Groups)},
		{ID: "installs", Label: "Installs", Raw: float64(s.Installs), Text: FormatCount(float64(s.Installs))},
		{ID: "cost", Label: "Cost", Raw: s.Cost, Text: FormatCurrency(s.Cost)},
		{ID: "revenue", Label: "Revenue", Raw: s.Revenue, Text: FormatCurrency(s.Revenue)},
	}
	for _, day := range []int{0, 7, 30} {
		c, _ := ColumnByID("roas_d" + strconv.Itoa(day))
		v := s.Roas[day]
		cards = append(cards, SummaryCard{ID: c.ID, Label: c.Label, Raw: v, Text: FormatPercent(v)})
	}
	return cards
}

package inspection

// Summary holds totals derived from a form's rows. It is never stored.
type Summary struct {
	TotalItems     int     `json:"totalItems"`
	InspectedItems int     `json:"inspectedItems"`
	Passed         int     `json:"passed"`
	Failed         int     `json:"failed"`
	TotalMax       float64 `json:"totalMax"`
	TotalActual    float64 `json:"totalActual"`
	Percentage     float64 `json:"percentage"` // 0 when TotalMax is 0
}

// RecomputeSummary derives totals from rows. It does not modify its input.
func RecomputeSummary(rows []RowItem) Summary {
	s := Summary{TotalItems: len(rows)}

	for i := range rows {
		s.TotalMax += rows[i].MaxScore
		s.TotalActual += rows[i].ActualScore
		switch rows[i].Status {
		case StatusOK:
			s.Passed++
		case StatusNG:
			s.Failed++
		}
	}
	s.InspectedItems = s.Passed + s.Failed

	if s.TotalMax > 0 {
		s.Percentage = round2(100 * s.TotalActual / s.TotalMax)
	}

	return s
}

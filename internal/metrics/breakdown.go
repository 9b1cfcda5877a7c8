package metrics

// StatsByPage groups call samples by form page. Calls made outside a page
// extraction are left out.
func StatsByPage(metrics []Metric) map[int]*DetailedStats {
	byPage := make(map[int][]Metric)
	for _, m := range metrics {
		if m.Page > 0 {
			byPage[m.Page] = append(byPage[m.Page], m)
		}
	}
	if len(byPage) == 0 {
		return nil
	}
	out := make(map[int]*DetailedStats, len(byPage))
	for page, ms := range byPage {
		out[page] = GetDetailedStats(ms)
	}
	return out
}

// StatsByModel groups call samples by "provider/model".
func StatsByModel(metrics []Metric) map[string]*DetailedStats {
	byModel := make(map[string][]Metric)
	for _, m := range metrics {
		key := m.Provider
		if m.Model != "" {
			key += "/" + m.Model
		}
		if key == "" {
			key = "unknown"
		}
		byModel[key] = append(byModel[key], m)
	}
	if len(byModel) == 0 {
		return nil
	}
	out := make(map[string]*DetailedStats, len(byModel))
	for key, ms := range byModel {
		out[key] = GetDetailedStats(ms)
	}
	return out
}

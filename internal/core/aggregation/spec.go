package aggregation

// Validate checks a metric definition against the source registry.
func (s MetricSpec) Validate() error {
	if s.Name == "" {
		return InvalidSpecf("metric name must not be empty")
	}
	src, err := LookupSource(s.Source)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(s.Measures))
	for _, m := range s.Measures {
		if m.Name == "" || m.Name == OpCount {
			return InvalidSpecf("metric %q: invalid measure name %q", s.Name, m.Name)
		}
		if seen[m.Name] {
			return InvalidSpecf("metric %q: duplicate measure %q", s.Name, m.Name)
		}
		seen[m.Name] = true
		if !ValidMeasureOperator(m.Op) {
			return InvalidSpecf("metric %q: unsupported operator %q on measure %q", s.Name, m.Op, m.Name)
		}
		if !src.HasField(m.Field) {
			return InvalidSpecf("metric %q: field %q is not defined on %s", s.Name, m.Field, s.Source)
		}
	}

	for _, f := range s.Filters {
		if _, ok := src.Dimension(f.Field); !ok {
			return InvalidSpecf("metric %q: filter field %q is not defined on %s", s.Name, f.Field, s.Source)
		}
		if f.Op != FilterEq && f.Op != FilterNe {
			return InvalidSpecf("metric %q: unsupported filter operator %q", s.Name, f.Op)
		}
	}

	if s.Rank != nil {
		if s.Rank.By != OpCount && !seen[s.Rank.By] {
			return InvalidSpecf("metric %q: rank measure %q is not defined", s.Name, s.Rank.By)
		}
		if s.Rank.Limit < 0 {
			return InvalidSpecf("metric %q: rank limit must be >= 0", s.Name)
		}
	}

	_, err = s.ResolveGroupBy(s.GroupBy)
	return err
}

// ResolveGroupBy validates a grouping against the metric's source and returns
// the dimensions in request order.
func (s MetricSpec) ResolveGroupBy(groupBy []string) ([]Dimension, error) {
	src, err := LookupSource(s.Source)
	if err != nil {
		return nil, err
	}
	out := make([]Dimension, 0, len(groupBy))
	seen := make(map[string]bool, len(groupBy))
	for _, name := range groupBy {
		d, ok := src.Dimension(name)
		if !ok {
			return nil, InvalidSpecf("grouping field %q is not defined on %s", name, s.Source)
		}
		if seen[name] {
			return nil, InvalidSpecf("grouping field %q listed twice", name)
		}
		seen[name] = true
		out = append(out, d)
	}
	return out, nil
}

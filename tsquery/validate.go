package tsquery

// Validate checks that every parameter family tpl requires is present and
// lists all missing ones at once.
func Validate(tpl Template, p Parameters) error {
	var missing []string
	for _, name := range tpl.Required {
		if !hasParameter(p, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingParametersError{Intent: tpl.Intent, Names: missing}
	}
	return nil
}

func hasParameter(p Parameters, name string) bool {
	switch name {
	case ParamTimeRange:
		return true
	case ParamRegions:
		return len(p.Regions) > 0
	case ParamEnergySources:
		return len(p.EnergySources) > 0
	case ParamMeasurementTypes:
		return len(p.MeasurementTypes) > 0
	case ParamAggregation:
		return p.Aggregation != ""
	case ParamFilters:
		return len(p.Filters) > 0
	case ParamLimit:
		return p.Limit != nil
	case ParamGroupBy:
		return len(p.GroupBy) > 0
	default:
		return false
	}
}

package action

import (
	"fmt"
	"sort"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/membership"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
)

func decodeEffects(raw any) ([]Effect, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if len(v) == 0 {
			return nil, nil
		}
		if _, ok := v["kind"]; ok {
			e, err := decodeEffect(v)
			if err != nil {
				return nil, err
			}
			return []Effect{e}, nil
		}
		return nil, fmt.Errorf("script must return a list of effects")
	case []any:
		if len(v) > MaxEffects {
			return nil, fmt.Errorf("at most %d effects are allowed", MaxEffects)
		}
		out := make([]Effect, 0, len(v))
		for i, item := range v {
			fields, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("effect %d is not a table", i+1)
			}
			e, err := decodeEffect(fields)
			if err != nil {
				return nil, fmt.Errorf("effect %d: %w", i+1, err)
			}
			out = append(out, e)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("script must return a list of effects")
	}
}

func decodeEffect(fields map[string]any) (Effect, error) {
	if err := onlyKeys(fields, "kind", "to", "amount", "account", "tier", "settings"); err != nil {
		return Effect{}, err
	}
	kind, err := stringField(fields, "kind")
	if err != nil {
		return Effect{}, err
	}
	e := Effect{Kind: Kind(kind)}
	if e.To, err = stringField(fields, "to"); err != nil {
		return Effect{}, err
	}
	if e.Amount, err = intField(fields, "amount"); err != nil {
		return Effect{}, err
	}
	if e.Account, err = stringField(fields, "account"); err != nil {
		return Effect{}, err
	}
	tier, err := stringField(fields, "tier")
	if err != nil {
		return Effect{}, err
	}
	e.Tier = membership.Tier(tier)
	if raw, ok := fields["settings"]; ok {
		settings, ok := raw.(map[string]any)
		if !ok {
			return Effect{}, fmt.Errorf("settings must be a table")
		}
		patch, err := decodeSettings(settings)
		if err != nil {
			return Effect{}, err
		}
		e.Settings = &patch
	}
	return e, nil
}

func decodeSettings(fields map[string]any) (SettingsPatch, error) {
	var patch SettingsPatch
	if err := onlyKeys(fields,
		"voting_delay_seconds", "voting_period_seconds", "execution_delay_seconds",
		"quorum_bps", "default_voting_model", "default_majority", "super_majority_bps",
	); err != nil {
		return patch, err
	}
	ints := []struct {
		key    string
		target **int64
	}{
		{"voting_delay_seconds", &patch.VotingDelaySeconds},
		{"voting_period_seconds", &patch.VotingPeriodSeconds},
		{"execution_delay_seconds", &patch.ExecutionDelaySeconds},
		{"quorum_bps", &patch.QuorumBps},
		{"super_majority_bps", &patch.SuperMajorityBps},
	}
	for _, f := range ints {
		if _, ok := fields[f.key]; !ok {
			continue
		}
		v, err := intField(fields, f.key)
		if err != nil {
			return patch, err
		}
		*f.target = &v
	}
	if _, ok := fields["default_voting_model"]; ok {
		v, err := stringField(fields, "default_voting_model")
		if err != nil {
			return patch, err
		}
		model := organization.VotingModel(v)
		patch.DefaultVotingModel = &model
	}
	if _, ok := fields["default_majority"]; ok {
		v, err := stringField(fields, "default_majority")
		if err != nil {
			return patch, err
		}
		majority := organization.Majority(v)
		patch.DefaultMajority = &majority
	}
	return patch, nil
}

func onlyKeys(fields map[string]any, allowed ...string) error {
	known := make(map[string]struct{}, len(allowed))
	for _, key := range allowed {
		known[key] = struct{}{}
	}
	var unknown []string
	for key := range fields {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown field %q", unknown[0])
	}
	return nil
}

func stringField(fields map[string]any, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return s, nil
}

func intField(fields map[string]any, key string) (int64, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return 0, nil
	}
	n, ok := raw.(int64)
	if !ok {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

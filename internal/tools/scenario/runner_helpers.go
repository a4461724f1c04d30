package scenario

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/governing.space/internal/platform/requestctx"
	"github.com/louisbranch/governing.space/internal/services/governance/service"
)

type scenarioState struct {
	// orgID is the organization steps target when they omit org.
	orgID       string
	proposals   map[string]string
	withdrawals map[string]string
}

func newScenarioState() *scenarioState {
	return &scenarioState{
		proposals:   map[string]string{},
		withdrawals: map[string]string{},
	}
}

func (s *scenarioState) organization(args map[string]any) (string, error) {
	if org := optionalString(args, "org", ""); org != "" {
		return org, nil
	}
	if s.orgID == "" {
		return "", fmt.Errorf("org is required before an organization step")
	}
	return s.orgID, nil
}

// proposal resolves a scenario proposal name, falling back to a literal id.
func (s *scenarioState) proposal(args map[string]any) (string, error) {
	ref, err := requiredString(args, "proposal")
	if err != nil {
		return "", err
	}
	if id, ok := s.proposals[ref]; ok {
		return id, nil
	}
	return ref, nil
}

func (s *scenarioState) withdrawal(args map[string]any) (string, error) {
	ref, err := requiredString(args, "withdrawal")
	if err != nil {
		return "", err
	}
	if id, ok := s.withdrawals[ref]; ok {
		return id, nil
	}
	return ref, nil
}

// actorContext makes the step's actor the caller. system = true marks it as
// a system actor instead of an account.
func actorContext(ctx context.Context, args map[string]any) (context.Context, error) {
	actor, err := requiredString(args, "actor")
	if err != nil {
		return nil, err
	}
	system, err := optionalBool(args, "system", false)
	if err != nil {
		return nil, err
	}
	if system {
		return service.WithSystemActor(ctx, actor), nil
	}
	return requestctx.WithAccountID(ctx, actor), nil
}

// callerContext is actorContext for steps whose actor is optional.
func callerContext(ctx context.Context, args map[string]any, fallback string) (context.Context, error) {
	if _, ok := args["actor"]; !ok {
		args = copyArgs(args)
		args["actor"] = fallback
	}
	return actorContext(ctx, args)
}

func copyArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args)+1)
	for k, v := range args {
		out[k] = v
	}
	return out
}

func requiredString(args map[string]any, key string) (string, error) {
	value, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%s is required", key)
	}
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%s must be a non-empty string", key)
	}
	return strings.TrimSpace(s), nil
}

func optionalString(args map[string]any, key, fallback string) string {
	value, ok := args[key].(string)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func requiredInt(args map[string]any, key string) (int64, error) {
	value, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}
	return toInt(key, value)
}

func optionalInt(args map[string]any, key string, fallback int64) (int64, error) {
	value, ok := args[key]
	if !ok {
		return fallback, nil
	}
	return toInt(key, value)
}

func toInt(key string, value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be an integer, got %T", key, value)
	}
}

func optionalBool(args map[string]any, key string, fallback bool) (bool, error) {
	value, ok := args[key]
	if !ok {
		return fallback, nil
	}
	b, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean, got %T", key, value)
	}
	return b, nil
}

func optionalStrings(args map[string]any, key string) ([]string, error) {
	value, ok := args[key]
	if !ok {
		return nil, nil
	}
	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a list of strings", key)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a list of strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}

// parseDuration accepts Go durations plus a whole-day suffix such as "3d".
func parseDuration(args map[string]any, key string) (time.Duration, error) {
	raw, err := requiredString(args, key)
	if err != nil {
		return 0, err
	}
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.ParseInt(days, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s %q: %w", key, raw, err)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", key, raw, err)
	}
	return d, nil
}

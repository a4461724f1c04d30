package action

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Shopify/go-lua"
)

// MaxScriptBytes bounds the size of a proposal script.
const MaxScriptBytes = 16 << 10

// MaxScriptSteps bounds the VM instructions a proposal script may execute.
const MaxScriptSteps = 1_000_000

// ErrScriptBudget reports a script that ran out of instruction budget.
var ErrScriptBudget = errors.New("script exceeded instruction budget")

// ScriptContext is exposed to scripts as the read-only ctx table.
type ScriptContext struct {
	OrganizationID string
	ProposalID     string
	Treasury       int64
	Members        int64
	ForVotes       int64
	AgainstVotes   int64
	AbstainVotes   int64
}

// RevertError reports a script that called revert.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	return "script reverted: " + e.Reason
}

// Globals removed before a script runs. os and math.random would make
// execution depend on the host; the rest reach outside the sandbox.
var removedGlobals = []string{
	"io", "os", "package", "debug", "require",
	"dofile", "loadfile", "load", "loadstring",
	"rawset", "collectgarbage",
}

type scriptRun struct {
	reverted  *RevertError
	exhausted bool
}

// limit installs a count hook that fails the script once steps instructions
// have run. After the first failure the hook fires on every instruction so
// pcall cannot keep the script alive.
func (r *scriptRun) limit(state *lua.State, steps int) {
	var hook lua.Hook
	hook = func(state *lua.State, _ lua.Debug) {
		if !r.exhausted {
			r.exhausted = true
			lua.SetDebugHook(state, hook, lua.MaskCount, 1)
		}
		lua.Errorf(state, "%s", ErrScriptBudget.Error())
	}
	lua.SetDebugHook(state, hook, lua.MaskCount, steps)
}

// RunScript evaluates script and returns the effects it produced. A script
// returns a list of effects built with the helper constructors, or nil.
// Scripts are bounded by size and by MaxScriptSteps.
func RunScript(script string, sc ScriptContext) ([]Effect, error) {
	if strings.TrimSpace(script) == "" {
		return nil, nil
	}
	if len(script) > MaxScriptBytes {
		return nil, fmt.Errorf("script exceeds %d bytes", MaxScriptBytes)
	}

	state := lua.NewState()
	lua.OpenLibraries(state)
	sandbox(state)

	run := &scriptRun{}
	registerHelpers(state, run)
	pushContext(state, sc)

	if err := lua.LoadBuffer(state, script, "proposal", "t"); err != nil {
		return nil, fmt.Errorf("load script: %w", err)
	}
	run.limit(state, MaxScriptSteps)
	err := state.ProtectedCall(0, 1, 0)
	lua.SetDebugHook(state, nil, 0, 0)
	switch {
	case run.exhausted:
		return nil, ErrScriptBudget
	case run.reverted != nil:
		return nil, run.reverted
	case err != nil:
		return nil, fmt.Errorf("run script: %w", err)
	}

	defer state.Pop(1)
	if state.IsNoneOrNil(-1) {
		return nil, nil
	}
	if state.TypeOf(-1) != lua.TypeTable {
		return nil, fmt.Errorf("script must return a list of effects, got %s", lua.TypeNameOf(state, -1))
	}
	effects, err := decodeEffects(tableToGo(state, -1))
	if err != nil {
		return nil, err
	}
	if err := ValidateAll(effects); err != nil {
		return nil, err
	}
	return effects, nil
}

func sandbox(state *lua.State) {
	for _, name := range removedGlobals {
		state.PushNil()
		state.SetGlobal(name)
	}
	state.Global("math")
	if state.TypeOf(-1) == lua.TypeTable {
		state.PushNil()
		state.SetField(-2, "random")
		state.PushNil()
		state.SetField(-2, "randomseed")
	}
	state.Pop(1)
}

func registerHelpers(state *lua.State, run *scriptRun) {
	helpers := []lua.RegistryFunction{
		{Name: "transfer", Function: transferHelper},
		{Name: "add_member", Function: addMemberHelper},
		{Name: "set_tier", Function: setTierHelper},
		{Name: "settings", Function: settingsHelper},
		{Name: "revert", Function: run.revert},
	}
	for _, h := range helpers {
		state.PushGoFunction(h.Function)
		state.SetGlobal(h.Name)
	}
}

// pushContext installs ctx as an empty proxy whose metatable serves
// reads from a hidden table and rejects writes.
func pushContext(state *lua.State, sc ScriptContext) {
	state.NewTable()
	state.NewTable()

	state.NewTable()
	state.PushString(sc.OrganizationID)
	state.SetField(-2, "organization_id")
	state.PushString(sc.ProposalID)
	state.SetField(-2, "proposal_id")
	for _, field := range []struct {
		name  string
		value int64
	}{
		{"treasury", sc.Treasury},
		{"members", sc.Members},
		{"for_votes", sc.ForVotes},
		{"against_votes", sc.AgainstVotes},
		{"abstain_votes", sc.AbstainVotes},
	} {
		state.PushInteger(int(field.value))
		state.SetField(-2, field.name)
	}
	state.SetField(-2, "__index")

	state.PushGoFunction(func(state *lua.State) int {
		lua.Errorf(state, "ctx is read-only")
		return 0
	})
	state.SetField(-2, "__newindex")
	state.PushString("locked")
	state.SetField(-2, "__metatable")

	state.SetMetaTable(-2)
	state.SetGlobal("ctx")
}

func transferHelper(state *lua.State) int {
	to := lua.CheckString(state, 1)
	amount := lua.CheckInteger(state, 2)
	state.NewTable()
	state.PushString(string(KindTreasuryTransfer))
	state.SetField(-2, "kind")
	state.PushString(to)
	state.SetField(-2, "to")
	state.PushInteger(amount)
	state.SetField(-2, "amount")
	return 1
}

func addMemberHelper(state *lua.State) int {
	account := lua.CheckString(state, 1)
	tier := lua.OptString(state, 2, "basic")
	state.NewTable()
	state.PushString(string(KindAddMember))
	state.SetField(-2, "kind")
	state.PushString(account)
	state.SetField(-2, "account")
	state.PushString(tier)
	state.SetField(-2, "tier")
	return 1
}

func setTierHelper(state *lua.State) int {
	account := lua.CheckString(state, 1)
	tier := lua.CheckString(state, 2)
	state.NewTable()
	state.PushString(string(KindUpdateTier))
	state.SetField(-2, "kind")
	state.PushString(account)
	state.SetField(-2, "account")
	state.PushString(tier)
	state.SetField(-2, "tier")
	return 1
}

func settingsHelper(state *lua.State) int {
	lua.CheckType(state, 1, lua.TypeTable)
	state.NewTable()
	state.PushString(string(KindUpdateSettings))
	state.SetField(-2, "kind")
	state.PushValue(1)
	state.SetField(-2, "settings")
	return 1
}

func (r *scriptRun) revert(state *lua.State) int {
	reason := lua.OptString(state, 1, "reverted")
	r.reverted = &RevertError{Reason: reason}
	lua.Errorf(state, "revert: %s", reason)
	return 0
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	default:
		return nil
	}
}

// tableToGo converts sequences to []any and everything else to maps.
func tableToGo(state *lua.State, index int) any {
	if state.TypeOf(index) != lua.TypeTable {
		return nil
	}

	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				maxIndex = max(maxIndex, idx)
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}
	return tableToMap(state, index)
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int64(value)
	}
	return value
}

// CheckScript compiles script without running it.
func CheckScript(script string) error {
	if strings.TrimSpace(script) == "" {
		return nil
	}
	if len(script) > MaxScriptBytes {
		return fmt.Errorf("script exceeds %d bytes", MaxScriptBytes)
	}
	state := lua.NewState()
	if err := lua.LoadBuffer(state, script, "proposal", "t"); err != nil {
		return fmt.Errorf("load script: %w", err)
	}
	return nil
}

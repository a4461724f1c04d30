package scenario

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
)

const scenarioTypeName = "scenario"

// Scenario is a named, ordered list of governance steps loaded from Lua.
type Scenario struct {
	Name  string
	Steps []Step
}

// Step is one DSL call with its argument table converted to Go values.
type Step struct {
	Kind string
	Args map[string]any
}

// stepSpec declares a DSL method and the fields it cannot run without.
type stepSpec struct {
	kind     string
	required []string
}

var stepSpecs = []stepSpec{
	{kind: "credit", required: []string{"account", "amount"}},
	{kind: "fund_rewards", required: []string{"amount"}},
	{kind: "stake", required: []string{"actor", "purpose", "amount"}},
	{kind: "unstake", required: []string{"actor", "purpose", "amount"}},
	{kind: "withdraw", required: []string{"actor", "withdrawal"}},
	{kind: "claim", required: []string{"actor", "purpose"}},
	{kind: "slash", required: []string{"actor", "account", "purpose", "amount"}},
	{kind: "organization", required: []string{"actor", "name"}},
	{kind: "activate", required: []string{"actor"}},
	{kind: "dissolve", required: []string{"actor"}},
	{kind: "deposit", required: []string{"actor", "amount"}},
	{kind: "member", required: []string{"actor"}},
	{kind: "remove_member", required: []string{"actor", "account"}},
	{kind: "update_tier", required: []string{"actor", "account", "tier"}},
	{kind: "pause", required: []string{"actor", "account"}},
	{kind: "resume", required: []string{"actor", "account"}},
	{kind: "suspend", required: []string{"actor", "account"}},
	{kind: "reactivate", required: []string{"actor", "account"}},
	{kind: "delegate", required: []string{"actor", "to", "amount"}},
	{kind: "undelegate", required: []string{"actor", "to", "amount"}},
	{kind: "reputation", required: []string{"actor", "account", "delta"}},
	{kind: "propose", required: []string{"actor", "name", "title"}},
	{kind: "vote", required: []string{"actor", "proposal", "choice"}},
	{kind: "tally", required: []string{"proposal"}},
	{kind: "queue", required: []string{"proposal"}},
	{kind: "execute", required: []string{"proposal"}},
	{kind: "cancel", required: []string{"actor", "proposal"}},
	{kind: "advance", required: []string{"duration"}},
	{kind: "expect_power", required: []string{"account", "power"}},
	{kind: "expect_balance", required: []string{"account", "balance"}},
	{kind: "expect_stake", required: []string{"account", "purpose", "amount"}},
	{kind: "expect_reputation", required: []string{"account", "score"}},
	{kind: "expect_status", required: []string{"proposal", "status"}},
	{kind: "expect_treasury", required: []string{"amount"}},
	{kind: "expect_pool", required: []string{"pool", "amount"}},
}

// LoadScenarioFromFile runs a Lua file that must return a Scenario.
func LoadScenarioFromFile(path string) (*Scenario, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)
	registerLuaTypes(state)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	scenario, err := runChunk(state)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return scenario, nil
}

// LoadScenarioFromString runs Lua source that must return a Scenario.
func LoadScenarioFromString(name, source string) (*Scenario, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)
	registerLuaTypes(state)

	if err := lua.LoadBuffer(state, source, name, "t"); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	scenario, err := runChunk(state)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = name
	}
	return scenario, nil
}

func runChunk(state *lua.State) (*Scenario, error) {
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}
	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scenario script must return Scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	scenario, ok := ud.(*Scenario)
	if !ok || scenario == nil {
		return nil, fmt.Errorf("scenario script returned invalid Scenario")
	}
	return scenario, nil
}

func registerLuaTypes(state *lua.State) {
	registerScenarioType(state)
	registerScenarioConstructor(state)
}

func registerScenarioType(state *lua.State) {
	lua.NewMetaTable(state, scenarioTypeName)
	state.NewTable()
	lua.SetFunctions(state, scenarioMethods(), 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerScenarioConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{{Name: "new", Function: scenarioNew}}, 0)
	state.SetGlobal("Scenario")
}

func scenarioNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	state.PushUserData(&Scenario{Name: name})
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

func scenarioMethods() []lua.RegistryFunction {
	methods := make([]lua.RegistryFunction, 0, len(stepSpecs))
	for _, spec := range stepSpecs {
		methods = append(methods, lua.RegistryFunction{Name: spec.kind, Function: stepMethod(spec)})
	}
	return methods
}

// stepMethod records a step and returns the scenario so calls can chain.
func stepMethod(spec stepSpec) lua.Function {
	return func(state *lua.State) int {
		scenario := checkScenario(state)
		lua.CheckType(state, 2, lua.TypeTable)
		data := tableToMap(state, 2)
		for _, field := range spec.required {
			if _, ok := data[field]; !ok {
				lua.Errorf(state, "%s %s is required", spec.kind, field)
				return 0
			}
		}
		appendStep(scenario, spec.kind, data)
		state.PushValue(1)
		return 1
	}
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if scenario, ok := ud.(*Scenario); ok && scenario != nil {
		return scenario
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}

func appendStep(scenario *Scenario, kind string, data map[string]any) {
	if scenario == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	scenario.Steps = append(scenario.Steps, Step{Kind: kind, Args: data})
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

func tableToGo(state *lua.State, index int) any {
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
				if idx > maxIndex {
					maxIndex = idx
				}
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

// normalizeNumber keeps integral Lua numbers as int64 so amounts stay exact.
func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 && math.Abs(value) < 1<<53 {
		return int64(value)
	}
	return value
}

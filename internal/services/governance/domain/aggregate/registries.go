package aggregate

import (
	"fmt"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/command"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/membership"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/proposal"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/reputation"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/staking"
)

// Registries holds the command and event registries of the core.
type Registries struct {
	Commands *command.Registry
	Events   *event.Registry
}

type domainRegistration struct {
	name     string
	commands func(*command.Registry) error
	events   func(*event.Registry) error
}

func domains() []domainRegistration {
	return []domainRegistration{
		{name: "staking", commands: staking.RegisterCommands, events: staking.RegisterEvents},
		{name: "organization", commands: organization.RegisterCommands, events: organization.RegisterEvents},
		{name: "membership", commands: membership.RegisterCommands, events: membership.RegisterEvents},
		{name: "reputation", events: reputation.RegisterEvents},
		{name: "proposal", commands: proposal.RegisterCommands, events: proposal.RegisterEvents},
	}
}

// BuildRegistries registers every command and event of the core and
// checks that each event type has a fold.
func BuildRegistries() (Registries, error) {
	commands := command.NewRegistry()
	events := event.NewRegistry()
	for _, d := range domains() {
		if d.commands != nil {
			if err := d.commands(commands); err != nil {
				return Registries{}, fmt.Errorf("register %s commands: %w", d.name, err)
			}
		}
		if err := d.events(events); err != nil {
			return Registries{}, fmt.Errorf("register %s events: %w", d.name, err)
		}
	}
	if err := ValidateFoldCoverage(events, &Folder{}); err != nil {
		return Registries{}, err
	}
	return Registries{Commands: commands, Events: events}, nil
}

// ValidateFoldCoverage reports registered event types without a fold and
// folds without a registered event type.
func ValidateFoldCoverage(events *event.Registry, folder *Folder) error {
	dispatched := map[event.Type]struct{}{}
	for _, t := range folder.DispatchedTypes() {
		dispatched[t] = struct{}{}
	}
	for _, def := range events.ListDefinitions() {
		if _, ok := dispatched[def.Type]; !ok {
			return fmt.Errorf("event type %s has no fold", def.Type)
		}
		delete(dispatched, def.Type)
	}
	for t := range dispatched {
		return fmt.Errorf("fold for %s has no registered event", t)
	}
	return nil
}

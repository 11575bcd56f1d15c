package description

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
)

// SCPD is a decoded service capability description: the actions a service
// offers and the state variables backing them.
type SCPD struct {
	XMLName        xml.Name        `xml:"scpd"`
	SpecVersion    SpecVersion     `xml:"specVersion"`
	Actions        []Action        `xml:"actionList>action"`
	StateVariables []StateVariable `xml:"serviceStateTable>stateVariable"`
}

// Action is one action of the capability description.
type Action struct {
	Name      string     `xml:"name"`
	Arguments []Argument `xml:"argumentList>argument"`
}

// InArguments returns the action's input arguments in declaration order.
func (a *Action) InArguments() []Argument {
	return a.filterArguments(DirectionIn)
}

// OutArguments returns the action's output arguments in declaration order.
func (a *Action) OutArguments() []Argument {
	return a.filterArguments(DirectionOut)
}

func (a *Action) filterArguments(direction string) []Argument {
	var result []Argument
	for _, arg := range a.Arguments {
		if arg.Direction == direction {
			result = append(result, arg)
		}
	}
	return result
}

// Argument direction values.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Argument is one argument of an action.
type Argument struct {
	Name                 string `xml:"name"`
	Direction            string `xml:"direction"`
	RelatedStateVariable string `xml:"relatedStateVariable"`
}

// StateVariable is one entry of the service state table.
type StateVariable struct {
	SendEvents    string   `xml:"sendEvents,attr"`
	Name          string   `xml:"name"`
	DataType      string   `xml:"dataType"`
	DefaultValue  string   `xml:"defaultValue"`
	AllowedValues []string `xml:"allowedValueList>allowedValue"`
}

// Evented reports whether changes to the variable are pushed to subscribers.
func (v *StateVariable) Evented() bool {
	return v.SendEvents == "yes"
}

// Action looks up an action by name.
func (s *SCPD) Action(name string) (*Action, bool) {
	for i := range s.Actions {
		if s.Actions[i].Name == name {
			return &s.Actions[i], true
		}
	}
	return nil, false
}

// StateVariable looks up a state variable by name.
func (s *SCPD) StateVariable(name string) (*StateVariable, bool) {
	for i := range s.StateVariables {
		if s.StateVariables[i].Name == name {
			return &s.StateVariables[i], true
		}
	}
	return nil, false
}

// ParseSCPD decodes a capability description document.
func ParseSCPD(data []byte) (*SCPD, error) {
	var scpd SCPD
	if err := xml.Unmarshal(data, &scpd); err != nil {
		return nil, fmt.Errorf("failed to decode capability description: %w", err)
	}
	return &scpd, nil
}

// FetchSCPD performs an HTTP GET of the SCPD URL and decodes the result.
// The caller bounds the fetch through ctx; a short timeout is advisable so
// one unreachable device cannot stall discovery of others.
func FetchSCPD(ctx context.Context, client *http.Client, scpdURL string) (*SCPD, error) {
	data, err := fetch(ctx, client, scpdURL)
	if err != nil {
		return nil, err
	}
	return ParseSCPD(data)
}

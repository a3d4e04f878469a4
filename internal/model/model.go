/*
FogPlace
Component placement and traffic routing over fog infrastructures.
*/
package model

import "encoding/json"

// An Infrastructure is a collection of hosts and the directed links between them.
// Host ids are the indexes of Hosts.
type Infrastructure struct {
	HostsNb  int    `json:"hosts_nb" yaml:"hosts_nb"`
	Hosts    []Host `json:"hosts" yaml:"hosts"`
	Links    []Link `json:"links" yaml:"links"`
	EdgesNb  int    `json:"edges_nb" yaml:"edges_nb"`
	Diameter *int   `json:"network_diameter,omitempty" yaml:"network_diameter,omitempty"`
}

func (i Infrastructure) String() string {
	b, _ := json.Marshal(i)
	return string(b)
}

// A Host is a device that can run components.
type Host struct {
	Name string  `json:"name,omitempty" yaml:"name,omitempty"`
	CPU  float64 `json:"cpu" yaml:"cpu"`
	RAM  float64 `json:"ram" yaml:"ram"`
}

func (h Host) String() string {
	b, _ := json.Marshal(h)
	return string(b)
}

// A Link is a directed connection between two hosts.
type Link struct {
	Src       int     `json:"src" yaml:"src"`
	Dst       int     `json:"dst" yaml:"dst"`
	Bandwidth float64 `json:"bandwidth" yaml:"bandwidth"`
	Latency   float64 `json:"latency" yaml:"latency"`
}

// An Application is a set of components and the service links between them.
// Component ids are the indexes of Components.
type Application struct {
	ID            string        `json:"id,omitempty" yaml:"id,omitempty"`
	Name          string        `json:"name,omitempty" yaml:"name,omitempty"`
	ApplicationNb int           `json:"application_nb" yaml:"application_nb"`
	ComponentsNb  int           `json:"components_nb" yaml:"components_nb"`
	Components    []Component   `json:"components" yaml:"components"`
	Links         []ServiceLink `json:"links" yaml:"links"`
	LinksNb       int           `json:"links_nb" yaml:"links_nb"`

	// Locality constraints, carried through but not consumed by the placement
	ComponentNbDZ *int  `json:"component_nb_dz,omitempty" yaml:"component_nb_dz,omitempty"`
	ComponentDZ   []int `json:"component_dz,omitempty" yaml:"component_dz,omitempty"`
}

func (a Application) String() string {
	b, _ := json.Marshal(a)
	return string(b)
}

// A Component is a part of an application that has to be placed on a host.
type Component struct {
	Name   string   `json:"name,omitempty" yaml:"name,omitempty"`
	Image  string   `json:"image,omitempty" yaml:"image,omitempty"`
	CPU    float64  `json:"cpu" yaml:"cpu"`
	RAM    float64  `json:"ram" yaml:"ram"`
	Lambda *float64 `json:"lambda,omitempty" yaml:"lambda,omitempty"`
	Mu     *float64 `json:"mu,omitempty" yaml:"mu,omitempty"`
}

// A ServiceLink is a communication requirement between two components.
// A zero Latency means that the link has no latency requirement.
type ServiceLink struct {
	ID        int     `json:"id" yaml:"id"`
	Src       int     `json:"src" yaml:"src"`
	Dst       int     `json:"dst" yaml:"dst"`
	Bandwidth float64 `json:"bandwidth" yaml:"bandwidth"`
	Latency   float64 `json:"latency" yaml:"latency"`
}

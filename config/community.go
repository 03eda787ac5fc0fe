package config

import (
	"errors"
	"fmt"

	"github.com/kilianp07/ecom/core/resource"
	"github.com/kilianp07/ecom/core/schedule"
)

// CommunityConfig describes the resources of one energy community. Profiles
// are given per unit as rows of Steps values.
type CommunityConfig struct {
	Generators *GeneratorConfig `json:"generators"`
	Loads      *LoadConfig      `json:"loads"`
	Storage    *StorageConfig   `json:"storage"`
	Vehicles   *VehicleConfig   `json:"vehicles"`
	Import     *GridConfig      `json:"import"`
	Export     *GridConfig      `json:"export"`
}

// GeneratorConfig maps to resource.Generator.
type GeneratorConfig struct {
	Name             string      `json:"name"`
	Upper            [][]float64 `json:"upper"`
	Lower            [][]float64 `json:"lower"`
	Cost             [][]float64 `json:"cost"`
	IsRenewable      []int       `json:"is_renewable"`
	NonDeliveredCost []float64   `json:"non_delivered_cost"`
}

// LoadConfig maps to resource.Load. Demand is the consumption profile.
type LoadConfig struct {
	Name          string      `json:"name"`
	Demand        [][]float64 `json:"demand"`
	ReductionCost []float64   `json:"reduction_cost"`
	CutCost       []float64   `json:"cut_cost"`
	ENSCost       []float64   `json:"ens_cost"`
}

// StorageConfig maps to resource.Storage.
type StorageConfig struct {
	Name                string    `json:"name"`
	ChargeMax           []float64 `json:"charge_max"`
	DischargeMax        []float64 `json:"discharge_max"`
	ChargeEfficiency    []float64 `json:"charge_efficiency"`
	DischargeEfficiency []float64 `json:"discharge_efficiency"`
	CapacityMax         []float64 `json:"capacity_max"`
	CapacityMin         []float64 `json:"capacity_min"`
	InitialCharge       []float64 `json:"initial_charge"`
	ChargeCost          []float64 `json:"charge_cost"`
	DischargeCost       []float64 `json:"discharge_cost"`
}

// VehicleConfig maps to resource.Vehicle.
type VehicleConfig struct {
	Name                string      `json:"name"`
	ScheduleCharge      [][]float64 `json:"schedule_charge"`
	ScheduleDischarge   [][]float64 `json:"schedule_discharge"`
	ChargeEfficiency    []float64   `json:"charge_efficiency"`
	DischargeEfficiency []float64   `json:"discharge_efficiency"`
	CapacityMax         []float64   `json:"capacity_max"`
	MinCharge           []float64   `json:"min_charge"`
	ChargeCost          []float64   `json:"charge_cost"`
	DischargeCost       []float64   `json:"discharge_cost"`
}

// GridConfig maps to an import or export resource.Grid.
type GridConfig struct {
	Name  string    `json:"name"`
	Limit []float64 `json:"limit"`
	Price []float64 `json:"price"`
}

// Validate checks that the mandatory resources are present.
func (c CommunityConfig) Validate() error {
	if c.Generators == nil {
		return errors.New("generators are required")
	}
	if c.Loads == nil {
		return errors.New("loads are required")
	}
	return nil
}

// Build converts the configuration into a validated community.
func (c CommunityConfig) Build() (*resource.Community, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var res []resource.Resource

	gen, err := c.Generators.build()
	if err != nil {
		return nil, err
	}
	res = append(res, gen)

	loads, err := c.Loads.build()
	if err != nil {
		return nil, err
	}
	res = append(res, loads)

	if c.Storage != nil {
		res = append(res, c.Storage.build())
	}
	if c.Vehicles != nil {
		evs, err := c.Vehicles.build()
		if err != nil {
			return nil, err
		}
		res = append(res, evs)
	}
	if c.Import != nil {
		res = append(res, resource.NewImport(nameOr(c.Import.Name, "pimp"), c.Import.Limit, c.Import.Price))
	}
	if c.Export != nil {
		res = append(res, resource.NewExport(nameOr(c.Export.Name, "pexp"), c.Export.Limit, c.Export.Price))
	}
	return resource.NewCommunity(res...)
}

func (g *GeneratorConfig) build() (*resource.Generator, error) {
	out := &resource.Generator{IsRenewable: g.IsRenewable, NonDeliveredCost: g.NonDeliveredCost}
	out.ResourceName = nameOr(g.Name, "gen")
	var err error
	if out.Upper, err = array("generators.upper", g.Upper); err != nil {
		return nil, err
	}
	if out.Lower, err = array("generators.lower", g.Lower); err != nil {
		return nil, err
	}
	if out.Cost, err = array("generators.cost", g.Cost); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *LoadConfig) build() (*resource.Load, error) {
	out := &resource.Load{ReductionCost: l.ReductionCost, CutCost: l.CutCost, ENSCost: l.ENSCost}
	out.ResourceName = nameOr(l.Name, "loads")
	var err error
	if out.Upper, err = array("loads.demand", l.Demand); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *StorageConfig) build() *resource.Storage {
	out := &resource.Storage{
		ChargeMax:           s.ChargeMax,
		DischargeMax:        s.DischargeMax,
		ChargeEfficiency:    s.ChargeEfficiency,
		DischargeEfficiency: s.DischargeEfficiency,
		CapacityMax:         s.CapacityMax,
		CapacityMin:         s.CapacityMin,
		InitialCharge:       s.InitialCharge,
		ChargeCost:          s.ChargeCost,
		DischargeCost:       s.DischargeCost,
	}
	out.ResourceName = nameOr(s.Name, "stor")
	return out
}

func (v *VehicleConfig) build() (*resource.Vehicle, error) {
	out := &resource.Vehicle{
		ChargeEfficiency:    v.ChargeEfficiency,
		DischargeEfficiency: v.DischargeEfficiency,
		CapacityMax:         v.CapacityMax,
		MinCharge:           v.MinCharge,
		ChargeCost:          v.ChargeCost,
		DischargeCost:       v.DischargeCost,
	}
	out.ResourceName = nameOr(v.Name, "evs")
	var err error
	if out.ScheduleCharge, err = array("vehicles.schedule_charge", v.ScheduleCharge); err != nil {
		return nil, err
	}
	if out.ScheduleDischarge, err = array("vehicles.schedule_discharge", v.ScheduleDischarge); err != nil {
		return nil, err
	}
	return out, nil
}

func array(field string, rows [][]float64) (schedule.Array, error) {
	a, err := schedule.ArrayFrom(rows)
	if err != nil {
		return schedule.Array{}, fmt.Errorf("%s: %w", field, err)
	}
	return a, nil
}

func nameOr(name, def string) string {
	if name == "" {
		return def
	}
	return name
}

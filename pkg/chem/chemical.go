// Package chem defines the chemical signal sources that the scan engine
// renders into scans, plus loaders for YAML datasets and spectral libraries.
package chem

import (
	"fmt"

	"github.com/ChrisMcGann/MSSim/pkg/core"
)

// Isotope is one isotopic variant of a chemical: its neutral mass and its
// relative abundance.
type Isotope struct {
	MZ   float64
	Prop float64
}

// AdductAbundance pairs an adduct with its relative abundance.
type AdductAbundance struct {
	Adduct core.Adduct
	Prop   float64
}

// Chemical is a signal source. Level-1 chemicals elute from the column;
// deeper levels are fragments reachable only through their parent.
type Chemical struct {
	Name         string
	MSLevel      int
	RT           float64
	MaxIntensity float64
	Isotopes     []Isotope

	// Adducts are only set on level-1 chemicals.
	Adducts      []AdductAbundance
	Chromatogram Chromatogram

	Children []*Chemical
	Parent   *Chemical

	// ParentMassProp is the share of the parent's signal carried by this
	// fragment; PropMSNMass the share of that which survives fragmentation.
	ParentMassProp float64
	PropMSNMass    float64
}

// AddChild attaches a fragment one level below c.
func (c *Chemical) AddChild(child *Chemical) {
	child.Parent = c
	child.MSLevel = c.MSLevel + 1
	c.Children = append(c.Children, child)
}

// MS1Ancestor walks the parent chain up to the eluting chemical.
func (c *Chemical) MS1Ancestor() *Chemical {
	cur := c
	for cur.MSLevel > 1 && cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

// AdductList returns the adducts that apply to c, inherited from its MS1
// ancestor for fragments.
func (c *Chemical) AdductList() []AdductAbundance {
	return c.MS1Ancestor().Adducts
}

// Walk visits c and every descendant depth first.
func (c *Chemical) Walk(fn func(*Chemical)) {
	fn(c)
	for _, child := range c.Children {
		child.Walk(fn)
	}
}

// Validate checks the invariants the scan engine relies on.
func (c *Chemical) Validate() error {
	if len(c.Isotopes) == 0 {
		return &core.ValidationError{Field: "Chemical", Message: fmt.Sprintf("%s has no isotopes", c.Name)}
	}
	if c.MSLevel == 1 {
		if len(c.Adducts) == 0 {
			return &core.ValidationError{Field: "Chemical", Message: fmt.Sprintf("%s has no adducts", c.Name)}
		}
		if c.Chromatogram == nil {
			return &core.ValidationError{Field: "Chemical", Message: fmt.Sprintf("%s has no chromatogram", c.Name)}
		}
		if c.MaxIntensity <= 0 {
			return &core.ValidationError{Field: "Chemical", Message: fmt.Sprintf("%s has non-positive max intensity", c.Name)}
		}
	} else if c.Parent == nil {
		return &core.ValidationError{Field: "Chemical", Message: fmt.Sprintf("%s is a level %d fragment without a parent", c.Name, c.MSLevel)}
	}
	for _, child := range c.Children {
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chemical) String() string {
	if c.MSLevel == 1 {
		return fmt.Sprintf("Chemical %s mz=%.4f rt=%.2f max_intensity=%.2f", c.Name, c.Isotopes[0].MZ, c.RT, c.MaxIntensity)
	}
	return fmt.Sprintf("MSN Fragment %s mz=%.4f ms_level=%d", c.Name, c.Isotopes[0].MZ, c.MSLevel)
}

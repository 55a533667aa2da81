package chem

import (
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/ChrisMcGann/MSSim/pkg/core"
)

// DatasetFile is the on-disk YAML layout of a chemical dataset.
type DatasetFile struct {
	Chemicals []ChemicalRecord `yaml:"chemicals"`
}

// ChemicalRecord is one chemical as written in YAML. Children nest
// recursively; RT, adducts and chromatogram are read on level-1 records only.
type ChemicalRecord struct {
	Name           string              `yaml:"name"`
	RT             float64             `yaml:"rt,omitempty"`
	MaxIntensity   float64             `yaml:"max_intensity,omitempty"`
	Isotopes       []IsotopeRecord     `yaml:"isotopes"`
	Adducts        []AdductRecord      `yaml:"adducts,omitempty"`
	Chromatogram   *ChromatogramRecord `yaml:"chromatogram,omitempty"`
	ParentMassProp float64             `yaml:"parent_mass_prop,omitempty"`
	PropMSNMass    float64             `yaml:"prop_msn_mass,omitempty"`
	Children       []ChemicalRecord    `yaml:"children,omitempty"`
}

type IsotopeRecord struct {
	MZ   float64 `yaml:"mz"`
	Prop float64 `yaml:"prop"`
}

type AdductRecord struct {
	Name string  `yaml:"name"`
	Prop float64 `yaml:"prop"`
}

// ChromatogramRecord selects a chromatogram: type "gaussian" uses Sigma and
// Span, type "empirical" uses the point arrays.
type ChromatogramRecord struct {
	Type        string    `yaml:"type"`
	Sigma       float64   `yaml:"sigma,omitempty"`
	Span        float64   `yaml:"span,omitempty"`
	RTs         []float64 `yaml:"rts,omitempty"`
	Intensities []float64 `yaml:"intensities,omitempty"`
	MZs         []float64 `yaml:"mzs,omitempty"`
}

// LoadDatasetFile opens and parses a YAML dataset.
func LoadDatasetFile(path string, adducts *core.AdductDatabase) ([]*Chemical, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return LoadDataset(f, adducts)
}

// LoadDataset parses a YAML dataset into level-1 chemicals with their
// fragment trees attached. Adduct names are resolved against adducts.
func LoadDataset(r io.Reader, adducts *core.AdductDatabase) ([]*Chemical, error) {
	var file DatasetFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}

	chemicals := make([]*Chemical, 0, len(file.Chemicals))
	for i, rec := range file.Chemicals {
		c, err := rec.build(1, adducts)
		if err != nil {
			return nil, fmt.Errorf("chemical %d (%s): %w", i, rec.Name, err)
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("chemical %d (%s): %w", i, rec.Name, err)
		}
		chemicals = append(chemicals, c)
	}
	return chemicals, nil
}

func (rec ChemicalRecord) build(level int, adducts *core.AdductDatabase) (*Chemical, error) {
	c := &Chemical{
		Name:           rec.Name,
		MSLevel:        level,
		ParentMassProp: rec.ParentMassProp,
		PropMSNMass:    rec.PropMSNMass,
	}
	for _, iso := range rec.Isotopes {
		c.Isotopes = append(c.Isotopes, Isotope(iso))
	}

	if level == 1 {
		c.RT = rec.RT
		c.MaxIntensity = rec.MaxIntensity
		for _, a := range rec.Adducts {
			adduct, ok := adducts.Get(a.Name)
			if !ok {
				return nil, fmt.Errorf("unknown adduct '%s'", a.Name)
			}
			c.Adducts = append(c.Adducts, AdductAbundance{Adduct: adduct, Prop: a.Prop})
		}
		if rec.Chromatogram == nil {
			return nil, fmt.Errorf("missing chromatogram")
		}
		chrom, err := rec.Chromatogram.build()
		if err != nil {
			return nil, err
		}
		c.Chromatogram = chrom
	} else if c.PropMSNMass == 0 {
		c.PropMSNMass = 1
	}

	for _, childRec := range rec.Children {
		child, err := childRec.build(level+1, adducts)
		if err != nil {
			return nil, fmt.Errorf("child %s: %w", childRec.Name, err)
		}
		c.AddChild(child)
	}
	return c, nil
}

func (rec *ChromatogramRecord) build() (Chromatogram, error) {
	switch rec.Type {
	case "gaussian":
		return NewGaussian(rec.Sigma, rec.Span)
	case "empirical":
		return NewEmpirical(rec.RTs, rec.Intensities, rec.MZs)
	}
	return nil, fmt.Errorf("unknown chromatogram type '%s'", rec.Type)
}

// ToRecord converts a chemical tree back into its YAML form.
func ToRecord(c *Chemical) ChemicalRecord {
	rec := ChemicalRecord{
		Name:           c.Name,
		ParentMassProp: c.ParentMassProp,
		PropMSNMass:    c.PropMSNMass,
	}
	for _, iso := range c.Isotopes {
		rec.Isotopes = append(rec.Isotopes, IsotopeRecord(iso))
	}
	if c.MSLevel == 1 {
		rec.RT = c.RT
		rec.MaxIntensity = c.MaxIntensity
		for _, a := range c.Adducts {
			rec.Adducts = append(rec.Adducts, AdductRecord{Name: a.Adduct.Name, Prop: a.Prop})
		}
		switch chrom := c.Chromatogram.(type) {
		case *Gaussian:
			rec.Chromatogram = &ChromatogramRecord{Type: "gaussian", Sigma: chrom.Sigma, Span: chrom.Span}
		case *Empirical:
			rec.Chromatogram = &ChromatogramRecord{Type: "empirical", RTs: chrom.RTs, Intensities: chrom.Intensities, MZs: chrom.MZs}
		}
	}
	for _, child := range c.Children {
		rec.Children = append(rec.Children, ToRecord(child))
	}
	return rec
}

// WriteDataset encodes chemicals as a YAML dataset.
func WriteDataset(w io.Writer, chemicals []*Chemical) error {
	file := DatasetFile{Chemicals: make([]ChemicalRecord, 0, len(chemicals))}
	for _, c := range chemicals {
		file.Chemicals = append(file.Chemicals, ToRecord(c))
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	return enc.Close()
}

package controller

import (
	"github.com/ChrisMcGann/MSSim/pkg/core"
	"github.com/ChrisMcGann/MSSim/pkg/dia"
)

// Tree is a data-independent controller: after every MS1 scan it fragments a
// fixed set of isolation windows regardless of intensity.
type Tree struct {
	base
	cfg dia.Config
}

// NewTree builds a DIA controller. A zero Range covers the default scan's
// mass range.
func NewTree(polarity core.Polarity, cfg dia.Config, opts ...Option) (*Tree, error) {
	t := &Tree{base: newBase("tree", polarity, opts), cfg: cfg}
	if t.cfg.Range == (core.Window{}) {
		t.cfg.Range = core.Window{Lower: t.defaultScan.FirstMass, Upper: t.defaultScan.LastMass}
	}
	if err := t.cfg.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) HandleScan(scan *core.Scan) []*core.ScanParameters {
	t.receive(scan)
	ms1 := t.takeMS1()
	if ms1 == nil {
		return nil
	}

	locations, err := dia.Windows(ms1.MZs, t.cfg)
	if err != nil {
		t.logger.Error("failed to compute dia windows", "time", ms1.RT, "error", err)
		return nil
	}
	t.logger.Debug("window locations", "time", ms1.RT, "count", len(locations))

	tasks := make([]*core.ScanParameters, 0, len(locations))
	for _, loc := range locations {
		tasks = append(tasks, &core.ScanParameters{
			MSLevel:          2,
			IsolationWindows: loc,
			CollisionEnergy:  core.DefaultCollisionEnergy,
			Polarity:         t.polarity,
			FirstMass:        t.defaultScan.FirstMass,
			LastMass:         t.defaultScan.LastMass,
		})
	}
	return tasks
}

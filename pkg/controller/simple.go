package controller

import "github.com/ChrisMcGann/MSSim/pkg/core"

// Idle never requests a scan; the engine falls back to its default scan.
type Idle struct {
	base
}

func NewIdle(polarity core.Polarity, opts ...Option) *Idle {
	return &Idle{base: newBase("idle", polarity, opts)}
}

func (c *Idle) HandleScan(scan *core.Scan) []*core.ScanParameters {
	c.receive(scan)
	return nil
}

// SimpleMS1 keeps requesting full scans.
type SimpleMS1 struct {
	base
}

func NewSimpleMS1(polarity core.Polarity, opts ...Option) *SimpleMS1 {
	return &SimpleMS1{base: newBase("simple_ms1", polarity, opts)}
}

func (c *SimpleMS1) HandleScan(scan *core.Scan) []*core.ScanParameters {
	c.receive(scan)
	return []*core.ScanParameters{c.defaultScan}
}

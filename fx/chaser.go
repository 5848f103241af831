package fx

import (
	"go-lightdesk/fader"
	"go-lightdesk/universe"
)

// Step is one look of a chaser
type Step struct {
	Values []Value
	HoldMs int
}

// ChaserConfig describes a sequence of steps
type ChaserConfig struct {
	Name      string
	Steps     []Step
	Loop      bool
	FadeOutMs int
}

// Chaser snaps through its steps, holding each for HoldMs. Intensity
// channels that the next step no longer drives are released to the
// generic fader.
type Chaser struct {
	cfg    ChaserConfig
	fader  *fader.GenericFader
	tickMs int

	index     int
	elapsedMs int
	started   bool
}

// NewChaser creates a chaser that releases into fd
func NewChaser(cfg ChaserConfig, fd *fader.GenericFader, tickMs int) *Chaser {
	if tickMs < 1 {
		tickMs = 1
	}
	return &Chaser{
		cfg:    cfg,
		fader:  fd,
		tickMs: tickMs,
	}
}

// Name returns the chaser name
func (c *Chaser) Name() string {
	return c.cfg.Name
}

// CurrentStep returns the index of the step being output
func (c *Chaser) CurrentStep() int {
	return c.index
}

// Write outputs the current step and advances when its hold time is up
func (c *Chaser) Write(ua *universe.Array) bool {
	if len(c.cfg.Steps) == 0 {
		return false
	}
	if !c.started {
		c.started = true
		c.index = 0
		c.elapsedMs = 0
	}

	step := c.cfg.Steps[c.index]
	for _, v := range step.Values {
		ua.Write(v.Address, v.Level, v.Group)
	}

	c.elapsedMs += c.tickMs
	if c.elapsedMs < max(step.HoldMs, c.tickMs) {
		return true
	}

	next := c.index + 1
	if next >= len(c.cfg.Steps) {
		if !c.cfg.Loop {
			c.started = false
			c.release(step, nil)
			return false
		}
		next = 0
	}
	c.release(step, &c.cfg.Steps[next])
	c.index = next
	c.elapsedMs = 0
	return true
}

// Stop releases the current step
func (c *Chaser) Stop() {
	if !c.started || len(c.cfg.Steps) == 0 {
		return
	}
	c.started = false
	c.release(c.cfg.Steps[c.index], nil)
}

// release fades out the intensity channels of from that next does not
// drive
func (c *Chaser) release(from Step, next *Step) {
	driven := make(map[int]bool)
	if next != nil {
		for _, v := range next.Values {
			if v.Group == universe.Intensity && v.Level > 0 {
				driven[v.Address] = true
			}
		}
	}
	for _, v := range from.Values {
		if v.Group != universe.Intensity || v.Level == 0 || driven[v.Address] {
			continue
		}
		c.fader.Add(fader.FadeChannel{
			Address:    v.Address,
			Group:      universe.Intensity,
			Start:      v.Level,
			Target:     0,
			FadeTimeMs: c.cfg.FadeOutMs,
		})
	}
}

package intervention

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantumlife/focuscoach/internal/core"
)

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *PolicyConfig)
		wantErr bool
	}{
		{"defaults", func(*PolicyConfig) {}, false},
		{"equal scales", func(p *PolicyConfig) { p.Personal.HighScale = p.Personal.MediumScale }, false},
		{"medium scale above one", func(p *PolicyConfig) { p.Personal.MediumScale = 1.5 }, true},
		{"high scale above medium", func(p *PolicyConfig) {
			p.Personal.MediumScale = 0.5
			p.Personal.HighScale = 0.8
		}, true},
		{"zero high scale", func(p *PolicyConfig) { p.Personal.HighScale = 0 }, true},
		{"low load above high load", func(p *PolicyConfig) {
			p.Personal.LowLoad = 0.8
			p.Personal.HighLoad = 0.6
		}, true},
		{"high load above one", func(p *PolicyConfig) { p.Personal.HighLoad = 1.2 }, true},
		{"negative min step", func(p *PolicyConfig) { p.Personal.MinStepDuration = -time.Second }, true},
		{"intensity bands inverted", func(p *PolicyConfig) { p.Personal.LowIntensityMax = time.Hour }, true},
		{"max daily zero", func(p *PolicyConfig) { p.Gate.MaxDaily = 0 }, true},
		{"delay bounds inverted", func(p *PolicyConfig) { p.Timing.MinDelay = p.Timing.MaxDelay + time.Minute }, true},
		{"unknown timezone", func(p *PolicyConfig) { p.Timing.Timezone = "Mars/Olympus" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicyConfig()
			tt.mutate(&p)
			err := p.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, core.ErrConfiguration), "got %v", err)
		})
	}
}

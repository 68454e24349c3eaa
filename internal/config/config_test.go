package config

import "testing"

func TestLoadAppliesDefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.UserMaxVoltage != 500 || cfg.Engine.UserMaxCurrent != 200 || cfg.Engine.UserMaxPower != 100000 {
		t.Fatalf("Engine = %+v", cfg.Engine)
	}
	if cfg.Engine.HeartbeatTimeout().Milliseconds() != 1500 {
		t.Fatalf("HeartbeatTimeout = %v", cfg.Engine.HeartbeatTimeout())
	}
	if cfg.Engine.CyclicPeriod().Milliseconds() != 100 {
		t.Fatalf("CyclicPeriod = %v", cfg.Engine.CyclicPeriod())
	}
}

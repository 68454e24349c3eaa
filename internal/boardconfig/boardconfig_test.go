package boardconfig

import "testing"

func TestLoadParsesChannelsAndDefault(t *testing.T) {
	b, err := Load("../../testdata/boards.ini")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Default != "bench" {
		t.Fatalf("Default = %q, want bench", b.Default)
	}
	ch, ok := b.Channel("rig0")
	if !ok {
		t.Fatal("rig0 channel missing")
	}
	if ch.Backend != "hardware" || ch.Device != "can0" || ch.Baud != 500000 {
		t.Fatalf("rig0 = %+v", ch)
	}
	def, ok := b.DefaultChannel()
	if !ok || def.Name != "bench" || def.Backend != "simulator" {
		t.Fatalf("DefaultChannel = %+v, %v", def, ok)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/boards.ini"); err == nil {
		t.Fatal("expected error")
	}
}

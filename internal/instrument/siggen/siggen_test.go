package siggen

import (
	"bytes"
	"testing"
)

type fakeTransport struct {
	in  *bytes.Buffer
	out bytes.Buffer
}

func newFakeTransport(replies string) *fakeTransport {
	return &fakeTransport{in: bytes.NewBufferString(replies)}
}

func (f *fakeTransport) Read(p []byte) (int, error)  { return f.in.Read(p) }
func (f *fakeTransport) Write(p []byte) (int, error) { return f.out.Write(p) }

func TestParseShape(t *testing.T) {
	tests := []struct {
		in      string
		want    Shape
		wantErr bool
	}{
		{"sin", ShapeSine, false},
		{"PULSE", ShapePulse, false},
		{" square ", ShapeSquare, false},
		{"triangle", "", true},
	}

	for _, tt := range tests {
		got, err := ParseShape(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseShape(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseShape(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseShape(%q): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestGenerator_SetWaveform(t *testing.T) {
	ft := newFakeTransport("")
	g := New(ft)

	if err := g.SetWaveform(ShapePulse, 1000, 5, 0, 0.5, 1); err != nil {
		t.Fatalf("SetWaveform failed: %v", err)
	}

	expected := "SOUR1:APPL:PULS 1000,5,0.5\nSOUR1:PHAS 0\n"
	if got := ft.out.String(); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestGenerator_SetDutyCycleClamped(t *testing.T) {
	ft := newFakeTransport("")
	g := New(ft)

	if err := g.SetDutyCycle(1.5, 2); err != nil {
		t.Fatalf("SetDutyCycle failed: %v", err)
	}
	if got := ft.out.String(); got != "SOUR2:FUNC:SQU:DCYC 100\n" {
		t.Errorf("Expected duty cycle clamped to 100%%, got %q", got)
	}

	ft.out.Reset()
	if err := g.SetDutyCycle(0.25, 1); err != nil {
		t.Fatalf("SetDutyCycle failed: %v", err)
	}
	if got := ft.out.String(); got != "SOUR1:FUNC:SQU:DCYC 25\n" {
		t.Errorf("Expected 25%% duty cycle, got %q", got)
	}
}

func TestGenerator_SetAmplitude(t *testing.T) {
	ft := newFakeTransport("")
	g := New(ft)

	if err := g.SetAmplitude(0, 1); err != nil {
		t.Fatalf("SetAmplitude failed: %v", err)
	}
	if got := ft.out.String(); got != "SOUR1:VOLT 0\n" {
		t.Errorf("Expected zero-amplitude command, got %q", got)
	}
}

func TestGenerator_InvalidChannel(t *testing.T) {
	g := New(newFakeTransport(""))

	if err := g.SetAmplitude(1, 3); err == nil {
		t.Error("Expected error for channel 3")
	}
	if err := g.SetWaveform(ShapeSine, 1, 1, 0, 0, 0); err == nil {
		t.Error("Expected error for channel 0")
	}
}

func TestGenerator_Connected(t *testing.T) {
	g := New(newFakeTransport("FY6900-60M\n"))
	if !g.Connected() {
		t.Error("Expected Connected with identification reply")
	}

	g = New(newFakeTransport(""))
	if g.Connected() {
		t.Error("Expected not Connected with empty reply")
	}
}
